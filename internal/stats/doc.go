// Package stats implements the nonparametric statistics the annotation
// strategies rely on: tied ranks, Spearman rank correlation, the
// Mann-Whitney U test with tie and continuity corrections, Welch's
// t-test, and Benjamini-Hochberg FDR adjustment.
package stats
