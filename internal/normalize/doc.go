// Package normalize implements per-sample depth normalization and
// variable feature selection: counts are rescaled to a common per-cell
// depth and log-transformed, genes are ranked by standardized
// dispersion, and a cross-sample step selects the genes recurrently
// ranked highly in every sample for integration.
package normalize
