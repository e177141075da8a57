// Package integrate aligns two samples with anchor-based batch
// correction. Cells from both samples are embedded in a joint PC
// space, mutual nearest neighbors across samples become candidate
// anchors, anchors are scored by shared-neighborhood consistency, and
// query cells are shifted by a weighted average of the expression
// differences of their nearest anchors.
package integrate
