// Package dataset defines the expression container shared by every
// pipeline stage: parallel matrices over one cell ordering (raw counts,
// log-normalized values, scaled and batch-corrected features) plus
// per-cell metadata and named cluster assignments.
//
// Stages return new snapshots rather than mutating their input, so
// branching comparisons (several resolutions, several annotation
// strategies) can coexist without accidental overwrite.
package dataset
