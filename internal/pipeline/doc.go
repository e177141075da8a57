// Package pipeline orchestrates the analysis stages: ingest, qc,
// normalize, integrate, reduce, cluster, annotate and finalize. A
// manager runs the stages in order under an exclusive work-directory
// lock, snapshotting the dataset after each stage so a later run can
// resume where a failed one stopped.
package pipeline
