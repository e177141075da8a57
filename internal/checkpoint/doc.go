// Package checkpoint persists pipeline progress so an interrupted run
// can resume at the last completed stage. Run and stage bookkeeping
// lives in a SQLite database under the work directory; the dataset
// itself is snapshotted to gob files whose SHA-256 is verified on
// resume.
package checkpoint
