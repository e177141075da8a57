// Package matrix provides the gene-by-cell matrix types used across
// the pipeline: a compressed sparse column matrix for raw and
// normalized counts (cells are columns), a small dense matrix for
// scaled and corrected feature data, and a reader for the standard
// three-file sparse layout (matrix.mtx, genes.tsv, barcodes.tsv).
package matrix
