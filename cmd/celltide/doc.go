// Command celltide drives the two-sample single-cell analysis
// pipeline: ingest, QC, normalization, integration, clustering,
// annotation, and final labeling, with resumable checkpoints between
// stages. Results land as TSV tables and SVG plots in the configured
// output directory and can be inspected from the same CLI.
package main
