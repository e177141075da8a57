// Package report writes the human-facing outputs of a run: tabular
// marker and annotation files for spreadsheet inspection, and static
// SVG plots of the embedding and curated marker panels. Everything
// here is advisory material for the manual labeling step.
package report
