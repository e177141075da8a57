// Package annotate labels clusters with four independent strategies:
// rank correlation against a labeled reference profile set, the same
// correlation against multiple atlas references, marker enrichment
// against a tissue-restricted cell-type taxonomy, and one-vs-rest
// differential expression with a curated marker panel. Strategies
// never mutate the clustering; each returns a label or an explicit
// unassigned for every cluster.
package annotate
