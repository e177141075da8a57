// Package graph builds the cell neighbor graphs and partitions them:
// exact k-nearest-neighbor search in PC space, shared-nearest-neighbor
// edges weighted by neighborhood Jaccard overlap, and seeded Louvain
// modularity optimization with a resolution parameter. A cluster tree
// relates assignments across resolutions for manual inspection.
package graph
