// Package reduce implements dimensionality reduction: principal
// component projection of the corrected feature matrix (seeded subspace
// iteration, so reruns are identical) and the seeded 2-D force-directed
// embedding used for visualization only.
package reduce
