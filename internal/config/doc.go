// Package config loads, normalizes, and validates the TOML
// configuration that drives an analysis run: sample directories, QC
// thresholds, feature counts, integration and clustering parameters,
// annotation references, and the curated final label set.
//
// All analysis thresholds live here rather than as literals in the
// pipeline so a run is fully described by its config file.
package config
