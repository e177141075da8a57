// Package reference loads the external data the annotation strategies
// compare against: tabular expression profile sets (one mean profile
// per labeled cell type) and a curated marker-gene taxonomy restricted
// by tissue. References live as files under the configured reference
// directory and are resolved by name; a missing reference is an error,
// never silently skipped.
package reference
