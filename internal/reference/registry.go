package reference

import (
	"fmt"
	"os"
	"path/filepath"
)

// Registry resolves named references from a directory. Profile sets
// are stored as <name>.tsv, taxonomies as <name>.json.
type Registry struct {
	dir string
}

// NewRegistry returns a registry rooted at dir. The directory must
// exist; references are loaded lazily by name.
func NewRegistry(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reference directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reference directory %s is not a directory", dir)
	}
	return &Registry{dir: dir}, nil
}

// ProfileSet loads the named profile set.
func (r *Registry) ProfileSet(name string) (*ProfileSet, error) {
	return LoadProfileSet(name, filepath.Join(r.dir, name+".tsv"))
}

// Taxonomy loads the named taxonomy.
func (r *Registry) Taxonomy(name string) (*Taxonomy, error) {
	return LoadTaxonomy(name, filepath.Join(r.dir, name+".json"))
}
