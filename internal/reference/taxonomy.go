package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TaxonomyEntry is one curated cell type with its marker genes and the
// tissue it belongs to.
type TaxonomyEntry struct {
	Tissue   string   `json:"tissue"`
	CellType string   `json:"cellType"`
	Markers  []string `json:"markers"`
}

// Taxonomy is a curated marker-gene catalog across tissues.
type Taxonomy struct {
	Name    string
	Entries []TaxonomyEntry
}

// LoadTaxonomy parses a JSON taxonomy file: an array of entries with
// tissue, cellType and markers fields.
func LoadTaxonomy(name, path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %q: %w", name, err)
	}
	var entries []TaxonomyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("taxonomy %q: %w", name, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("taxonomy %q: no entries", name)
	}
	for i, e := range entries {
		if e.CellType == "" {
			return nil, fmt.Errorf("taxonomy %q: entry %d has no cellType", name, i)
		}
		if len(e.Markers) == 0 {
			return nil, fmt.Errorf("taxonomy %q: entry %q has no markers", name, e.CellType)
		}
	}
	return &Taxonomy{Name: name, Entries: entries}, nil
}

// RestrictTissues keeps only entries from the given tissues. Matching
// is case-insensitive. An unrelated tissue's cell types would otherwise
// produce implausible matches.
func (t *Taxonomy) RestrictTissues(tissues []string) (*Taxonomy, error) {
	if len(tissues) == 0 {
		return t, nil
	}
	allowed := make(map[string]struct{}, len(tissues))
	for _, tissue := range tissues {
		allowed[strings.ToLower(tissue)] = struct{}{}
	}
	out := &Taxonomy{Name: t.Name}
	for _, e := range t.Entries {
		if _, ok := allowed[strings.ToLower(e.Tissue)]; ok {
			out.Entries = append(out.Entries, e)
		}
	}
	if len(out.Entries) == 0 {
		return nil, fmt.Errorf("taxonomy %q: no entries for tissues %v", t.Name, tissues)
	}
	return out, nil
}

// Tissues lists the distinct tissues present, in file order.
func (t *Taxonomy) Tissues() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range t.Entries {
		if _, ok := seen[e.Tissue]; ok {
			continue
		}
		seen[e.Tissue] = struct{}{}
		out = append(out, e.Tissue)
	}
	return out
}
