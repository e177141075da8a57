package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"celltide/internal/dataset"
)

// FinalLabels applies the curator's decisions: optional cluster merges
// followed by explicit names per cluster. Merges happen first, so the
// name map is keyed by post-merge cluster ids. Clusters the curator
// left unnamed keep a generic title-cased placeholder so the final
// labeling is total.
func FinalLabels(assign []int, names map[string]string, merges map[string]string) ([]int, map[int]string, error) {
	merged, err := applyMerges(assign, merges)
	if err != nil {
		return nil, nil, err
	}

	labels := make(map[int]string)
	for _, c := range dataset.ClusterIDs(merged) {
		key := strconv.Itoa(c)
		if name, ok := names[key]; ok && name != "" {
			labels[c] = normalizeLabel(name)
			continue
		}
		labels[c] = "Cluster " + key
	}
	return merged, labels, nil
}

// normalizeLabel title-cases labels written in all lowercase but keeps
// curated casing (gene symbols, acronyms) untouched.
func normalizeLabel(name string) string {
	if name != strings.ToLower(name) {
		return name
	}
	return cases.Title(language.English).String(name)
}

// applyMerges folds source clusters into targets and renumbers the
// result densely. Chained merges (a into b, b into c) are rejected to
// keep the configuration unambiguous.
func applyMerges(assign []int, merges map[string]string) ([]int, error) {
	if len(merges) == 0 {
		out := make([]int, len(assign))
		copy(out, assign)
		return out, nil
	}

	present := map[int]struct{}{}
	for _, c := range assign {
		present[c] = struct{}{}
	}

	remap := map[int]int{}
	for _, src := range sortedKeys(merges) {
		from, err := strconv.Atoi(src)
		if err != nil {
			return nil, fmt.Errorf("merge source %q is not a cluster id", src)
		}
		to, err := strconv.Atoi(merges[src])
		if err != nil {
			return nil, fmt.Errorf("merge target %q is not a cluster id", merges[src])
		}
		if _, ok := present[from]; !ok {
			return nil, fmt.Errorf("merge source cluster %d does not exist", from)
		}
		if _, ok := present[to]; !ok {
			return nil, fmt.Errorf("merge target cluster %d does not exist", to)
		}
		if _, ok := merges[merges[src]]; ok {
			return nil, fmt.Errorf("chained merge through cluster %s", merges[src])
		}
		remap[from] = to
	}

	out := make([]int, len(assign))
	for i, c := range assign {
		if to, ok := remap[c]; ok {
			c = to
		}
		out[i] = c
	}

	// Renumber densely, preserving relative order of surviving ids.
	ids := dataset.ClusterIDs(out)
	dense := make(map[int]int, len(ids))
	for i, c := range ids {
		dense[c] = i
	}
	for i, c := range out {
		out[i] = dense[c]
	}
	return out, nil
}
