package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"celltide/internal/annotate"
	"celltide/internal/dataset"
	"celltide/internal/matrix"
)

// WriteMarkersTSV writes one differential-expression table: one row
// per gene per cluster, ordered by cluster then effect size.
func WriteMarkersTSV(path string, markers map[int][]annotate.MarkerGene) error {
	var b strings.Builder
	b.WriteString("cluster\tgene\tlog2fc\tp_value\tfdr\tpct.1\tpct.2\n")
	for _, c := range sortedClusters(markers) {
		for _, m := range markers[c] {
			fmt.Fprintf(&b, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				c, m.Gene,
				formatFloat(m.Log2FC), formatFloat(m.PValue), formatFloat(m.FDR),
				formatFloat(m.Pct1), formatFloat(m.Pct2))
		}
	}
	return writeFile(path, b.String())
}

// WriteAnnotationsTSV writes the side-by-side label comparison: one
// row per cluster, one label and score column pair per strategy.
func WriteAnnotationsTSV(path string, results []*annotate.Result, finalLabels map[int]string) error {
	clusterSet := map[int]struct{}{}
	for _, res := range results {
		for c := range res.Labels {
			clusterSet[c] = struct{}{}
		}
	}
	clusters := make([]int, 0, len(clusterSet))
	for c := range clusterSet {
		clusters = append(clusters, c)
	}
	sort.Ints(clusters)

	var b strings.Builder
	b.WriteString("cluster")
	for _, res := range results {
		fmt.Fprintf(&b, "\t%s\t%s_score", res.Strategy, res.Strategy)
	}
	if finalLabels != nil {
		b.WriteString("\tfinal_label")
	}
	b.WriteString("\n")

	for _, c := range clusters {
		b.WriteString(strconv.Itoa(c))
		for _, res := range results {
			a := res.Labels[c]
			fmt.Fprintf(&b, "\t%s\t%s", a.Label, formatFloat(a.Score))
		}
		if finalLabels != nil {
			fmt.Fprintf(&b, "\t%s", finalLabels[c])
		}
		b.WriteString("\n")
	}
	return writeFile(path, b.String())
}

// WriteEmbeddingTSV writes per-cell embedding coordinates with sample,
// cluster and optional final label columns for external plotting.
func WriteEmbeddingTSV(path string, ds *dataset.Dataset, embedding *matrix.Dense, assign []int, labels map[int]string) error {
	if embedding == nil || embedding.Cols != len(ds.Cells) {
		return fmt.Errorf("embedding does not cover all %d cells", len(ds.Cells))
	}
	var b strings.Builder
	b.WriteString("cell\tsample\tx\ty\tcluster\tlabel\n")
	for i, cell := range ds.Cells {
		label := ""
		if labels != nil {
			label = labels[assign[i]]
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\n",
			cell, ds.Samples[i],
			formatFloat(embedding.At(0, i)), formatFloat(embedding.At(1, i)),
			assign[i], label)
	}
	return writeFile(path, b.String())
}

func sortedClusters(markers map[int][]annotate.MarkerGene) []int {
	out := make([]int, 0, len(markers))
	for c := range markers {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func writeFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
