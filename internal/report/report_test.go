package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/annotate"
	"celltide/internal/dataset"
	"celltide/internal/matrix"
	"celltide/internal/report"
)

func testDataset(t *testing.T) (*dataset.Dataset, []int, *matrix.Dense) {
	t.Helper()
	lognorm, err := matrix.NewCSC(2, 4, []matrix.Entry{
		{Row: 0, Col: 0, Val: 2.5},
		{Row: 0, Col: 1, Val: 2.0},
		{Row: 1, Col: 2, Val: 3.0},
		{Row: 1, Col: 3, Val: 2.8},
	})
	if err != nil {
		t.Fatal(err)
	}
	ds := &dataset.Dataset{
		Genes:   []string{"SNAP25", "GFAP"},
		Cells:   []string{"s1_A", "s1_B", "s2_A", "s2_B"},
		Samples: []string{"s1", "s1", "s2", "s2"},
		LogNorm: lognorm,
	}
	assign := []int{0, 0, 1, 1}
	embedding := matrix.NewDense(2, 4)
	for i := 0; i < 4; i++ {
		embedding.Set(0, i, float64(i))
		embedding.Set(1, i, float64(i%2))
	}
	return ds, assign, embedding
}

func TestWriteMarkersTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.tsv")
	markers := map[int][]annotate.MarkerGene{
		1: {{Gene: "GFAP", Log2FC: 2.5, PValue: 0.001, FDR: 0.004, Pct1: 0.9, Pct2: 0.1}},
		0: {{Gene: "SNAP25", Log2FC: 3.1, PValue: 0.0005, FDR: 0.002, Pct1: 0.95, Pct2: 0.05}},
	}
	if err := report.WriteMarkersTSV(path, markers); err != nil {
		t.Fatalf("WriteMarkersTSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "0\tSNAP25\t") {
		t.Fatalf("clusters not ordered: %q", lines[1])
	}
}

func TestWriteAnnotationsTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.tsv")
	results := []*annotate.Result{
		{Strategy: "refcor", Labels: map[int]annotate.Assignment{
			0: {Label: "Neuron", Score: 0.8},
			1: {Label: annotate.Unassigned, Score: 0.1, Pruned: true},
		}},
		{Strategy: "enrich", Labels: map[int]annotate.Assignment{
			0: {Label: "Neuron", Score: 0.5},
			1: {Label: "Astrocyte", Score: 0.6},
		}},
	}
	finals := map[int]string{0: "Neuron", 1: "Astrocyte"}
	if err := report.WriteAnnotationsTSV(path, results, finals); err != nil {
		t.Fatalf("WriteAnnotationsTSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "refcor\trefcor_score\tenrich\tenrich_score\tfinal_label") {
		t.Fatalf("unexpected header: %q", strings.SplitN(text, "\n", 2)[0])
	}
	if !strings.Contains(text, annotate.Unassigned) {
		t.Fatal("pruned cluster not reported as unassigned")
	}
}

func TestWriteEmbeddingTSV(t *testing.T) {
	ds, assign, embedding := testDataset(t)
	path := filepath.Join(t.TempDir(), "embedding.tsv")
	if err := report.WriteEmbeddingTSV(path, ds, embedding, assign, map[int]string{0: "Neuron", 1: "Astrocyte"}); err != nil {
		t.Fatalf("WriteEmbeddingTSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 cells, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "s1_A\ts1\t") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}

	short := matrix.NewDense(2, 2)
	if err := report.WriteEmbeddingTSV(path, ds, short, assign, nil); err == nil {
		t.Fatal("expected error for embedding not covering all cells")
	}
}

func TestScatterSVG(t *testing.T) {
	ds, _, embedding := testDataset(t)
	path := filepath.Join(t.TempDir(), "embedding.svg")
	if err := report.ScatterSVG(path, "By sample", embedding, ds.Samples); err != nil {
		t.Fatalf("ScatterSVG failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "<svg") {
		t.Fatal("not an SVG document")
	}
	if got := strings.Count(text, "<circle"); got < 4 {
		t.Fatalf("expected at least one circle per cell, got %d", got)
	}
	if !strings.Contains(text, "By sample") {
		t.Fatal("title missing")
	}
}

func TestDotPlotSVG(t *testing.T) {
	ds, assign, _ := testDataset(t)
	path := filepath.Join(t.TempDir(), "panel.svg")
	if err := report.DotPlotSVG(path, ds, assign, []string{"SNAP25", "GFAP", "ABSENT"}); err != nil {
		t.Fatalf("DotPlotSVG failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "SNAP25") {
		t.Fatal("panel gene label missing")
	}

	if err := report.DotPlotSVG(path, ds, assign, []string{"ABSENT"}); err == nil {
		t.Fatal("expected error when no panel gene is present")
	}
}
