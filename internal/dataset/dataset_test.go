package dataset_test

import (
	"testing"

	"celltide/internal/dataset"
	"celltide/internal/matrix"
)

func buildSample(t *testing.T, name string, entries []matrix.Entry, genes, barcodes []string) *dataset.Dataset {
	t.Helper()
	counts, err := matrix.NewCSC(len(genes), len(barcodes), entries)
	if err != nil {
		t.Fatalf("NewCSC failed: %v", err)
	}
	d, err := dataset.New(name, counts, genes, barcodes, "MT-")
	if err != nil {
		t.Fatalf("dataset.New failed: %v", err)
	}
	return d
}

func TestNewComputesQCMetadata(t *testing.T) {
	genes := []string{"GENEA", "GENEB", "MT-ND1"}
	// Cell 0: GENEA=4, MT-ND1=1 -> 2 genes, mito 0.2.
	// Cell 1: GENEB=10 -> 1 gene, mito 0.
	d := buildSample(t, "ctrl", []matrix.Entry{
		{Row: 0, Col: 0, Val: 4},
		{Row: 2, Col: 0, Val: 1},
		{Row: 1, Col: 1, Val: 10},
	}, genes, []string{"AAAC", "AAAG"})

	if d.NGenes[0] != 2 || d.NGenes[1] != 1 {
		t.Fatalf("unexpected detected-gene counts: %v", d.NGenes)
	}
	if d.MitoFrac[0] != 0.2 {
		t.Fatalf("unexpected mito fraction: %v", d.MitoFrac[0])
	}
	if d.MitoFrac[1] != 0 {
		t.Fatalf("expected zero mito fraction, got %v", d.MitoFrac[1])
	}
	if d.Samples[0] != "ctrl" {
		t.Fatalf("unexpected sample label %q", d.Samples[0])
	}
}

func TestFilterQCIsIdempotent(t *testing.T) {
	genes := []string{"GENEA", "GENEB", "MT-ND1"}
	d := buildSample(t, "ctrl", []matrix.Entry{
		{Row: 0, Col: 0, Val: 4},
		{Row: 1, Col: 0, Val: 2},
		{Row: 2, Col: 1, Val: 9}, // cell 1 is almost all mito
		{Row: 0, Col: 1, Val: 1},
		{Row: 0, Col: 2, Val: 3},
		{Row: 1, Col: 2, Val: 3},
	}, genes, []string{"C0", "C1", "C2"})

	filtered := d.FilterQC(2, 0.1)
	if filtered.NCells() != 2 {
		t.Fatalf("expected 2 cells after QC, got %d", filtered.NCells())
	}
	for _, cell := range filtered.Cells {
		if cell == "C1" {
			t.Fatal("high-mito cell survived QC")
		}
	}

	again := filtered.FilterQC(2, 0.1)
	if again.NCells() != filtered.NCells() {
		t.Fatalf("QC not idempotent: %d then %d cells", filtered.NCells(), again.NCells())
	}
	for i := range again.Cells {
		if again.Cells[i] != filtered.Cells[i] {
			t.Fatalf("QC not idempotent: cell order changed at %d", i)
		}
	}
}

func TestMergePreservesCountsAndTraceability(t *testing.T) {
	genes := []string{"GENEA", "GENEB"}
	a := buildSample(t, "ctrl", []matrix.Entry{{Row: 0, Col: 0, Val: 1}}, genes, []string{"X1", "X2"})
	b := buildSample(t, "treat", []matrix.Entry{{Row: 1, Col: 0, Val: 2}}, genes, []string{"X1"})

	merged, err := dataset.Merge(a, b)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if merged.NCells() != a.NCells()+b.NCells() {
		t.Fatalf("merge changed cell count: %d", merged.NCells())
	}

	seen := map[string]struct{}{}
	for i, id := range merged.Cells {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate cell id %q after merge", id)
		}
		seen[id] = struct{}{}
		if got := dataset.SampleFromCellID(id); got != merged.Samples[i] {
			t.Fatalf("prefix %q does not match sample metadata %q", got, merged.Samples[i])
		}
	}

	// Values survive under the new column order.
	if got := merged.Counts.At(1, 2); got != 2 {
		t.Fatalf("lost count value after merge: %v", got)
	}
}

func TestMergeRejectsGeneMismatch(t *testing.T) {
	a := buildSample(t, "ctrl", nil, []string{"GENEA"}, []string{"X1"})
	b := buildSample(t, "treat", nil, []string{"GENEB"}, []string{"X1"})
	if _, err := dataset.Merge(a, b); err == nil {
		t.Fatal("expected gene mismatch error")
	}
}

func TestSetClusteringValidatesAndOverwritesByName(t *testing.T) {
	d := buildSample(t, "ctrl", nil, []string{"GENEA"}, []string{"C0", "C1"})

	if err := d.SetClustering("res0.8", []int{0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if err := d.SetClustering("res0.8", []int{0, -1}); err == nil {
		t.Fatal("expected negative id error")
	}
	if err := d.SetClustering("res0.8", []int{0, 1}); err != nil {
		t.Fatalf("SetClustering failed: %v", err)
	}
	if err := d.SetClustering("res0.4", []int{0, 0}); err != nil {
		t.Fatalf("SetClustering failed: %v", err)
	}
	if err := d.SetClustering("res0.8", []int{1, 1}); err != nil {
		t.Fatalf("SetClustering failed: %v", err)
	}

	assign, ok := d.Clustering("res0.8")
	if !ok || assign[0] != 1 {
		t.Fatalf("rerun did not overwrite same-name assignment: %v", assign)
	}
	other, ok := d.Clustering("res0.4")
	if !ok || other[1] != 0 {
		t.Fatalf("other-name assignment was disturbed: %v", other)
	}
}

func TestClusterIDsAndGroups(t *testing.T) {
	assign := []int{2, 0, 2, 1, 0}
	ids := dataset.ClusterIDs(assign)
	if len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	groups := dataset.CellsByCluster(assign)
	total := 0
	for _, cells := range groups {
		total += len(cells)
	}
	if total != len(assign) {
		t.Fatalf("groups do not partition cells: %d of %d", total, len(assign))
	}
}
