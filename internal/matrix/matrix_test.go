package matrix_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/matrix"
)

func TestNewCSCSumsDuplicatesAndOrdersColumns(t *testing.T) {
	m, err := matrix.NewCSC(3, 2, []matrix.Entry{
		{Row: 2, Col: 1, Val: 4},
		{Row: 0, Col: 0, Val: 1},
		{Row: 0, Col: 0, Val: 2},
		{Row: 1, Col: 1, Val: 3},
	})
	if err != nil {
		t.Fatalf("NewCSC failed: %v", err)
	}
	if m.NNZ() != 3 {
		t.Fatalf("expected 3 stored entries, got %d", m.NNZ())
	}
	if got := m.At(0, 0); got != 3 {
		t.Fatalf("duplicate entries not summed: %v", got)
	}
	if got := m.At(1, 1); got != 3 {
		t.Fatalf("unexpected value at (1,1): %v", got)
	}
	if got := m.At(2, 0); got != 0 {
		t.Fatalf("expected implicit zero, got %v", got)
	}
	if got := m.ColSum(1); got != 7 {
		t.Fatalf("unexpected column sum: %v", got)
	}
}

func TestCSCRejectsOutOfRangeEntry(t *testing.T) {
	if _, err := matrix.NewCSC(2, 2, []matrix.Entry{{Row: 2, Col: 0, Val: 1}}); err == nil {
		t.Fatal("expected error for out-of-range row")
	}
}

func TestSelectColumnsPreservesValues(t *testing.T) {
	m, err := matrix.NewCSC(2, 3, []matrix.Entry{
		{Row: 0, Col: 0, Val: 1},
		{Row: 1, Col: 1, Val: 2},
		{Row: 0, Col: 2, Val: 3},
	})
	if err != nil {
		t.Fatalf("NewCSC failed: %v", err)
	}
	sub := m.SelectColumns([]int{2, 0})
	if sub.Cols != 2 {
		t.Fatalf("expected 2 columns, got %d", sub.Cols)
	}
	if got := sub.At(0, 0); got != 3 {
		t.Fatalf("column reorder lost value: %v", got)
	}
	if got := sub.At(0, 1); got != 1 {
		t.Fatalf("column reorder lost value: %v", got)
	}
}

func TestHStackConcatenates(t *testing.T) {
	a, _ := matrix.NewCSC(2, 1, []matrix.Entry{{Row: 0, Col: 0, Val: 1}})
	b, _ := matrix.NewCSC(2, 2, []matrix.Entry{{Row: 1, Col: 1, Val: 5}})
	m, err := matrix.HStack(a, b)
	if err != nil {
		t.Fatalf("HStack failed: %v", err)
	}
	if m.Cols != 3 || m.Rows != 2 {
		t.Fatalf("unexpected dims %dx%d", m.Rows, m.Cols)
	}
	if got := m.At(0, 0); got != 1 {
		t.Fatalf("lost left block value: %v", got)
	}
	if got := m.At(1, 2); got != 5 {
		t.Fatalf("lost right block value: %v", got)
	}
}

func TestRowStats(t *testing.T) {
	// Row 0 over three columns: 2, 0, 4.
	m, _ := matrix.NewCSC(1, 3, []matrix.Entry{
		{Row: 0, Col: 0, Val: 2},
		{Row: 0, Col: 2, Val: 4},
	})
	means, variances := m.RowStats()
	if means[0] != 2 {
		t.Fatalf("unexpected mean %v", means[0])
	}
	if variances[0] != 4 {
		t.Fatalf("unexpected variance %v", variances[0])
	}
}

const mtxBody = `%%MatrixMarket matrix coordinate integer general
% sample comment
3 2 3
1 1 5
3 1 1
2 2 7
`

func TestReadMTX(t *testing.T) {
	m, err := matrix.ReadMTX(strings.NewReader(mtxBody))
	if err != nil {
		t.Fatalf("ReadMTX failed: %v", err)
	}
	if m.Rows != 3 || m.Cols != 2 {
		t.Fatalf("unexpected dims %dx%d", m.Rows, m.Cols)
	}
	if got := m.At(0, 0); got != 5 {
		t.Fatalf("unexpected value: %v", got)
	}
	if got := m.At(1, 1); got != 7 {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestReadMTXRejectsEntryCountMismatch(t *testing.T) {
	body := "%%MatrixMarket matrix coordinate integer general\n2 2 3\n1 1 1\n"
	if _, err := matrix.ReadMTX(strings.NewReader(body)); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestReadSampleDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "matrix.mtx"), mtxBody)
	writeFile(t, filepath.Join(dir, "genes.tsv"), "ENSG01\tGENEA\nENSG02\tGENEB\nENSG03\tMT-ND1\n")
	writeFile(t, filepath.Join(dir, "barcodes.tsv"), "AAAC-1\nAAAG-1\n")

	counts, genes, barcodes, err := matrix.ReadSampleDir(dir)
	if err != nil {
		t.Fatalf("ReadSampleDir failed: %v", err)
	}
	if counts.Rows != 3 || counts.Cols != 2 {
		t.Fatalf("unexpected dims %dx%d", counts.Rows, counts.Cols)
	}
	if genes[2] != "MT-ND1" {
		t.Fatalf("expected gene symbol column, got %q", genes[2])
	}
	if barcodes[0] != "AAAC-1" {
		t.Fatalf("unexpected barcode %q", barcodes[0])
	}
}

func TestReadSampleDirMissingIsFatal(t *testing.T) {
	if _, _, _, err := matrix.ReadSampleDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReadSampleDirDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "matrix.mtx"), mtxBody)
	writeFile(t, filepath.Join(dir, "genes.tsv"), "ENSG01\tGENEA\n")
	writeFile(t, filepath.Join(dir, "barcodes.tsv"), "AAAC-1\nAAAG-1\n")
	if _, _, _, err := matrix.ReadSampleDir(dir); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
