package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"celltide/internal/matrix"
)

// ErrGeneMismatch reports samples whose gene lists differ.
var ErrGeneMismatch = errors.New("samples have different gene lists")

// Dataset holds one or more parallel matrices over a single cell
// ordering. All matrices share column (cell) identity; Genes indexes
// rows of Counts and LogNorm, Features indexes rows of Scaled and
// Corrected into Genes.
type Dataset struct {
	Genes []string
	Cells []string

	// Per-cell metadata, parallel to Cells.
	Samples  []string
	NGenes   []int
	MitoFrac []float64

	Counts  *matrix.CSC
	LogNorm *matrix.CSC

	Features  []int
	Scaled    *matrix.Dense
	Corrected *matrix.Dense

	PCs          *matrix.Dense
	VarExplained []float64
	Embedding    *matrix.Dense

	// Clusterings maps assignment names (e.g. "res0.8") to per-cell
	// cluster ids. Active names the authoritative assignment.
	Clusterings map[string][]int
	Active      string

	FinalLabels map[int]string
}

// New builds a single-sample dataset from raw counts, computing the
// per-cell QC metadata (detected genes, mitochondrial fraction).
func New(sample string, counts *matrix.CSC, genes, barcodes []string, mitoPrefix string) (*Dataset, error) {
	if counts == nil {
		return nil, errors.New("counts matrix is nil")
	}
	if len(genes) != counts.Rows {
		return nil, fmt.Errorf("%d genes for %d matrix rows", len(genes), counts.Rows)
	}
	if len(barcodes) != counts.Cols {
		return nil, fmt.Errorf("%d barcodes for %d matrix columns", len(barcodes), counts.Cols)
	}

	mito := make([]bool, len(genes))
	prefix := strings.ToUpper(mitoPrefix)
	for i, g := range genes {
		mito[i] = strings.HasPrefix(strings.ToUpper(g), prefix)
	}

	d := &Dataset{
		Genes:       append([]string(nil), genes...),
		Cells:       append([]string(nil), barcodes...),
		Samples:     make([]string, counts.Cols),
		NGenes:      make([]int, counts.Cols),
		MitoFrac:    make([]float64, counts.Cols),
		Counts:      counts,
		Clusterings: map[string][]int{},
	}
	for c := 0; c < counts.Cols; c++ {
		d.Samples[c] = sample
		d.NGenes[c] = counts.ColNNZ(c)
		total := 0.0
		mitoSum := 0.0
		counts.Column(c, func(row int, val float64) {
			total += val
			if mito[row] {
				mitoSum += val
			}
		})
		if total > 0 {
			d.MitoFrac[c] = mitoSum / total
		}
	}
	return d, nil
}

// NCells returns the number of cells.
func (d *Dataset) NCells() int { return len(d.Cells) }

// NGenesTotal returns the number of genes in the matrix.
func (d *Dataset) NGenesTotal() int { return len(d.Genes) }

// FilterQC returns a new dataset keeping only cells with at least
// minGenes detected genes and a mitochondrial fraction at or below
// maxMito. Applying the same thresholds twice changes nothing.
func (d *Dataset) FilterQC(minGenes int, maxMito float64) *Dataset {
	keep := make([]int, 0, d.NCells())
	for c := range d.Cells {
		if d.NGenes[c] >= minGenes && d.MitoFrac[c] <= maxMito {
			keep = append(keep, c)
		}
	}
	return d.SelectCells(keep)
}

// SelectCells returns a new dataset holding only the given cells, in
// order. Derived structures tied to the full cell set (PCs, embedding,
// clusterings) are dropped because they no longer apply.
func (d *Dataset) SelectCells(cells []int) *Dataset {
	out := &Dataset{
		Genes:       d.Genes,
		Cells:       gatherStrings(d.Cells, cells),
		Samples:     gatherStrings(d.Samples, cells),
		NGenes:      gatherInts(d.NGenes, cells),
		MitoFrac:    gatherFloats(d.MitoFrac, cells),
		Features:    d.Features,
		Clusterings: map[string][]int{},
	}
	if d.Counts != nil {
		out.Counts = d.Counts.SelectColumns(cells)
	}
	if d.LogNorm != nil {
		out.LogNorm = d.LogNorm.SelectColumns(cells)
	}
	if d.Scaled != nil {
		out.Scaled = d.Scaled.SelectColumnsDense(cells)
	}
	if d.Corrected != nil {
		out.Corrected = d.Corrected.SelectColumnsDense(cells)
	}
	return out
}

// Merge combines two single-sample datasets into one, prefixing each
// cell identifier with its sample name so identifiers stay unique and
// traceable. Gene lists must match exactly. The merged dataset carries
// both raw counts and, when present on both inputs, log-normalized data.
func Merge(a, b *Dataset) (*Dataset, error) {
	if len(a.Genes) != len(b.Genes) {
		return nil, ErrGeneMismatch
	}
	for i := range a.Genes {
		if a.Genes[i] != b.Genes[i] {
			return nil, fmt.Errorf("%w: row %d is %q vs %q", ErrGeneMismatch, i, a.Genes[i], b.Genes[i])
		}
	}

	counts, err := matrix.HStack(a.Counts, b.Counts)
	if err != nil {
		return nil, fmt.Errorf("merge counts: %w", err)
	}

	out := &Dataset{
		Genes:       a.Genes,
		Cells:       make([]string, 0, a.NCells()+b.NCells()),
		Samples:     append(append([]string(nil), a.Samples...), b.Samples...),
		NGenes:      append(append([]int(nil), a.NGenes...), b.NGenes...),
		MitoFrac:    append(append([]float64(nil), a.MitoFrac...), b.MitoFrac...),
		Counts:      counts,
		Clusterings: map[string][]int{},
	}
	for i, cell := range a.Cells {
		out.Cells = append(out.Cells, PrefixCellID(a.Samples[i], cell))
	}
	for i, cell := range b.Cells {
		out.Cells = append(out.Cells, PrefixCellID(b.Samples[i], cell))
	}

	if a.LogNorm != nil && b.LogNorm != nil {
		lognorm, err := matrix.HStack(a.LogNorm, b.LogNorm)
		if err != nil {
			return nil, fmt.Errorf("merge lognorm: %w", err)
		}
		out.LogNorm = lognorm
	}
	return out, nil
}

// PrefixCellID builds the sample-prefixed cell identifier used after
// merging.
func PrefixCellID(sample, barcode string) string {
	return sample + "_" + barcode
}

// SampleFromCellID recovers the sample prefix from a merged cell id.
func SampleFromCellID(id string) string {
	if i := strings.Index(id, "_"); i >= 0 {
		return id[:i]
	}
	return ""
}

// CellsOfSample returns the column indices belonging to a sample.
func (d *Dataset) CellsOfSample(sample string) []int {
	var cells []int
	for c, s := range d.Samples {
		if s == sample {
			cells = append(cells, c)
		}
	}
	return cells
}

// SampleNames returns the distinct sample names in first-seen order.
func (d *Dataset) SampleNames() []string {
	var names []string
	seen := map[string]struct{}{}
	for _, s := range d.Samples {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			names = append(names, s)
		}
	}
	return names
}

// SetClustering stores a named cluster assignment. Storing under an
// existing name overwrites that assignment only.
func (d *Dataset) SetClustering(name string, assign []int) error {
	if len(assign) != d.NCells() {
		return fmt.Errorf("assignment covers %d cells, dataset has %d", len(assign), d.NCells())
	}
	for c, id := range assign {
		if id < 0 {
			return fmt.Errorf("cell %d has negative cluster id %d", c, id)
		}
	}
	if d.Clusterings == nil {
		d.Clusterings = map[string][]int{}
	}
	d.Clusterings[name] = append([]int(nil), assign...)
	return nil
}

// Clustering returns the named assignment.
func (d *Dataset) Clustering(name string) ([]int, bool) {
	assign, ok := d.Clusterings[name]
	return assign, ok
}

// ActiveClustering returns the authoritative assignment.
func (d *Dataset) ActiveClustering() ([]int, bool) {
	if d.Active == "" {
		return nil, false
	}
	return d.Clustering(d.Active)
}

// ClusterIDs returns the sorted distinct cluster ids of an assignment.
func ClusterIDs(assign []int) []int {
	seen := map[int]struct{}{}
	for _, id := range assign {
		seen[id] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CellsByCluster groups cell indices by cluster id.
func CellsByCluster(assign []int) map[int][]int {
	groups := map[int][]int{}
	for c, id := range assign {
		groups[id] = append(groups[id], c)
	}
	return groups
}

func gatherStrings(src []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

func gatherInts(src []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

func gatherFloats(src []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}
