package testsupport

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/config"
)

// Scenario geometry: two samples of 100 cells over 2000 genes with
// three known cell populations. Ten cells per sample carry a high
// mitochondrial fraction and must fall to QC, leaving 90.
const (
	ScenarioGenes       = 2000
	ScenarioCells       = 100
	ScenarioQCSurvivors = 90
	ScenarioTypes       = 3
)

// TypeNames are the ground-truth populations, indexed by type id.
var TypeNames = [ScenarioTypes]string{"Neuron", "Astrocyte", "Microglia"}

// gene row layout of the synthetic matrix
const (
	mitoRows      = 5  // rows 0..4
	markerStart   = 10 // 20 rows per type from here
	markersPerTyp = 20
	batchStart    = 70 // 20 rows only expressed in the second sample
	batchRows     = 20
	baseStart     = 100 // 600 candidate background genes
	baseRows      = 600
)

// Scenario describes the generated ground truth.
type Scenario struct {
	Genes []string
	// CellType maps merged cell ids (sample_barcode) of QC-surviving
	// cells to their ground-truth type.
	CellType map[string]int
}

// WriteScenario writes both configured sample directories in the
// three-file sparse layout and returns the ground truth. Generation is
// deterministic for a given config.
func WriteScenario(t testing.TB, cfg *config.Config) *Scenario {
	t.Helper()
	if len(cfg.Samples) != 2 {
		t.Fatalf("scenario needs 2 samples, config has %d", len(cfg.Samples))
	}

	genes := scenarioGenes()
	sc := &Scenario{Genes: genes, CellType: map[string]int{}}
	for si, sample := range cfg.Samples {
		rng := rand.New(rand.NewSource(int64(1000 + si)))
		writeSample(t, sample.Dir, genes, si, rng, sc, sample.Name)
	}
	return sc
}

func scenarioGenes() []string {
	genes := make([]string, ScenarioGenes)
	for i := range genes {
		genes[i] = fmt.Sprintf("G%04d", i)
	}
	mito := []string{"MT-ND1", "MT-ND2", "MT-ND3", "MT-CO1", "MT-CO2"}
	copy(genes, mito)
	prefixes := []string{"NEU", "AST", "MIC"}
	for typ := 0; typ < ScenarioTypes; typ++ {
		for j := 0; j < markersPerTyp; j++ {
			genes[markerStart+typ*markersPerTyp+j] = fmt.Sprintf("%s%03d", prefixes[typ], j+1)
		}
	}
	for j := 0; j < batchRows; j++ {
		genes[batchStart+j] = fmt.Sprintf("BATCH%02d", j+1)
	}
	return genes
}

func writeSample(t testing.TB, dir string, genes []string, sampleIdx int, rng *rand.Rand, sc *Scenario, sampleName string) {
	t.Helper()

	type entry struct {
		row, col, val int
	}
	var entries []entry
	add := func(row, col, val int) {
		entries = append(entries, entry{row: row, col: col, val: val})
	}

	barcodes := make([]string, ScenarioCells)
	for c := 0; c < ScenarioCells; c++ {
		barcodes[c] = fmt.Sprintf("BC%03d", c)
		typ := c % ScenarioTypes

		// Strong markers of the cell's own type.
		for j := 0; j < markersPerTyp; j++ {
			add(markerStart+typ*markersPerTyp+j, c, 5+rng.Intn(4))
		}

		// Random background so cells are not identical within a type.
		for g := 0; g < baseRows; g++ {
			if rng.Float64() < 0.33 {
				add(baseStart+g, c, 1+rng.Intn(2))
			}
		}

		// The second sample carries a uniform batch signature.
		if sampleIdx == 1 {
			for j := 0; j < batchRows; j++ {
				add(batchStart+j, c, 2)
			}
		}

		if c < ScenarioQCSurvivors {
			add(0, c, 1)
			add(1, c, 1)
			sc.CellType[sampleName+"_"+barcodes[c]] = typ
		} else {
			// Dying cell: mitochondrial reads swamp the library.
			for m := 0; m < mitoRows; m++ {
				add(m, c, 30)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	var mtx strings.Builder
	mtx.WriteString("%%MatrixMarket matrix coordinate integer general\n")
	fmt.Fprintf(&mtx, "%d %d %d\n", ScenarioGenes, ScenarioCells, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&mtx, "%d %d %d\n", e.row+1, e.col+1, e.val)
	}
	writeScenarioFile(t, filepath.Join(dir, "matrix.mtx"), mtx.String())

	var geneList strings.Builder
	for i, g := range genes {
		fmt.Fprintf(&geneList, "ENSG%08d\t%s\n", i, g)
	}
	writeScenarioFile(t, filepath.Join(dir, "genes.tsv"), geneList.String())

	writeScenarioFile(t, filepath.Join(dir, "barcodes.tsv"), strings.Join(barcodes, "\n")+"\n")
}

func writeScenarioFile(t testing.TB, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
