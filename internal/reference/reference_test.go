package reference_test

import (
	"os"
	"path/filepath"
	"testing"

	"celltide/internal/reference"
)

const profileTSV = "gene\tNeuron\tAstrocyte\n" +
	"SNAP25\t8.1\t0.3\n" +
	"STMN2\t6.5\t0.2\n" +
	"GFAP\t0.4\t7.9\n" +
	"AQP4\t0.1\t6.2\n" +
	"ACTB\t5.0\t5.0\n"

const taxonomyJSON = `[
  {"tissue": "Brain", "cellType": "Neuron", "markers": ["SNAP25", "STMN2"]},
  {"tissue": "Brain", "cellType": "Astrocyte", "markers": ["GFAP", "AQP4"]},
  {"tissue": "Liver", "cellType": "Hepatocyte", "markers": ["ALB"]}
]`

func writeRegistry(t *testing.T) *reference.Registry {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cortex.tsv"), []byte(profileTSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "celltypes.json"), []byte(taxonomyJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := reference.NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

func TestProfileSetParsing(t *testing.T) {
	reg := writeRegistry(t)
	ps, err := reg.ProfileSet("cortex")
	if err != nil {
		t.Fatalf("ProfileSet failed: %v", err)
	}
	if len(ps.Labels) != 2 || ps.Labels[0] != "Neuron" {
		t.Fatalf("unexpected labels %v", ps.Labels)
	}
	if len(ps.Genes) != 5 {
		t.Fatalf("expected 5 genes, got %d", len(ps.Genes))
	}
	if got := ps.Values.At(ps.GeneIndex("GFAP"), 1); got != 7.9 {
		t.Fatalf("GFAP astrocyte value %v, want 7.9", got)
	}
	if ps.GeneIndex("MISSING") != -1 {
		t.Fatal("expected -1 for unknown gene")
	}
}

func TestDiscriminatingGenesExcludeFlatGenes(t *testing.T) {
	reg := writeRegistry(t)
	ps, err := reg.ProfileSet("cortex")
	if err != nil {
		t.Fatalf("ProfileSet failed: %v", err)
	}
	genes := ps.DiscriminatingGenes(2)
	set := map[string]bool{}
	for _, g := range genes {
		set[g] = true
	}
	for _, want := range []string{"SNAP25", "GFAP"} {
		if !set[want] {
			t.Fatalf("expected %s among discriminating genes %v", want, genes)
		}
	}
	if set["ACTB"] {
		t.Fatalf("flat housekeeping gene selected: %v", genes)
	}
}

func TestProfileSetRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tsv")
	if err := os.WriteFile(path, []byte("gene\tA\tB\nSNAP25\t1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := reference.LoadProfileSet("bad", path); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestTaxonomyRestrictTissues(t *testing.T) {
	reg := writeRegistry(t)
	tax, err := reg.Taxonomy("celltypes")
	if err != nil {
		t.Fatalf("Taxonomy failed: %v", err)
	}
	if got := tax.Tissues(); len(got) != 2 {
		t.Fatalf("expected 2 tissues, got %v", got)
	}
	brain, err := tax.RestrictTissues([]string{"brain"})
	if err != nil {
		t.Fatalf("RestrictTissues failed: %v", err)
	}
	if len(brain.Entries) != 2 {
		t.Fatalf("expected 2 brain entries, got %d", len(brain.Entries))
	}
	if _, err := tax.RestrictTissues([]string{"kidney"}); err == nil {
		t.Fatal("expected error for tissue with no entries")
	}
}

func TestRegistryMissingReference(t *testing.T) {
	reg := writeRegistry(t)
	if _, err := reg.ProfileSet("absent"); err == nil {
		t.Fatal("expected error for missing profile set")
	}
	if _, err := reg.Taxonomy("absent"); err == nil {
		t.Fatal("expected error for missing taxonomy")
	}
}
