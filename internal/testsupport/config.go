// Package testsupport generates the synthetic inputs the integration
// tests run against: a two-sample scenario with known cell types, the
// reference files the annotation strategies consume, and a config
// seeded with unique temp directories per test.
package testsupport

import (
	"path/filepath"
	"testing"

	"celltide/internal/config"
)

// ConfigOption allows callers to customize the generated test
// configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test and parameters sized for the synthetic scenario. It does not
// write any sample or reference data; pair it with WriteScenario and
// WriteReferences.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReferenceDir = filepath.Join(base, "references")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Samples = []config.Sample{
		{Name: "ctrl", Dir: filepath.Join(base, "samples", "ctrl")},
		{Name: "stim", Dir: filepath.Join(base, "samples", "stim")},
	}

	// The synthetic cells detect a few hundred genes each; the
	// production default of 500 would reject everything.
	cfg.QC.MinGenes = 100

	cfg.Normalize.VariableFeatures = 200
	cfg.Normalize.IntegrationFeatures = 100

	cfg.Integrate.Dims = 10
	cfg.Integrate.KScore = 15
	cfg.Integrate.KWeight = 20

	cfg.Cluster.Dims = 10
	cfg.Cluster.TreeResolutions = []float64{0.4, 1.2}

	cfg.Annotate.Reference = "cortex"
	cfg.Annotate.Atlases = []string{"fetal_brain", "adult_brain"}
	cfg.Annotate.Taxonomy = "celltypes"
	cfg.Annotate.Tissues = []string{"Brain"}
	cfg.Annotate.PerCluster = true
	cfg.Annotate.Panel = map[string][]string{
		"Neuron":    {"NEU001", "NEU002", "NEU003"},
		"Astrocyte": {"AST001", "AST002", "AST003"},
		"Microglia": {"MIC001", "MIC002", "MIC003"},
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithResolution overrides the clustering resolution.
func WithResolution(resolution float64) ConfigOption {
	return func(c *config.Config) {
		c.Cluster.Resolution = resolution
	}
}

// WithFinalLabels sets the curated names and merges.
func WithFinalLabels(names, merge map[string]string) ConfigOption {
	return func(c *config.Config) {
		c.Labels.Names = names
		c.Labels.Merge = merge
	}
}
