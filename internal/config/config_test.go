package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "celltide.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func minimalConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return `
[[samples]]
name = "ctrl"
dir = "` + filepath.Join(dir, "ctrl") + `"

[[samples]]
name = "treat"
dir = "` + filepath.Join(dir, "treat") + `"

[annotate]
reference = "hpca"
taxonomy = "cellmatch"
tissues = ["Brain"]
`
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig(t))

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.QC.MinGenes != 500 {
		t.Fatalf("unexpected qc.min_genes default: %d", cfg.QC.MinGenes)
	}
	if cfg.QC.MaxMitoFraction != 0.10 {
		t.Fatalf("unexpected qc.max_mito_fraction default: %v", cfg.QC.MaxMitoFraction)
	}
	if cfg.Normalize.VariableFeatures != 2000 {
		t.Fatalf("unexpected variable_features default: %d", cfg.Normalize.VariableFeatures)
	}
	if cfg.Cluster.Resolution != 0.8 {
		t.Fatalf("unexpected resolution default: %v", cfg.Cluster.Resolution)
	}
	if cfg.Cluster.Seed != 42 {
		t.Fatalf("unexpected seed default: %d", cfg.Cluster.Seed)
	}
	if len(cfg.Cluster.TreeResolutions) == 0 {
		t.Fatal("expected default tree resolutions")
	}
	if !cfg.Annotate.PerCluster {
		t.Fatal("expected per_cluster annotation by default")
	}
	if !filepath.IsAbs(cfg.Paths.WorkDir) {
		t.Fatalf("expected expanded work dir, got %q", cfg.Paths.WorkDir)
	}
}

func TestLoadRequiresTwoSamples(t *testing.T) {
	path := writeConfig(t, `
[[samples]]
name = "only"
dir = "/tmp/only"

[annotate]
reference = "hpca"
taxonomy = "cellmatch"
tissues = ["Brain"]
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for single sample")
	} else if !strings.Contains(err.Error(), "exactly two") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnderscoreSampleName(t *testing.T) {
	path := writeConfig(t, `
[[samples]]
name = "ctrl_a"
dir = "/tmp/a"

[[samples]]
name = "treat"
dir = "/tmp/b"

[annotate]
reference = "hpca"
taxonomy = "cellmatch"
tissues = ["Brain"]
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for underscore in sample name")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative min genes", func(c *config.Config) { c.QC.MinGenes = -1 }},
		{"mito fraction above one", func(c *config.Config) { c.QC.MaxMitoFraction = 1.5 }},
		{"zero scale factor", func(c *config.Config) { c.Normalize.ScaleFactor = 0 }},
		{"zero resolution", func(c *config.Config) { c.Cluster.Resolution = 0 }},
		{"no tissues", func(c *config.Config) { c.Annotate.Tissues = nil }},
		{"self merge", func(c *config.Config) { c.Labels.Merge = map[string]string{"3": "3"} }},
		{"non-numeric label key", func(c *config.Config) { c.Labels.Names = map[string]string{"x": "Neurons"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Samples = []config.Sample{{Name: "a", Dir: "/tmp/a"}, {Name: "b", Dir: "/tmp/b"}}
			cfg.Annotate.Reference = "hpca"
			cfg.Annotate.Taxonomy = "cellmatch"
			cfg.Annotate.Tissues = []string{"Brain"}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
