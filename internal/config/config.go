package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir      string `toml:"work_dir"`
	LogDir       string `toml:"log_dir"`
	ReferenceDir string `toml:"reference_dir"`
	OutputDir    string `toml:"output_dir"`
}

// Sample names one input sample and the directory holding its
// matrix.mtx, genes.tsv, and barcodes.tsv files.
type Sample struct {
	Name string `toml:"name"`
	Dir  string `toml:"dir"`
}

// QC contains cell filtering thresholds.
type QC struct {
	MinGenes        int     `toml:"min_genes"`
	MaxMitoFraction float64 `toml:"max_mito_fraction"`
	MitoPrefix      string  `toml:"mito_prefix"`
}

// Normalize contains normalization and feature selection parameters.
type Normalize struct {
	ScaleFactor         float64 `toml:"scale_factor"`
	VariableFeatures    int     `toml:"variable_features"`
	IntegrationFeatures int     `toml:"integration_features"`
}

// Integrate contains anchor-based batch correction parameters.
type Integrate struct {
	Dims           int     `toml:"dims"`
	KAnchor        int     `toml:"k_anchor"`
	KScore         int     `toml:"k_score"`
	KWeight        int     `toml:"k_weight"`
	MinAnchorScore float64 `toml:"min_anchor_score"`
}

// Cluster contains dimensionality reduction and community detection
// parameters. Neighbors left at zero uses the sqrt(cell count) heuristic.
type Cluster struct {
	Dims            int       `toml:"dims"`
	Neighbors       int       `toml:"neighbors"`
	Resolution      float64   `toml:"resolution"`
	TreeResolutions []float64 `toml:"tree_resolutions"`
	SNNPrune        float64   `toml:"snn_prune"`
	Seed            int64     `toml:"seed"`
}

// Annotate contains annotation strategy configuration.
type Annotate struct {
	Reference   string              `toml:"reference"`
	Atlases     []string            `toml:"atlases"`
	Taxonomy    string              `toml:"taxonomy"`
	Tissues     []string            `toml:"tissues"`
	PerCluster  bool                `toml:"per_cluster"`
	PruneMargin float64             `toml:"prune_margin"`
	MaxPValue   float64             `toml:"max_p_value"`
	MinLogFC    float64             `toml:"min_log_fc"`
	TopMarkers  int                 `toml:"top_markers"`
	Panel       map[string][]string `toml:"panel"`
}

// Labels contains the curated final labeling: a cluster id to name map
// and optional merges folding one cluster into another. Both are
// experiment-specific judgment calls supplied by the analyst.
type Labels struct {
	Names map[string]string `toml:"names"`
	Merge map[string]string `toml:"merge"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for an analysis run.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Samples   []Sample  `toml:"samples"`
	QC        QC        `toml:"qc"`
	Normalize Normalize `toml:"normalize"`
	Integrate Integrate `toml:"integrate"`
	Cluster   Cluster   `toml:"cluster"`
	Annotate  Annotate  `toml:"annotate"`
	Labels    Labels    `toml:"labels"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/celltide/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("celltide.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.OutputDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SampleByName returns the configured sample with the given name.
func (c *Config) SampleByName(name string) (Sample, bool) {
	for _, s := range c.Samples {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
