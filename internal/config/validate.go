package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSamples(); err != nil {
		return err
	}
	if err := c.validateQC(); err != nil {
		return err
	}
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateIntegrate(); err != nil {
		return err
	}
	if err := c.validateCluster(); err != nil {
		return err
	}
	if err := c.validateAnnotate(); err != nil {
		return err
	}
	if err := c.validateLabels(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSamples() error {
	if len(c.Samples) != 2 {
		return fmt.Errorf("samples: exactly two sample directories are required, got %d", len(c.Samples))
	}
	seen := map[string]struct{}{}
	for i, s := range c.Samples {
		if s.Name == "" {
			return fmt.Errorf("samples[%d].name must be set", i)
		}
		if strings.ContainsAny(s.Name, "_\t ") {
			return fmt.Errorf("samples[%d].name %q must not contain spaces or underscores (used as cell id prefix)", i, s.Name)
		}
		if s.Dir == "" {
			return fmt.Errorf("samples[%d].dir must be set", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("samples: duplicate name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateQC() error {
	if c.QC.MinGenes < 0 {
		return errors.New("qc.min_genes must not be negative")
	}
	if c.QC.MaxMitoFraction < 0 || c.QC.MaxMitoFraction > 1 {
		return errors.New("qc.max_mito_fraction must be between 0 and 1")
	}
	if strings.TrimSpace(c.QC.MitoPrefix) == "" {
		return errors.New("qc.mito_prefix must be set")
	}
	return nil
}

func (c *Config) validateNormalize() error {
	if c.Normalize.ScaleFactor <= 0 {
		return errors.New("normalize.scale_factor must be positive")
	}
	return ensurePositive(map[string]int{
		"normalize.variable_features":    c.Normalize.VariableFeatures,
		"normalize.integration_features": c.Normalize.IntegrationFeatures,
	})
}

func (c *Config) validateIntegrate() error {
	if err := ensurePositive(map[string]int{
		"integrate.dims":     c.Integrate.Dims,
		"integrate.k_anchor": c.Integrate.KAnchor,
		"integrate.k_score":  c.Integrate.KScore,
		"integrate.k_weight": c.Integrate.KWeight,
	}); err != nil {
		return err
	}
	if c.Integrate.MinAnchorScore < 0 || c.Integrate.MinAnchorScore > 1 {
		return errors.New("integrate.min_anchor_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateCluster() error {
	if err := ensurePositive(map[string]int{
		"cluster.dims": c.Cluster.Dims,
	}); err != nil {
		return err
	}
	if c.Cluster.Neighbors < 0 {
		return errors.New("cluster.neighbors must not be negative (zero selects the sqrt heuristic)")
	}
	if c.Cluster.Resolution <= 0 {
		return errors.New("cluster.resolution must be positive")
	}
	for _, r := range c.Cluster.TreeResolutions {
		if r <= 0 {
			return errors.New("cluster.tree_resolutions values must be positive")
		}
	}
	if c.Cluster.SNNPrune < 0 || c.Cluster.SNNPrune >= 1 {
		return errors.New("cluster.snn_prune must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateAnnotate() error {
	if c.Annotate.Reference == "" {
		return errors.New("annotate.reference must name a reference profile set")
	}
	if c.Annotate.Taxonomy == "" {
		return errors.New("annotate.taxonomy must name a marker taxonomy file")
	}
	if len(c.Annotate.Tissues) == 0 {
		return errors.New("annotate.tissues must list at least one plausible tissue")
	}
	if c.Annotate.PruneMargin < 0 {
		return errors.New("annotate.prune_margin must not be negative")
	}
	if c.Annotate.MaxPValue <= 0 || c.Annotate.MaxPValue > 1 {
		return errors.New("annotate.max_p_value must be in (0, 1]")
	}
	if c.Annotate.MinLogFC < 0 {
		return errors.New("annotate.min_log_fc must not be negative")
	}
	if c.Annotate.TopMarkers <= 0 {
		return errors.New("annotate.top_markers must be positive")
	}
	return nil
}

func (c *Config) validateLabels() error {
	for key := range c.Labels.Names {
		if _, err := strconv.Atoi(key); err != nil {
			return fmt.Errorf("labels.names: key %q is not a cluster id", key)
		}
	}
	for from, into := range c.Labels.Merge {
		if _, err := strconv.Atoi(from); err != nil {
			return fmt.Errorf("labels.merge: key %q is not a cluster id", from)
		}
		if _, err := strconv.Atoi(into); err != nil {
			return fmt.Errorf("labels.merge: value %q is not a cluster id", into)
		}
		if from == into {
			return fmt.Errorf("labels.merge: cluster %s cannot merge into itself", from)
		}
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
