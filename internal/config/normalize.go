package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSamples(); err != nil {
		return err
	}
	c.normalizeAnnotate()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReferenceDir, err = expandPath(c.Paths.ReferenceDir); err != nil {
		return fmt.Errorf("paths.reference_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSamples() error {
	for i := range c.Samples {
		c.Samples[i].Name = strings.TrimSpace(c.Samples[i].Name)
		expanded, err := expandPath(strings.TrimSpace(c.Samples[i].Dir))
		if err != nil {
			return fmt.Errorf("samples[%d].dir: %w", i, err)
		}
		c.Samples[i].Dir = expanded
	}
	return nil
}

func (c *Config) normalizeAnnotate() {
	c.Annotate.Reference = strings.TrimSpace(c.Annotate.Reference)
	c.Annotate.Taxonomy = strings.TrimSpace(c.Annotate.Taxonomy)
	for i := range c.Annotate.Atlases {
		c.Annotate.Atlases[i] = strings.TrimSpace(c.Annotate.Atlases[i])
	}
	for i := range c.Annotate.Tissues {
		c.Annotate.Tissues[i] = strings.TrimSpace(c.Annotate.Tissues[i])
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
