package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show cluster counts and parent links across resolutions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResultTable(ctx, cmd, "cluster_tree.tsv")
		},
	}
}

func newLabelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Show the per-strategy annotation comparison table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResultTable(ctx, cmd, "annotations.tsv")
		},
	}
}

func newMarkersCommand(ctx *commandContext) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "markers [strategy]",
		Short: "Show a strategy's marker gene table (default: demarkers)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy := "demarkers"
			if len(args) == 1 {
				strategy = args[0]
			}
			file := "markers_" + fileSafeName(strategy) + ".tsv"
			headers, rows, err := loadResultTSV(ctx, file)
			if err != nil {
				return err
			}
			if top > 0 {
				rows = topPerCluster(rows, top)
			}
			writeTable(cmd.OutOrStdout(), headers, rows, numericColumns(headers)...)
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "Limit output to the first N genes per cluster")
	return cmd
}

func showResultTable(ctx *commandContext, cmd *cobra.Command, file string) error {
	headers, rows, err := loadResultTSV(ctx, file)
	if err != nil {
		return err
	}
	writeTable(cmd.OutOrStdout(), headers, rows, numericColumns(headers)...)
	return nil
}

func loadResultTSV(ctx *commandContext, file string) ([]string, [][]string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(cfg.Paths.OutputDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%s not found; complete a run first", path)
		}
		return nil, nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	headers := strings.Split(lines[0], "\t")
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, strings.Split(line, "\t"))
	}
	return headers, rows, nil
}

// topPerCluster keeps the first n rows of each cluster, relying on the
// tables being written cluster-major with genes already ranked.
func topPerCluster(rows [][]string, n int) [][]string {
	kept := make([][]string, 0, len(rows))
	counts := map[string]int{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		cluster := row[0]
		if counts[cluster] >= n {
			continue
		}
		counts[cluster]++
		kept = append(kept, row)
	}
	return kept
}

func numericColumns(headers []string) []int {
	var cols []int
	for i, h := range headers {
		switch h {
		case "cluster", "size", "parent", "overlap", "resolution",
			"log2fc", "p_value", "fdr", "pct.1", "pct.2", "x", "y":
			cols = append(cols, i)
		default:
			if strings.HasSuffix(h, "_score") {
				cols = append(cols, i)
			}
		}
	}
	return cols
}

// fileSafeName mirrors how the annotate stage names per-strategy
// marker tables on disk.
func fileSafeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
