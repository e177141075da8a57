package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"celltide/internal/checkpoint"
	"celltide/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show a run's stage progress and recorded outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *checkpoint.Store) error {
				cmdCtx := cmd.Context()
				var run *checkpoint.Run
				var err error
				if len(args) == 1 {
					run, err = store.GetRun(cmdCtx, args[0])
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", args[0])
					}
				} else {
					run, err = store.LatestRun(cmdCtx)
					if err != nil {
						return err
					}
					if run == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet; start one with `celltide run`.")
						return nil
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:     %s\n", run.ID)
				fmt.Fprintf(out, "Status:  %s\n", run.Status)
				fmt.Fprintf(out, "Config:  %s\n", run.ConfigPath)
				fmt.Fprintf(out, "Started: %s\n", formatTime(run.CreatedAt))
				fmt.Fprintf(out, "Updated: %s\n", formatTime(run.UpdatedAt))
				if run.Error != "" {
					fmt.Fprintf(out, "Error:   %s\n", run.Error)
				}
				fmt.Fprintln(out)

				checkpoints, err := store.ListCheckpoints(cmdCtx, run.ID)
				if err != nil {
					return err
				}
				done := map[string]*checkpoint.Checkpoint{}
				for _, cp := range checkpoints {
					done[cp.Stage] = cp
				}
				rows := make([][]string, 0, len(pipeline.StageNames()))
				for _, stage := range pipeline.StageNames() {
					state := "pending"
					completed := ""
					if cp, ok := done[stage]; ok {
						state = "done"
						completed = formatTime(cp.CreatedAt)
					}
					rows = append(rows, []string{stage, state, completed})
				}
				writeTable(out, []string{"stage", "state", "completed"}, rows)

				artifacts, err := store.ListArtifacts(cmdCtx, run.ID)
				if err != nil {
					return err
				}
				if len(artifacts) > 0 {
					fmt.Fprintln(out)
					artRows := make([][]string, 0, len(artifacts))
					for _, a := range artifacts {
						artRows = append(artRows, []string{a.Stage, a.Kind, a.Path})
					}
					writeTable(out, []string{"stage", "kind", "path"}, artRows)
				}
				return nil
			})
		},
	}
}

func newStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "stages",
		Short:       "List the pipeline stages in execution order",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, stage := range pipeline.StageNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, stage)
			}
			return nil
		},
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage recorded runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *checkpoint.Store) error {
				runs, err := store.ListRuns(cmd.Context())
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{run.ID, run.Status, formatTime(run.CreatedAt), formatTime(run.UpdatedAt)})
				}
				writeTable(cmd.OutOrStdout(), []string{"run", "status", "started", "updated"}, rows)
				return nil
			})
		},
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs and their checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative, got %d", keep)
			}
			return ctx.withStore(func(store *checkpoint.Store) error {
				removed, err := store.PruneRuns(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s, kept the most recent %d.\n", pluralRuns(removed), keep)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 5, "Number of most recent runs to keep")
	return cmd
}

func pluralRuns(n int64) string {
	if n == 1 {
		return "1 run"
	}
	return strconv.FormatInt(n, 10) + " runs"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
