package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"celltide/internal/checkpoint"
	"celltide/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline from raw counts to final labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePipeline(ctx, cmd, func(runCtx context.Context, mgr *pipeline.Manager) (string, error) {
				return mgr.Run(runCtx)
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Continue an interrupted or failed run from its last checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return executePipeline(ctx, cmd, func(runCtx context.Context, mgr *pipeline.Manager) (string, error) {
				return mgr.Resume(runCtx, runID)
			})
		},
	}
}

func executePipeline(ctx *commandContext, cmd *cobra.Command, invoke func(context.Context, *pipeline.Manager) (string, error)) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		return err
	}
	return ctx.withStore(func(store *checkpoint.Store) error {
		runCtx, stop := signalContext()
		defer stop()

		mgr := pipeline.NewManager(cfg, ctx.configPath, store, logger)
		runID, err := invoke(runCtx, mgr)
		if errors.Is(err, pipeline.ErrLocked) {
			return fmt.Errorf("work directory %s is in use by another celltide process", cfg.Paths.WorkDir)
		}
		out := cmd.OutOrStdout()
		if err != nil {
			if runID != "" {
				fmt.Fprintf(out, "Run %s did not finish; resume it with `celltide resume %s`\n", runID, runID)
			}
			return err
		}
		fmt.Fprintf(out, "Run %s completed; results are in %s\n", runID, cfg.Paths.OutputDir)
		return nil
	})
}
