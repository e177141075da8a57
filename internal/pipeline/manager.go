package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"celltide/internal/checkpoint"
	"celltide/internal/config"
	"celltide/internal/logging"
)

// ErrLocked reports that another process holds the work directory.
var ErrLocked = errors.New("pipeline: work directory is locked by another run")

// Manager executes the stages in order with checkpointing. A work
// directory hosts at most one live run at a time.
type Manager struct {
	cfg        *config.Config
	configPath string
	store      *checkpoint.Store
	logger     *slog.Logger
}

// NewManager wires a manager. The store stays owned by the caller.
func NewManager(cfg *config.Config, configPath string, store *checkpoint.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{cfg: cfg, configPath: configPath, store: store, logger: logger}
}

// Run executes the full pipeline as a new run and returns its id.
func (m *Manager) Run(ctx context.Context) (string, error) {
	unlock, err := m.acquireLock()
	if err != nil {
		return "", err
	}
	defer unlock()

	run, err := m.store.NewRun(ctx, m.configPath)
	if err != nil {
		return "", err
	}
	st := &State{Cfg: m.cfg, RunID: run.ID, store: m.store}
	return run.ID, m.execute(ctx, st, Stages())
}

// Resume continues the given run (or the latest when runID is empty)
// from the stage after its last checkpoint.
func (m *Manager) Resume(ctx context.Context, runID string) (string, error) {
	unlock, err := m.acquireLock()
	if err != nil {
		return "", err
	}
	defer unlock()

	run, err := m.findRun(ctx, runID)
	if err != nil {
		return "", err
	}

	stages := Stages()
	remaining, st, err := m.restore(ctx, run.ID, stages)
	if err != nil {
		return run.ID, err
	}
	if len(remaining) == 0 {
		m.logger.Info("run already complete", logging.String(logging.FieldRunID, run.ID))
		return run.ID, nil
	}
	if err := m.store.SetRunStatus(ctx, run.ID, checkpoint.StatusRunning, ""); err != nil {
		return run.ID, err
	}
	return run.ID, m.execute(ctx, st, remaining)
}

func (m *Manager) findRun(ctx context.Context, runID string) (*checkpoint.Run, error) {
	if runID == "" {
		run, err := m.store.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, errors.New("pipeline: no runs to resume")
		}
		return run, nil
	}
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("pipeline: run %s not found", runID)
	}
	return run, nil
}

// restore finds the last checkpointed stage of a run, loads its
// snapshot and returns the stages still to execute.
func (m *Manager) restore(ctx context.Context, runID string, stages []Handler) ([]Handler, *State, error) {
	st := &State{Cfg: m.cfg, RunID: runID, store: m.store}
	lastDone := -1
	var last *checkpoint.Checkpoint
	for i, stage := range stages {
		cp, err := m.store.GetCheckpoint(ctx, runID, stage.Name())
		if err != nil {
			return nil, nil, err
		}
		if cp == nil {
			break
		}
		lastDone = i
		last = cp
	}
	if last != nil {
		data, err := checkpoint.ReadSnapshot(last.SnapshotPath, last.SnapshotSHA)
		if err != nil {
			return nil, nil, fmt.Errorf("restore %s: %w", last.Stage, err)
		}
		st.Data = data
		m.logger.Info("run restored",
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldStage, last.Stage))
	}
	return stages[lastDone+1:], st, nil
}

func (m *Manager) execute(ctx context.Context, st *State, stages []Handler) error {
	for _, stage := range stages {
		stageCtx := logging.WithStage(logging.WithRunID(ctx, st.RunID), stage.Name())
		st.Log = logging.WithContext(stageCtx, m.logger)

		start := time.Now()
		st.Log.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		if err := stage.Prepare(stageCtx, st); err != nil {
			return m.failRun(ctx, st, stage.Name(), err)
		}
		if err := stage.Execute(stageCtx, st); err != nil {
			if errors.Is(err, context.Canceled) {
				st.Log.Debug("stage interrupted by shutdown")
				return err
			}
			return m.failRun(ctx, st, stage.Name(), err)
		}

		if err := m.saveCheckpoint(stageCtx, st, stage.Name()); err != nil {
			return m.failRun(ctx, st, stage.Name(), err)
		}
		st.Log.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(start)))
	}

	if err := m.store.SetRunStatus(ctx, st.RunID, checkpoint.StatusCompleted, ""); err != nil {
		return err
	}
	m.logger.Info("run completed", logging.String(logging.FieldRunID, st.RunID))
	return nil
}

func (m *Manager) saveCheckpoint(ctx context.Context, st *State, stage string) error {
	path := filepath.Join(m.cfg.Paths.WorkDir, "snapshots", st.RunID, stage+".gob")
	sha, err := checkpoint.WriteSnapshot(path, st.Data)
	if err != nil {
		return err
	}
	return m.store.SaveCheckpoint(ctx, st.RunID, stage, path, sha)
}

func (m *Manager) failRun(ctx context.Context, st *State, stage string, err error) error {
	wrapped := fmt.Errorf("stage %s: %w", stage, err)
	st.Log.Error("stage failed", logging.Error(wrapped))
	if statusErr := m.store.SetRunStatus(ctx, st.RunID, checkpoint.StatusFailed, wrapped.Error()); statusErr != nil {
		st.Log.Error("failed to persist run failure", logging.Error(statusErr))
	}
	return wrapped
}

// acquireLock takes the exclusive work-directory lock without
// blocking; a held lock means another pipeline process is active.
func (m *Manager) acquireLock() (func(), error) {
	if err := os.MkdirAll(m.cfg.Paths.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("work directory: %w", err)
	}
	lock := flock.New(filepath.Join(m.cfg.Paths.WorkDir, "celltide.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		_ = lock.Unlock()
	}, nil
}
