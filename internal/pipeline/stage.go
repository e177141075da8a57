package pipeline

import (
	"context"
	"log/slog"

	"celltide/internal/config"
	"celltide/internal/dataset"
)

// Stage names, in execution order.
const (
	StageIngest    = "ingest"
	StageQC        = "qc"
	StageNormalize = "normalize"
	StageIntegrate = "integrate"
	StageReduce    = "reduce"
	StageCluster   = "cluster"
	StageAnnotate  = "annotate"
	StageFinalize  = "finalize"
)

// Handler describes the contract the manager needs from each stage.
// Prepare validates preconditions cheaply; Execute does the work and
// mutates the state.
type Handler interface {
	Name() string
	Prepare(ctx context.Context, st *State) error
	Execute(ctx context.Context, st *State) error
}

// State is the mutable payload threaded through the stages. The
// dataset carries everything later stages need, so snapshotting it is
// enough to resume.
type State struct {
	Cfg   *config.Config
	RunID string
	Log   *slog.Logger
	Data  *dataset.Dataset

	store artifactRecorder
}

// artifactRecorder is the slice of the checkpoint store the stages
// need; they record output files but never manage runs themselves.
type artifactRecorder interface {
	AddArtifact(ctx context.Context, runID, stage, kind, path string) error
}

// RecordArtifact registers an output file under the current run. A nil
// recorder (as in unit tests) makes it a no-op.
func (st *State) RecordArtifact(ctx context.Context, stage, kind, path string) error {
	if st.store == nil {
		return nil
	}
	return st.store.AddArtifact(ctx, st.RunID, stage, kind, path)
}

// Stages returns the handlers in execution order.
func Stages() []Handler {
	return []Handler{
		&ingestStage{},
		&qcStage{},
		&normalizeStage{},
		&integrateStage{},
		&reduceStage{},
		&clusterStage{},
		&annotateStage{},
		&finalizeStage{},
	}
}

// StageNames returns the ordered stage names.
func StageNames() []string {
	stages := Stages()
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name()
	}
	return out
}
