package checkpoint

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID         string
	ConfigPath string
	Status     string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Checkpoint records one completed stage of a run and the snapshot it
// produced.
type Checkpoint struct {
	ID           int64
	RunID        string
	Stage        string
	SnapshotPath string
	SnapshotSHA  string
	CreatedAt    time.Time
}

// Artifact is a file a stage emitted for human inspection, such as a
// marker table or an embedding plot.
type Artifact struct {
	ID        int64
	RunID     string
	Stage     string
	Kind      string
	Path      string
	CreatedAt time.Time
}
