package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"celltide/internal/config"
)

// Store manages run and checkpoint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database under the work
// directory and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.WorkDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// NewRun inserts a run in the running state and returns it.
func (s *Store) NewRun(ctx context.Context, configPath string) (*Run, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, config_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id, configPath, StatusRunning, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches a run by id. Returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, config_path, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently created run, or nil when the
// store is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, config_path, status, error, created_at, updated_at
         FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, config_path, status, error, created_at, updated_at
         FROM runs ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetRunStatus updates a run's status and optional error message.
func (s *Store) SetRunStatus(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(errMsg), now, id,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// SaveCheckpoint records a completed stage. Re-running a stage
// replaces its previous checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, runID, stage, snapshotPath, snapshotSHA string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO checkpoints (run_id, stage, snapshot_path, snapshot_sha256, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (run_id, stage) DO UPDATE SET
            snapshot_path = excluded.snapshot_path,
            snapshot_sha256 = excluded.snapshot_sha256,
            created_at = excluded.created_at`,
		runID, stage, snapshotPath, snapshotSHA, now,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint fetches one stage's checkpoint for a run, or nil.
func (s *Store) GetCheckpoint(ctx context.Context, runID, stage string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, run_id, stage, snapshot_path, snapshot_sha256, created_at
         FROM checkpoints WHERE run_id = ? AND stage = ?`,
		runID, stage,
	)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// ListCheckpoints returns a run's checkpoints in creation order.
func (s *Store) ListCheckpoints(ctx context.Context, runID string) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, stage, snapshot_path, snapshot_sha256, created_at
         FROM checkpoints WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// AddArtifact records an output file a stage produced.
func (s *Store) AddArtifact(ctx context.Context, runID, stage, kind, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (run_id, stage, kind, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, kind, path, now,
	)
	if err != nil {
		return fmt.Errorf("add artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns a run's artifacts in creation order.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, stage, kind, path, created_at
         FROM artifacts WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var arts []*Artifact
	for rows.Next() {
		var (
			a       Artifact
			created string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Stage, &a.Kind, &a.Path, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.CreatedAt = parseTimestamp(created)
		arts = append(arts, &a)
	}
	return arts, rows.Err()
}

// PruneRuns deletes all runs except the most recent keep, cascading to
// their checkpoints and artifacts. Snapshot files are left on disk for
// the caller to remove.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM runs WHERE id NOT IN (
            SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run              Run
		errMsg           sql.NullString
		created, updated string
	)
	if err := row.Scan(&run.ID, &run.ConfigPath, &run.Status, &errMsg, &created, &updated); err != nil {
		return nil, err
	}
	run.Error = errMsg.String
	run.CreatedAt = parseTimestamp(created)
	run.UpdatedAt = parseTimestamp(updated)
	return &run, nil
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp      Checkpoint
		created string
	)
	if err := row.Scan(&cp.ID, &cp.RunID, &cp.Stage, &cp.SnapshotPath, &cp.SnapshotSHA, &created); err != nil {
		return nil, err
	}
	cp.CreatedAt = parseTimestamp(created)
	return &cp, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
