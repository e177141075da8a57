package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/checkpoint"
	"celltide/internal/config"
	"celltide/internal/dataset"
	"celltide/internal/matrix"
)

func testStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	store, err := checkpoint.Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/tmp/celltide.toml")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.Status != checkpoint.StatusRunning {
		t.Fatalf("new run status %q", run.Status)
	}
	if run.ID == "" {
		t.Fatal("run has no id")
	}

	if err := store.SetRunStatus(ctx, run.ID, checkpoint.StatusFailed, "integrate: no anchors"); err != nil {
		t.Fatalf("SetRunStatus failed: %v", err)
	}
	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != checkpoint.StatusFailed || got.Error == "" {
		t.Fatalf("status not persisted: %+v", got)
	}

	if err := store.SetRunStatus(ctx, "no-such-run", checkpoint.StatusCompleted, ""); err == nil {
		t.Fatal("expected error updating unknown run")
	}

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest == nil || latest.ID != run.ID {
		t.Fatalf("latest run mismatch: %+v", latest)
	}
}

func TestCheckpointReplacesOnRerun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	run, err := store.NewRun(ctx, "cfg")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SaveCheckpoint(ctx, run.ID, "cluster", "/snap/v1.gob", "aaa"); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if err := store.SaveCheckpoint(ctx, run.ID, "cluster", "/snap/v2.gob", "bbb"); err != nil {
		t.Fatalf("second SaveCheckpoint failed: %v", err)
	}
	cp, err := store.GetCheckpoint(ctx, run.ID, "cluster")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp.SnapshotPath != "/snap/v2.gob" || cp.SnapshotSHA != "bbb" {
		t.Fatalf("checkpoint not replaced: %+v", cp)
	}

	missing, err := store.GetCheckpoint(ctx, run.ID, "annotate")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for absent stage, got %+v", missing)
	}

	cps, err := store.ListCheckpoints(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(cps))
	}
}

func TestArtifactsAndPrune(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, err := store.NewRun(ctx, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.NewRun(ctx, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddArtifact(ctx, first.ID, "annotate", "markers_tsv", "/out/markers.tsv"); err != nil {
		t.Fatalf("AddArtifact failed: %v", err)
	}

	deleted, err := store.PruneRuns(ctx, 1)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 pruned run, got %d", deleted)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second.ID {
		t.Fatalf("prune kept wrong run: %+v", runs)
	}
	arts, err := store.ListArtifacts(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(arts) != 0 {
		t.Fatalf("artifacts not cascaded: %d remain", len(arts))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	counts, err := matrix.NewCSC(3, 2, []matrix.Entry{
		{Row: 0, Col: 0, Val: 4},
		{Row: 2, Col: 1, Val: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.New("s1", counts, []string{"G1", "G2", "MT-CO1"}, []string{"AAA", "CCC"}, "MT-")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "snap", "qc.gob")
	sha, err := checkpoint.WriteSnapshot(path, ds)
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if len(sha) != 64 {
		t.Fatalf("unexpected sha length %d", len(sha))
	}

	got, err := checkpoint.ReadSnapshot(path, sha)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if got.NCells() != 2 || len(got.Genes) != 3 {
		t.Fatalf("snapshot lost data: %d cells, %d genes", got.NCells(), len(got.Genes))
	}
	if got.Counts.At(0, 0) != 4 {
		t.Fatal("counts not preserved")
	}
}

func TestSnapshotDetectsCorruption(t *testing.T) {
	counts, err := matrix.NewCSC(1, 1, []matrix.Entry{{Row: 0, Col: 0, Val: 2}})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.New("s1", counts, []string{"G1"}, []string{"AAA"}, "MT-")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "snap.gob")
	sha, err := checkpoint.WriteSnapshot(path, ds)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = checkpoint.ReadSnapshot(path, sha)
	if err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Fatalf("expected corruption error, got %v", err)
	}
}
