package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"celltide/internal/dataset"
)

// WriteSnapshot serializes the dataset to path and returns the hex
// SHA-256 of the written bytes. The file is written via a temp file
// and rename so a crash never leaves a truncated snapshot behind.
func WriteSnapshot(path string, ds *dataset.Dataset) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("snapshot temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	hasher := sha256.New()
	enc := gob.NewEncoder(io.MultiWriter(tmp, hasher))
	if err := enc.Encode(ds); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ReadSnapshot loads a dataset snapshot, verifying its SHA-256 against
// the recorded value when one is given.
func ReadSnapshot(path, expectedSHA string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if expectedSHA != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != expectedSHA {
			return nil, fmt.Errorf("snapshot %s is corrupt: sha256 %s, recorded %s", path, got, expectedSHA)
		}
	}
	var ds dataset.Dataset
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &ds, nil
}
