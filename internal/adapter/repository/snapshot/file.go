package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	fileSuffix = ".snap"
	filePerm   = 0644
)

// FileMedium keeps one snapshot file per key under a directory. Saves are
// atomic: the data is written to a temp file, synced, and renamed.
type FileMedium struct {
	dir    string
	logger *slog.Logger
}

// NewFileMedium creates the directory if needed.
func NewFileMedium(dir string, logger *slog.Logger) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	return &FileMedium{dir: dir, logger: logger.With("component", "snapshot_file")}, nil
}

func (m *FileMedium) path(key string) string {
	return filepath.Join(m.dir, key+fileSuffix)
}

// Load returns the stored snapshot, or nil if none exists yet.
func (m *FileMedium) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(m.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the stored snapshot.
func (m *FileMedium) Save(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(m.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		m.logger.Warn("failed to chmod snapshot", "error", err)
	}
	if err := os.Rename(tmpPath, m.path(key)); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", key, err)
	}
	m.logger.Debug("snapshot saved", "key", key, "bytes", len(data))
	return nil
}
