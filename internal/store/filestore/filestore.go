// Package filestore persists queue snapshots as JSON files on local disk,
// one file per queue name. Writes go through a temp file and rename so a
// crash mid-write leaves the previous snapshot intact rather than a torn
// one.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/store"
)

// Store implements store.SnapshotStore on top of a directory of snapshot
// files.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a file-backed snapshot store rooted at dir, creating the
// directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating snapshot directory: %v", domain.ErrStorage, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "filestore"),
	}, nil
}

// path returns the snapshot file for a queue name.
func (s *Store) path(queue string) string {
	return filepath.Join(s.dir, queue+".json")
}

// Load reads and decodes the snapshot for queue. A missing file is an
// empty queue, not an error. A corrupt file yields an empty list plus an
// error wrapping domain.ErrStorage.
func (s *Store) Load(ctx context.Context, queue string) ([]domain.QueueItem, error) {
	data, err := os.ReadFile(s.path(queue))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.QueueItem{}, nil
		}
		s.logger.Error("failed to read snapshot file",
			"queue", queue,
			"path", s.path(queue),
			"error", err)
		return []domain.QueueItem{}, fmt.Errorf(
			"%w: reading snapshot file: %v", domain.ErrStorage, err,
		)
	}

	items, err := store.DecodeSnapshot(data)
	if err != nil {
		s.logger.Error("snapshot file is corrupt",
			"queue", queue,
			"path", s.path(queue),
			"error", err)
		return []domain.QueueItem{}, err
	}
	return items, nil
}

// Save encodes items and atomically replaces the snapshot file for queue.
func (s *Store) Save(ctx context.Context, queue string, items []domain.QueueItem) error {
	data, err := store.EncodeSnapshot(items)
	if err != nil {
		return err
	}

	target := s.path(queue)
	tmp, err := os.CreateTemp(s.dir, queue+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp snapshot: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp snapshot: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp snapshot: %v", domain.ErrStorage, err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: replacing snapshot file: %v", domain.ErrStorage, err)
	}

	s.logger.Debug("snapshot saved",
		"queue", queue,
		"items", len(items),
		"bytes", len(data))
	return nil
}

// Clear removes the snapshot file for queue. Clearing a queue that was
// never saved is a no-op.
func (s *Store) Clear(ctx context.Context, queue string) error {
	if err := os.Remove(s.path(queue)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing snapshot file: %v", domain.ErrStorage, err)
	}
	return nil
}

// Interface guard.
var _ store.SnapshotStore = (*Store)(nil)
