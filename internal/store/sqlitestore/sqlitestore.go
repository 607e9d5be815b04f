// Package sqlitestore persists queue snapshots in an embedded SQLite
// database, one row per queue name. It suits client-side deployments that
// want transactional durability without managing snapshot files directly.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	queue      TEXT PRIMARY KEY,
	items      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store implements store.SnapshotStore backed by a SQLite database file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the snapshot schema exists. Use ":memory:" for an ephemeral
// store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite database: %v", domain.ErrStorage, err)
	}
	// SQLite handles one writer at a time; a second connection would see
	// "database is locked" under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating snapshot schema: %v", domain.ErrStorage, err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "sqlitestore"),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads and decodes the snapshot row for queue. A missing row is an
// empty queue. A corrupt snapshot yields an empty list plus an error
// wrapping domain.ErrStorage.
func (s *Store) Load(ctx context.Context, queue string) ([]domain.QueueItem, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT items FROM snapshots WHERE queue = ?`, queue,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.QueueItem{}, nil
	}
	if err != nil {
		s.logger.Error("failed to read snapshot row", "queue", queue, "error", err)
		return []domain.QueueItem{}, fmt.Errorf(
			"%w: reading snapshot row: %v", domain.ErrStorage, err,
		)
	}

	items, err := store.DecodeSnapshot(data)
	if err != nil {
		s.logger.Error("snapshot row is corrupt", "queue", queue, "error", err)
		return []domain.QueueItem{}, err
	}
	return items, nil
}

// Save encodes items and upserts the snapshot row for queue.
func (s *Store) Save(ctx context.Context, queue string, items []domain.QueueItem) error {
	data, err := store.EncodeSnapshot(items)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (queue, items, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(queue) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at`,
		queue, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Error("failed to upsert snapshot row", "queue", queue, "error", err)
		return fmt.Errorf("%w: upserting snapshot row: %v", domain.ErrStorage, err)
	}

	s.logger.Debug("snapshot saved",
		"queue", queue,
		"items", len(items),
		"bytes", len(data))
	return nil
}

// Clear removes the snapshot row for queue.
func (s *Store) Clear(ctx context.Context, queue string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE queue = ?`, queue,
	); err != nil {
		return fmt.Errorf("%w: deleting snapshot row: %v", domain.ErrStorage, err)
	}
	return nil
}

// Interface guard.
var _ store.SnapshotStore = (*Store)(nil)
