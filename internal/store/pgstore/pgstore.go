// Package pgstore persists queue snapshots in PostgreSQL, one jsonb row
// per queue name. It suits deployments where several services share a
// central database; note that it provides no cross-process drain mutual
// exclusion (see the engine documentation).
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements store.SnapshotStore backed by PostgreSQL.
type Store struct {
	db     store.DBTX
	logger *slog.Logger
}

// Open connects to the database at url using the pgx stdlib driver, runs
// pending schema migrations, and returns a ready store.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, *sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening postgres connection: %v", domain.ErrStorage, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%w: pinging postgres: %v", domain.ErrStorage, err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return New(db, logger), db, nil
}

// New wraps an existing connection or transaction. Callers that need
// migrations run should use Open or call Migrate themselves.
func New(db store.DBTX, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "pgstore"),
	}
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%w: setting goose dialect: %v", domain.ErrStorage, err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("%w: applying migrations: %v", domain.ErrStorage, err)
	}
	return nil
}

// Load reads and decodes the snapshot row for queue. A missing row is an
// empty queue. A corrupt snapshot yields an empty list plus an error
// wrapping domain.ErrStorage.
func (s *Store) Load(ctx context.Context, queue string) ([]domain.QueueItem, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT items FROM snapshots WHERE queue = $1`, queue,
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
		INSERT INTO snapshots (queue, items, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (queue) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`,
		queue, data, time.Now().UTC(),
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
		`DELETE FROM snapshots WHERE queue = $1`, queue,
	); err != nil {
		return fmt.Errorf("%w: deleting snapshot row: %v", domain.ErrStorage, err)
	}
	return nil
}

// Interface guard.
var _ store.SnapshotStore = (*Store)(nil)
