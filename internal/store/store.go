package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/drift/internal/domain"
)

// SnapshotStore persists the full ordered queue snapshot for one named
// queue instance. Save has overwrite semantics: the stored snapshot is
// replaced wholesale, never diffed, so a Save with equal input is
// idempotent. Durability is at-most-once: items enqueued after the last
// successful Save may be lost to a crash, but a loaded snapshot never
// contains duplicates.
// Version: 1.0
type SnapshotStore interface {
	// Load returns the persisted snapshot in stored order. A missing
	// snapshot yields an empty slice and no error. A corrupt snapshot
	// yields an empty slice and an error wrapping domain.ErrStorage; the
	// engine treats that as non-fatal and continues memory-only.
	Load(ctx context.Context, queue string) ([]domain.QueueItem, error)

	// Save replaces the persisted snapshot with items.
	Save(ctx context.Context, queue string, items []domain.QueueItem) error

	// Clear removes the persisted snapshot entirely.
	Clear(ctx context.Context, queue string) error
}

// DBTX abstracts the database access layer for the SQL-backed stores.
// It is implemented by both *sql.DB and *sql.Tx, so store code works with
// either a connection pool or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
