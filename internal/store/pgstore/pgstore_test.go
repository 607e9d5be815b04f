package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDBTX fails every operation so error paths can be exercised without a
// live database. Read behavior goes through *sql.Row, which cannot be
// constructed by hand, so Load is covered by integration tests against a
// real database.
type mockDBTX struct {
	execErr error
}

func (m *mockDBTX) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, m.execErr
}

func (m *mockDBTX) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, m.execErr
}

func (m *mockDBTX) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func TestNew(t *testing.T) {
	s := New(&mockDBTX{}, testLogger())
	require.NotNil(t, s)
	assert.NotNil(t, s.db)
	assert.NotNil(t, s.logger)
}

func TestSave_ExecError(t *testing.T) {
	dbErr := errors.New("connection refused")
	s := New(&mockDBTX{execErr: dbErr}, testLogger())

	err := s.Save(context.Background(), "requests", []domain.QueueItem{})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestClear_ExecError(t *testing.T) {
	dbErr := errors.New("connection refused")
	s := New(&mockDBTX{execErr: dbErr}, testLogger())

	err := s.Clear(context.Background(), "requests")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ store.SnapshotStore = New(&mockDBTX{}, testLogger())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "migrations directory should ship at least the snapshots table")
}
