package sqlitestore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/drift/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "drift.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItems() []domain.QueueItem {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []domain.QueueItem{
		{
			ID:          domain.NewItemID(domain.TaskTypeFileTransfer, now),
			Type:        domain.TaskTypeFileTransfer,
			Payload:     []byte(`{"path":"/tmp/export.csv"}`),
			CreatedAt:   now,
			ScheduledAt: now,
			MaxRetries:  3,
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	items := testItems()

	require.NoError(t, s.Save(ctx, "background", items))

	loaded, err := s.Load(ctx, "background")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, items[0].ID, loaded[0].ID)
	assert.Equal(t, items[0].Type, loaded[0].Type)
	assert.True(t, items[0].CreatedAt.Equal(loaded[0].CreatedAt))
}

func TestLoad_MissingRow(t *testing.T) {
	s := openTestStore(t)

	loaded, err := s.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSave_Upserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	items := testItems()

	require.NoError(t, s.Save(ctx, "background", items))
	require.NoError(t, s.Save(ctx, "background", []domain.QueueItem{}))

	loaded, err := s.Load(ctx, "background")
	require.NoError(t, err)
	assert.Empty(t, loaded, "second save should replace the first snapshot")
}

func TestLoad_CorruptRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (queue, items, updated_at) VALUES (?, ?, ?)`,
		"background", []byte("garbage bytes"), "2025-06-01T12:00:00Z",
	)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "background")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Empty(t, loaded)
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "background", testItems()))
	require.NoError(t, s.Clear(ctx, "background"))

	loaded, err := s.Load(ctx, "background")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
