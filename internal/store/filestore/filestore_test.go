package filestore

import (
	"context"
	"io"
	"log/slog"
	"os"
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

func testItems() []domain.QueueItem {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []domain.QueueItem{
		{
			ID:          domain.NewItemID(domain.TaskTypeDataSync, now),
			Type:        domain.TaskTypeDataSync,
			Payload:     []byte(`{"entity":"profile"}`),
			CreatedAt:   now,
			ScheduledAt: now,
			MaxRetries:  3,
		},
		{
			ID:          domain.NewItemID(domain.TaskTypeBackup, now.Add(time.Second)),
			Type:        domain.TaskTypeBackup,
			Payload:     []byte(`{"target":"s3://bucket/daily"}`),
			CreatedAt:   now.Add(time.Second),
			ScheduledAt: now.Add(5 * time.Second),
			RetryCount:  1,
			MaxRetries:  5,
			Priority:    2,
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	items := testItems()

	require.NoError(t, s.Save(ctx, "requests", items))

	loaded, err := s.Load(ctx, "requests")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, items[0].ID, loaded[0].ID)
	assert.Equal(t, items[1].ID, loaded[1].ID)
	assert.Equal(t, items[1].RetryCount, loaded[1].RetryCount)
	assert.True(t, items[1].ScheduledAt.Equal(loaded[1].ScheduledAt))
}

func TestLoad_MissingSnapshot(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)

	loaded, err := s.Load(context.Background(), "never-saved")
	require.NoError(t, err, "a missing snapshot is an empty queue, not an error")
	assert.Empty(t, loaded)
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "requests.json"),
		[]byte("this is not a snapshot"),
		0o644,
	))

	loaded, err := s.Load(context.Background(), "requests")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Empty(t, loaded)
}

func TestSave_Overwrites(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	items := testItems()

	require.NoError(t, s.Save(ctx, "requests", items))
	require.NoError(t, s.Save(ctx, "requests", items[:1]))

	loaded, err := s.Load(ctx, "requests")
	require.NoError(t, err)
	require.Len(t, loaded, 1, "save has full overwrite semantics")
	assert.Equal(t, items[0].ID, loaded[0].ID)
}

func TestSave_Idempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	items := testItems()

	require.NoError(t, s.Save(ctx, "requests", items))
	first, err := os.ReadFile(filepath.Join(dir, "requests.json"))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "requests", items))
	second, err := os.ReadFile(filepath.Join(dir, "requests.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "saving the same input twice writes identical bytes")
}

func TestQueuesAreIsolated(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "requests", testItems()))
	require.NoError(t, s.Save(ctx, "background", testItems()[:1]))

	requests, err := s.Load(ctx, "requests")
	require.NoError(t, err)
	background, err := s.Load(ctx, "background")
	require.NoError(t, err)

	assert.Len(t, requests, 2)
	assert.Len(t, background, 1)
}

func TestClear(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "requests", testItems()))
	require.NoError(t, s.Clear(ctx, "requests"))

	loaded, err := s.Load(ctx, "requests")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// Clearing an already-empty queue is a no-op.
	require.NoError(t, s.Clear(ctx, "requests"))
}
