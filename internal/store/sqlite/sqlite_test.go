package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TJYumul/playgen/internal/store"
	"github.com/TJYumul/playgen/internal/store/storetest"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "playgen.db")
	s, err := New(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.VerifySchema(context.Background()))
}

func TestSQLiteStore_LooseEventValues(t *testing.T) {
	ctx := context.Background()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	s := NewWithDB(db)
	require.NoError(t, s.EnsureSchema(ctx))

	// Producers outside this repo may write text into typed columns.
	_, err = db.ExecContext(ctx, `INSERT INTO events (user_id, item_id, event_kind, occurred_at, play_duration) VALUES
        ('u1', 's1', 'play', '2024-03-01T12:00:00Z', '42.5'),
        ('u1', 's1', 'play', 'not-a-time', 'abc'),
        ('u1', 's1', 'pause', '1709294400', NULL),
        (NULL, 's1', 'play', NULL, 3)`)
	require.NoError(t, err)

	evs, err := s.Events().Page(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 4)

	// NULL user sorts first in SQLite.
	assert.Equal(t, "", evs[0].UserID)
	require.NotNil(t, evs[0].PlayDurationSeconds)
	assert.Equal(t, 3.0, *evs[0].PlayDurationSeconds)

	var sawValid, sawBadTime, sawEpoch bool
	for _, ev := range evs[1:] {
		switch {
		case ev.PlayDurationSeconds != nil && *ev.PlayDurationSeconds == 42.5:
			sawValid = !ev.OccurredAt.IsZero()
		case ev.Kind == "play" && ev.PlayDurationSeconds == nil:
			sawBadTime = ev.OccurredAt.IsZero()
		case ev.Kind == "pause":
			sawEpoch = ev.OccurredAt.Unix() == 1709294400
		}
	}
	assert.True(t, sawValid, "valid text values parse")
	assert.True(t, sawBadTime, "invalid values degrade to zero/nil")
	assert.True(t, sawEpoch, "epoch seconds parse")
}

func TestSQLiteStore_VerifySchemaRejectsRenamedTimestamp(t *testing.T) {
	ctx := context.Background()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	s := NewWithDB(db)

	_, err = db.ExecContext(ctx, `CREATE TABLE events (id INTEGER PRIMARY KEY, user_id TEXT, item_id TEXT,
        event_kind TEXT, timestamp TIMESTAMP, play_duration REAL)`)
	require.NoError(t, err)

	err = s.VerifySchema(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "occurred_at")
}

func TestSQLiteStore_VerifySchemaMissingTable(t *testing.T) {
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = NewWithDB(db).VerifySchema(context.Background())
	assert.True(t, errors.Is(err, store.ErrSchemaMismatch))
}
