package session

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	ok, err := s.GetFlag(ctx, "s1", IntroSeen)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetFlag(ctx, "s1", IntroSeen))
	require.NoError(t, s.SetFlag(ctx, "s1", IntroSeen), "setting twice is fine")

	ok, err = s.GetFlag(ctx, "s1", IntroSeen)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.GetFlag(ctx, "s2", IntroSeen)
	require.NoError(t, err)
	assert.False(t, ok, "flags are per session")

	ok, err = s.GetFlag(ctx, "s1", "other")
	require.NoError(t, err)
	assert.False(t, ok, "flags are per name")
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetFlag(ctx, "old", IntroSeen))
	now = now.Add(48 * time.Hour)
	require.NoError(t, s.SetFlag(ctx, "new", IntroSeen))

	n, err := s.Purge(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, _ := s.GetFlag(ctx, "old", IntroSeen)
	assert.False(t, ok)
	ok, _ = s.GetFlag(ctx, "new", IntroSeen)
	assert.True(t, ok)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "flags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(openTestDB(t))
	require.NoError(t, err)
	testStoreContract(t, s)
}

func TestSQLiteStore_MigrateTwice(t *testing.T) {
	db := openTestDB(t)
	_, err := NewSQLiteStore(db)
	require.NoError(t, err)
	_, err = NewSQLiteStore(db)
	require.NoError(t, err)
}

func TestSQLiteStore_Purge(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(openTestDB(t))
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.SetFlag(ctx, "old", IntroSeen))
	now = now.Add(48 * time.Hour)
	require.NoError(t, s.SetFlag(ctx, "new", IntroSeen))

	n, err := s.Purge(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.GetFlag(ctx, "old", IntroSeen)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.GetFlag(ctx, "new", IntroSeen)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Requires a Redis server; set REDIS_URL to run.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(url, time.Minute)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer s.Close()
	s.prefix = "folio:test:" + t.Name() + ":" + time.Now().Format("150405.000000") + ":"

	testStoreContract(t, s)

	n, err := s.Purge(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", time.Minute)
	assert.Error(t, err)
}

type brokenStore struct{ MemoryStore }

var errBroken = errors.New("disk on fire")

func (*brokenStore) GetFlag(context.Context, string, string) (bool, error) { return false, errBroken }
func (*brokenStore) SetFlag(context.Context, string, string) error         { return errBroken }

func TestFlag(t *testing.T) {
	store := NewMemoryStore()
	f := NewFlag(store, "abc", IntroSeen, zerolog.Nop())

	assert.False(t, f.Seen())
	f.MarkSeen()
	assert.True(t, f.Seen())

	ok, err := store.GetFlag(context.Background(), "abc", IntroSeen)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlag_StoreErrorsReadAsUnset(t *testing.T) {
	var buf bytes.Buffer
	f := NewFlag(&brokenStore{}, "abc", IntroSeen, zerolog.New(&buf))

	f.MarkSeen()
	assert.False(t, f.Seen())
	assert.Contains(t, buf.String(), "disk on fire")
	assert.Contains(t, buf.String(), `"flag":"intro-seen"`)
}
