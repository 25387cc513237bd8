package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/session"
)

func TestScheduler_Jobs(t *testing.T) {
	srv, _ := newTestServer(t)
	sched, err := newScheduler(srv, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, sched.cron.Entries(), 2)

	sched.Start()
	sched.Stop()
}

func TestScheduler_PurgeFlags(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	stale := time.Now().Add(-2 * srv.cfg.SessionTTL).Unix()
	_, err := srv.db.Exec(`INSERT INTO session_flags (session_id, name, set_at) VALUES ('old', ?, ?)`, session.IntroSeen, stale)
	require.NoError(t, err)
	require.NoError(t, srv.flags.SetFlag(ctx, "fresh", session.IntroSeen))

	sched, err := newScheduler(srv, zerolog.Nop())
	require.NoError(t, err)
	sched.purgeFlags()

	seen, err := srv.flags.GetFlag(ctx, "old", session.IntroSeen)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = srv.flags.GetFlag(ctx, "fresh", session.IntroSeen)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestScheduler_CleanupVisitors(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.db.Exec(`INSERT INTO visitors (hashed_ip, path, timestamp) VALUES ('abc', '/es', '2001-01-01 00:00:00')`)
	require.NoError(t, err)

	sched, err := newScheduler(srv, zerolog.Nop())
	require.NoError(t, err)
	sched.cleanupVisitors()

	var n int
	require.NoError(t, srv.db.QueryRow(`SELECT COUNT(*) FROM visitors`).Scan(&n))
	assert.Zero(t, n)
}
