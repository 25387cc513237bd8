package main

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/clock"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/session"
	"github.com/Zachkp/folio/internal/typewriter"
)

func newTestHub(t *testing.T) (*introHub, *session.MemoryStore) {
	t.Helper()
	catalog, err := content.LoadCatalog()
	require.NoError(t, err)
	flags := session.NewMemoryStore()
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return newIntroHub(catalog, flags, clk, zerolog.Nop()), flags
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not happen", what)
	}
}

func TestIntroHub_SkipWithoutRunSetsFlag(t *testing.T) {
	h, flags := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.skip(ctx, "s1"))
	seen, err := flags.GetFlag(ctx, "s1", session.IntroSeen)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestIntroHub_SkipCompletesRun(t *testing.T) {
	h, flags := newTestHub(t)
	ctx := context.Background()

	run := h.start("s1", content.English)
	defer h.stop("s1", run)
	run.player.Trigger(h.clk.Now())
	assert.Equal(t, typewriter.PhaseContext, run.player.State().Phase)

	require.NoError(t, h.skip(ctx, "s1"))
	waitClosed(t, run.done, "completion")
	waitClosed(t, run.stopped, "run exit")

	assert.Equal(t, typewriter.PhaseComplete, run.player.State().Phase)
	assert.True(t, run.skipped.Load())
	seen, err := flags.GetFlag(ctx, "s1", session.IntroSeen)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestIntroHub_NewStreamReplacesRun(t *testing.T) {
	h, _ := newTestHub(t)

	first := h.start("s1", content.Spanish)
	first.player.Trigger(h.clk.Now())
	second := h.start("s1", content.English)
	defer h.stop("s1", second)

	waitClosed(t, first.stopped, "first run exit")
	select {
	case <-first.done:
		t.Fatal("replaced run must not complete")
	default:
	}

	h.mu.Lock()
	assert.Same(t, second, h.runs["s1"])
	h.mu.Unlock()

	// stopping the stale run leaves the new one registered
	h.stop("s1", first)
	h.mu.Lock()
	assert.Same(t, second, h.runs["s1"])
	h.mu.Unlock()
}

func TestIntroHub_PushDropsOldest(t *testing.T) {
	run := &introRun{frames: make(chan typewriter.Frame, 2)}
	for i := 0; i < 5; i++ {
		run.push(typewriter.Frame{Line: i})
	}
	assert.Equal(t, 3, (<-run.frames).Line)
	assert.Equal(t, 4, (<-run.frames).Line)
}

func TestIntroStream_SeenSessionCompletesImmediately(t *testing.T) {
	srv, r := newTestServer(t)
	sid := uuid.NewString()
	require.NoError(t, srv.flags.SetFlag(context.Background(), sid, session.IntroSeen))

	w := get(r, "/intro/stream?lang=en", "Cookie", sessionCookie+"="+sid)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:complete\n"), body)
	assert.Contains(t, body, `"phase":"complete"`)
	assert.Contains(t, body, "Curiosity first. Then, the code.")
}

func readEvent(t *testing.T, sc *bufio.Scanner) (event, data string) {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && event != "":
			return event, data
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended")
	return "", ""
}

func TestIntroStream_SkipEndsStream(t *testing.T) {
	srv, r := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	sid := uuid.NewString()
	cookie := sessionCookie + "=" + sid
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/intro/stream?lang=en&visible=1", nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", cookie)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	event, data := readEvent(t, sc)
	assert.Equal(t, "frame", event)
	assert.Contains(t, data, `"phase":"idle"`)

	skip, err := http.NewRequest(http.MethodPost, ts.URL+"/intro/skip", nil)
	require.NoError(t, err)
	skip.Header.Set("Cookie", cookie)
	skipResp, err := client.Do(skip)
	require.NoError(t, err)
	skipResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, skipResp.StatusCode)

	for event != "complete" {
		event, data = readEvent(t, sc)
	}
	assert.Contains(t, data, `"phase":"complete"`)

	seen, err := srv.flags.GetFlag(context.Background(), sid, session.IntroSeen)
	require.NoError(t, err)
	assert.True(t, seen)
}
