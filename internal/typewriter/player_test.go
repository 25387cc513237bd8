package typewriter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/clock"
)

type fakeSeen struct {
	mu    sync.Mutex
	seen  bool
	marks int
}

func (f *fakeSeen) Seen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen
}

func (f *fakeSeen) MarkSeen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = true
	f.marks++
}

type recorder struct {
	mu        sync.Mutex
	frames    []Frame
	completes int
}

func (r *recorder) options() []PlayerOption {
	return []PlayerOption{
		OnFrame(func(f Frame) {
			r.mu.Lock()
			r.frames = append(r.frames, f)
			r.mu.Unlock()
		}),
		OnComplete(func() {
			r.mu.Lock()
			r.completes++
			r.mu.Unlock()
		}),
	}
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames), r.completes
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPlayer_TriggerStartsContext(t *testing.T) {
	m := newTestMachine(testContent())
	p := NewPlayer(m, &fakeSeen{})

	assert.Equal(t, PhaseIdle, p.State().Phase)
	_, scheduled := p.Next()
	assert.False(t, scheduled)

	p.Trigger(t0)
	assert.Equal(t, PhaseContext, p.State().Phase)
	deadline, scheduled := p.Next()
	require.True(t, scheduled)
	assert.Equal(t, t0.Add(40*time.Millisecond), deadline)

	p.Advance(t0.Add(40 * time.Millisecond))
	assert.Equal(t, "H", p.State().DisplayText)
}

func TestPlayer_CatchUpDoesNotDrift(t *testing.T) {
	m := newTestMachine(testContent())
	var total time.Duration
	for _, st := range drive(t, m) {
		if st.eff.Scheduled {
			total += st.eff.Wait
		}
	}

	seen := &fakeSeen{}
	rec := &recorder{}
	p := NewPlayer(m, seen, rec.options()...)
	p.Trigger(t0)

	p.Advance(t0.Add(total - time.Nanosecond))
	assert.Equal(t, PhaseHook, p.State().Phase)
	assert.False(t, seen.Seen())

	p.Advance(t0.Add(total))
	assert.Equal(t, PhaseComplete, p.State().Phase)
	assert.True(t, seen.Seen())
	_, completes := rec.counts()
	assert.Equal(t, 1, completes)
}

func TestPlayer_SkipCancelsTicks(t *testing.T) {
	m := newTestMachine(testContent())
	seen := &fakeSeen{}
	rec := &recorder{}
	p := NewPlayer(m, seen, rec.options()...)

	p.Trigger(t0)
	p.Advance(t0.Add(200 * time.Millisecond))
	require.Equal(t, PhaseContext, p.State().Phase)

	p.Skip()
	s := p.State()
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Equal(t, [][]string{{"Linea uno", "dos"}, {"3+ años"}}, s.CompletedHookLines)
	assert.True(t, seen.Seen())
	_, scheduled := p.Next()
	assert.False(t, scheduled)

	frames, completes := rec.counts()
	assert.Equal(t, 1, completes)

	p.Advance(t0.Add(time.Hour))
	p.Skip()
	after, completesAfter := rec.counts()
	assert.Equal(t, frames, after, "no frames after skip")
	assert.Equal(t, 1, completesAfter)
	assert.Equal(t, s, p.State())
}

func TestPlayer_SeenBeforeMount(t *testing.T) {
	m := newTestMachine(testContent())
	rec := &recorder{}
	p := NewPlayer(m, &fakeSeen{seen: true}, rec.options()...)

	assert.Equal(t, m.Completed(), p.State())

	p.Trigger(t0)
	p.Advance(t0.Add(time.Hour))
	frames, completes := rec.counts()
	assert.Zero(t, frames)
	assert.Zero(t, completes)
	assert.Equal(t, PhaseComplete, p.State().Phase)
}

func TestPlayer_ResetCancelsOldContent(t *testing.T) {
	seen := &fakeSeen{}
	p := NewPlayer(newTestMachine(testContent()), seen)
	p.Trigger(t0)
	p.Advance(t0.Add(300 * time.Millisecond))
	require.NotEmpty(t, p.State().DisplayText)

	english := Content{
		Context:     "Hello **world**",
		Reflections: []string{"one two"},
		Hook:        [][]string{{"Line *one*"}},
	}
	p.Reset(newTestMachine(english))

	assert.Equal(t, PhaseIdle, p.State().Phase)
	_, scheduled := p.Next()
	assert.False(t, scheduled)

	p.Advance(t0.Add(time.Hour))
	assert.Equal(t, PhaseIdle, p.State().Phase)
	assert.Equal(t, "", p.State().DisplayText)

	p.Trigger(t0.Add(time.Hour))
	p.Advance(t0.Add(time.Hour + 40*time.Millisecond))
	assert.Equal(t, "H", p.State().DisplayText)

	seen.MarkSeen()
	p.Reset(newTestMachine(english))
	s := p.State()
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Equal(t, [][]string{{"Line one"}}, s.CompletedHookLines)
}

func fastTiming() Timing {
	ms := time.Millisecond
	return Timing{
		Base: ms, Floor: ms, DeleteMin: ms,
		ContextHold: ms, ContextPause: ms, ReflectionHold: ms, DeletePause: ms,
		LinePause: ms, ParagraphPause: ms, CompletionDelay: ms,
	}
}

func TestPlayer_RunCompletes(t *testing.T) {
	m := newTestMachine(testContent(), WithTiming(fastTiming()))
	done := make(chan struct{})
	p := NewPlayer(m, &fakeSeen{}, OnComplete(func() { close(done) }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, clock.New()) }()
	p.Trigger(time.Now())

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("intro did not complete")
	}
	require.NoError(t, <-errc)
	assert.Equal(t, PhaseComplete, p.State().Phase)
}

func TestPlayer_RunStopsOnCancel(t *testing.T) {
	p := NewPlayer(newTestMachine(testContent()), &fakeSeen{})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, clock.NewManual(t0)) }()
	p.Trigger(t0)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPlayer_RunSkipWhileWaiting(t *testing.T) {
	clk := clock.NewManual(t0)
	p := NewPlayer(newTestMachine(testContent()), &fakeSeen{})
	p.Trigger(t0)

	errc := make(chan error, 1)
	go func() { errc <- p.Run(context.Background(), clk) }()

	p.Skip()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after skip")
	}

	clk.Advance(time.Hour)
	assert.Equal(t, PhaseComplete, p.State().Phase)
}
