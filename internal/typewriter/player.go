package typewriter

import (
	"context"
	"sync"
	"time"

	"github.com/Zachkp/folio/internal/clock"
)

// SeenStore is the session-scoped flag that suppresses replays.
type SeenStore interface {
	Seen() bool
	MarkSeen()
}

// Player owns one running intro. Ticks are applied against their scheduled
// deadlines rather than the wake-up time, so a late wake-up catches up
// without drifting. All methods are safe for concurrent use; callbacks run
// outside the lock.
type Player struct {
	mu        sync.Mutex
	machine   *Machine
	seen      SeenStore
	state     State
	deadline  time.Time
	scheduled bool
	// gen is bumped whenever the schedule is replaced; a wake-up carrying an
	// older gen is stale and must not be applied.
	gen  uint64
	wake chan struct{}

	onFrame    func(Frame)
	onComplete func()
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// OnFrame is called with the latest frame after every change.
func OnFrame(fn func(Frame)) PlayerOption {
	return func(p *Player) { p.onFrame = fn }
}

// OnComplete is called once the intro completes, naturally or by skip.
func OnComplete(fn func()) PlayerOption {
	return func(p *Player) { p.onComplete = fn }
}

// NewPlayer creates an idle player, or a completed one when the seen flag is
// already set.
func NewPlayer(m *Machine, seen SeenStore, opts ...PlayerOption) *Player {
	p := &Player{
		machine: m,
		seen:    seen,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state = p.startState()
	return p
}

func (p *Player) startState() State {
	if p.seen != nil && p.seen.Seen() {
		return p.machine.Completed()
	}
	return p.machine.Initial()
}

// State returns a copy of the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Frame returns the current frame.
func (p *Player) Frame() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Frame(p.state)
}

// Next returns the deadline of the pending tick, if any.
func (p *Player) Next() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deadline, p.scheduled
}

// Trigger fires the visibility trigger at now.
func (p *Player) Trigger(now time.Time) {
	p.dispatch(EventVisible, now)
}

// Skip cancels pending ticks and jumps to the completed state.
func (p *Player) Skip() {
	p.dispatch(EventSkip, time.Time{})
}

// Advance applies every tick due at or before now.
func (p *Player) Advance(now time.Time) {
	p.mu.Lock()
	completed, changed := p.advanceLocked(now)
	frame := p.machine.Frame(p.state)
	p.mu.Unlock()

	p.notify(frame, changed, completed)
}

// Reset swaps in new content. Pending ticks are cancelled before the new
// content starts, from idle or, when seen, from the completed snapshot.
func (p *Player) Reset(m *Machine) {
	p.mu.Lock()
	p.gen++
	p.scheduled = false
	p.machine = m
	p.state = p.startState()
	frame := p.machine.Frame(p.state)
	p.mu.Unlock()

	p.poke()
	p.notify(frame, true, false)
}

// Run drives the player from clk until ctx is done or the intro completes.
func (p *Player) Run(ctx context.Context, clk clock.Clock) error {
	for {
		p.mu.Lock()
		gen, deadline, scheduled := p.gen, p.deadline, p.scheduled
		done := p.state.Phase == PhaseComplete
		p.mu.Unlock()

		if done {
			return nil
		}

		var timer <-chan time.Time
		if scheduled {
			timer = clk.After(deadline.Sub(clk.Now()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		case <-timer:
			p.fire(gen, clk.Now())
		}
	}
}

func (p *Player) fire(gen uint64, now time.Time) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	completed, changed := p.advanceLocked(now)
	frame := p.machine.Frame(p.state)
	p.mu.Unlock()

	p.notify(frame, changed, completed)
}

func (p *Player) dispatch(ev Event, now time.Time) {
	p.mu.Lock()
	next, eff := p.machine.Step(p.state, ev)
	if eff.Ignored {
		p.mu.Unlock()
		return
	}
	p.applyLocked(next, eff, now)
	frame := p.machine.Frame(p.state)
	p.mu.Unlock()

	p.poke()
	p.notify(frame, true, eff.Completed)
}

func (p *Player) advanceLocked(now time.Time) (completed, changed bool) {
	for p.scheduled && !p.deadline.After(now) {
		next, eff := p.machine.Step(p.state, EventTick)
		p.applyLocked(next, eff, p.deadline)
		changed = true
		if eff.Completed {
			completed = true
		}
	}
	return completed, changed
}

func (p *Player) applyLocked(next State, eff Effect, base time.Time) {
	p.gen++
	p.state = next
	p.scheduled = eff.Scheduled
	if eff.Scheduled {
		p.deadline = base.Add(eff.Wait)
	}
}

func (p *Player) notify(frame Frame, changed, completed bool) {
	if completed && p.seen != nil {
		p.seen.MarkSeen()
	}
	if changed && p.onFrame != nil {
		p.onFrame(frame)
	}
	if completed && p.onComplete != nil {
		p.onComplete()
	}
}

func (p *Player) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
