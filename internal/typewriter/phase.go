package typewriter

import "time"

// Phase is a state of the intro animation. Phases run in the order declared
// below, with reflection -> pause-before-delete -> deleting repeated once per
// reflection before the hook.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseContext           Phase = "context"
	PhasePauseAfterContext Phase = "pause-after-context"
	PhaseReflection        Phase = "reflection"
	PhasePauseBeforeDelete Phase = "pause-before-delete"
	PhaseDeleting          Phase = "deleting"
	PhaseHook              Phase = "hook"
	PhaseComplete          Phase = "complete"
)

// Animating reports whether the phase keeps a timer running.
func (p Phase) Animating() bool {
	return p != PhaseIdle && p != PhaseComplete
}

// Event drives a Machine transition.
type Event int

const (
	// EventTick is delivered when the wait requested by the previous Effect
	// has elapsed.
	EventTick Event = iota
	// EventVisible is the visibility trigger (idle -> context).
	EventVisible
	// EventSkip jumps to the completed snapshot.
	EventSkip
)

func (e Event) String() string {
	switch e {
	case EventTick:
		return "tick"
	case EventVisible:
		return "visible"
	case EventSkip:
		return "skip"
	}
	return "unknown"
}

// Effect tells the driver what to schedule after a transition.
type Effect struct {
	// Wait is the delay before the next EventTick, valid when Scheduled.
	Wait      time.Duration
	Scheduled bool
	// Completed is set on the transition into PhaseComplete.
	Completed bool
	// Ignored means the event did not apply; the driver keeps its current
	// schedule.
	Ignored bool
}

func after(d time.Duration) Effect {
	return Effect{Wait: d, Scheduled: true}
}
