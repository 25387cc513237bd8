package typewriter

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/Zachkp/folio/internal/highlight"
)

// Timing holds the per-character delay model and the fixed holds between
// phases.
type Timing struct {
	Base time.Duration

	PunctuationMin    time.Duration
	PunctuationSpread time.Duration
	SpaceMin          time.Duration
	SpaceSpread       time.Duration
	WordStartMin      time.Duration
	WordStartSpread   time.Duration
	AccentMin         time.Duration
	AccentSpread      time.Duration
	Jitter            time.Duration
	Floor             time.Duration

	DeleteMin    time.Duration
	DeleteSpread time.Duration

	ContextHold     time.Duration
	ContextPause    time.Duration
	ReflectionHold  time.Duration
	DeletePause     time.Duration
	LinePause       time.Duration
	ParagraphPause  time.Duration
	CompletionDelay time.Duration
}

// DefaultTiming returns the delays the site uses.
func DefaultTiming() Timing {
	return Timing{
		Base:              40 * time.Millisecond,
		PunctuationMin:    120 * time.Millisecond,
		PunctuationSpread: 100 * time.Millisecond,
		SpaceMin:          20 * time.Millisecond,
		SpaceSpread:       30 * time.Millisecond,
		WordStartMin:      25 * time.Millisecond,
		WordStartSpread:   20 * time.Millisecond,
		AccentMin:         30 * time.Millisecond,
		AccentSpread:      20 * time.Millisecond,
		Jitter:            10 * time.Millisecond,
		Floor:             25 * time.Millisecond,

		DeleteMin:    80 * time.Millisecond,
		DeleteSpread: 40 * time.Millisecond,

		ContextHold:     100 * time.Millisecond,
		ContextPause:    800 * time.Millisecond,
		ReflectionHold:  600 * time.Millisecond,
		DeletePause:     400 * time.Millisecond,
		LinePause:       500 * time.Millisecond,
		ParagraphPause:  800 * time.Millisecond,
		CompletionDelay: 600 * time.Millisecond,
	}
}

// CharDelay computes the wait before rune i of text is revealed.
func (t Timing) CharDelay(rng *rand.Rand, text []rune, i int) time.Duration {
	c := text[i]
	d := t.Base

	if i > 0 {
		prev := text[i-1]
		if isPause(prev) {
			d += between(rng, t.PunctuationMin, t.PunctuationSpread)
		}
		if prev == ' ' {
			d += between(rng, t.SpaceMin, t.SpaceSpread)
			if c != ' ' {
				d += between(rng, t.WordStartMin, t.WordStartSpread)
			}
		}
	}
	if isSpecial(c) {
		d += between(rng, t.AccentMin, t.AccentSpread)
	}
	if t.Jitter > 0 {
		d += between(rng, -t.Jitter, 2*t.Jitter)
	}
	if d < t.Floor {
		d = t.Floor
	}
	return d
}

// DeleteDelay is the wait between two word deletions.
func (t Timing) DeleteDelay(rng *rand.Rand) time.Duration {
	return between(rng, t.DeleteMin, t.DeleteSpread)
}

func between(rng *rand.Rand, min, spread time.Duration) time.Duration {
	if spread <= 0 {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(spread)+1))
}

func isPause(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', '—':
		return true
	}
	return false
}

func isSpecial(r rune) bool {
	if r <= unicode.MaxASCII {
		return false
	}
	return unicode.IsLetter(r) || r == '¿' || r == '¡'
}

// CharContext describes the rune whose delay a Rule may adjust.
type CharContext struct {
	Phase  Phase
	Text   []rune
	Index  int
	Parsed *highlight.Parsed
}

// Rule adjusts the computed delay for one character.
type Rule interface {
	Adjust(c CharContext, d time.Duration) time.Duration
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(c CharContext, d time.Duration) time.Duration

func (f RuleFunc) Adjust(c CharContext, d time.Duration) time.Duration { return f(c, d) }

// SlowRangeRule types permanent-highlight text slower in the hook.
type SlowRangeRule struct{}

func (SlowRangeRule) Adjust(c CharContext, d time.Duration) time.Duration {
	if c.Phase != PhaseHook || c.Parsed == nil || !c.Parsed.IsSlow(c.Index) {
		return d
	}
	return 4*d + 80*time.Millisecond
}

// AnchorPauseRule holds a sentence break for exactly Pause once the text
// typed so far mentions Anchor. A zero Pause means 800ms.
type AnchorPauseRule struct {
	Anchor string
	Pause  time.Duration
}

func (r AnchorPauseRule) Adjust(c CharContext, d time.Duration) time.Duration {
	if r.Anchor == "" || c.Phase != PhaseHook || c.Index == 0 {
		return d
	}
	if c.Text[c.Index-1] != '.' || c.Text[c.Index] != ' ' {
		return d
	}
	typed := strings.ToLower(string(c.Text[:c.Index]))
	if !strings.Contains(typed, strings.ToLower(r.Anchor)) {
		return d
	}
	if r.Pause > 0 {
		return r.Pause
	}
	return 800 * time.Millisecond
}

// DefaultRules returns the rules applied when none are configured.
func DefaultRules() []Rule {
	return []Rule{SlowRangeRule{}}
}
