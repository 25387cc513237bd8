// Package typewriter implements the reflective typewriter intro: the context
// line is typed, each reflection is typed and deleted word by word, then the
// hook paragraphs are typed line by line and kept on screen.
//
// Machine is a pure transition function over State. Player drives a Machine
// from a clock and owns cancellation.
package typewriter

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/Zachkp/folio/internal/highlight"
)

// Content is the text of one intro, in one language.
type Content struct {
	Context     string     `yaml:"context" json:"context"`
	Reflections []string   `yaml:"reflections" json:"reflections"`
	Hook        [][]string `yaml:"hook" json:"hook"`
}

type block struct {
	parsed highlight.Parsed
	spans  []highlight.Span
	runes  []rune
	delays []time.Duration
}

func (b *block) len() int { return len(b.runes) }

// delay is the wait before rune i; past the end it is zero.
func (b *block) delay(i int) time.Duration {
	if i < len(b.delays) {
		return b.delays[i]
	}
	return 0
}

type reflection struct {
	block
	deletes []time.Duration
}

// Machine holds the parsed content and its precomputed delays.
type Machine struct {
	timing      Timing
	context     block
	reflections []reflection
	hook        [][]block
}

// Option configures a Machine.
type Option func(*machineOptions)

type machineOptions struct {
	timing Timing
	rules  []Rule
	rng    *rand.Rand
}

// WithTiming replaces DefaultTiming.
func WithTiming(t Timing) Option {
	return func(o *machineOptions) { o.timing = t }
}

// WithRules replaces DefaultRules.
func WithRules(rules ...Rule) Option {
	return func(o *machineOptions) { o.rules = rules }
}

// WithRand sets the random source used for delays.
func WithRand(r *rand.Rand) Option {
	return func(o *machineOptions) { o.rng = r }
}

// NewMachine parses content and computes every delay up front.
func NewMachine(c Content, opts ...Option) *Machine {
	o := machineOptions{timing: DefaultTiming(), rules: DefaultRules()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	m := &Machine{timing: o.timing}
	m.context = newBlock(c.Context, PhaseContext, o)
	for _, r := range c.Reflections {
		// reflections are plain text; markers are not interpreted
		b := newPlainBlock(r, o)
		words := len(strings.Fields(r))
		dels := make([]time.Duration, words+1)
		for i := range dels {
			dels[i] = o.timing.DeleteDelay(o.rng)
		}
		m.reflections = append(m.reflections, reflection{block: b, deletes: dels})
	}
	m.hook = make([][]block, len(c.Hook))
	for p, lines := range c.Hook {
		m.hook[p] = make([]block, len(lines))
		for l, line := range lines {
			m.hook[p][l] = newBlock(line, PhaseHook, o)
		}
	}
	return m
}

func newBlock(src string, phase Phase, o machineOptions) block {
	parsed := highlight.Parse(src)
	b := block{parsed: parsed, spans: parsed.Spans(), runes: []rune(parsed.Clean)}
	b.delays = make([]time.Duration, len(b.runes))
	for i := range b.runes {
		d := o.timing.CharDelay(o.rng, b.runes, i)
		cc := CharContext{Phase: phase, Text: b.runes, Index: i, Parsed: &b.parsed}
		for _, r := range o.rules {
			d = r.Adjust(cc, d)
		}
		b.delays[i] = d
	}
	return b
}

func newPlainBlock(src string, o machineOptions) block {
	runes := []rune(src)
	b := block{runes: runes, delays: make([]time.Duration, len(runes))}
	b.parsed = highlight.Parsed{Clean: src}
	if len(runes) > 0 {
		b.spans = []highlight.Span{{Start: 0, End: len(runes), Kind: highlight.KindPlain}}
	}
	for i := range runes {
		d := o.timing.CharDelay(o.rng, runes, i)
		cc := CharContext{Phase: PhaseReflection, Text: runes, Index: i}
		for _, r := range o.rules {
			d = r.Adjust(cc, d)
		}
		b.delays[i] = d
	}
	return b
}

// Initial returns the idle state.
func (m *Machine) Initial() State {
	return State{Phase: PhaseIdle}
}

// Completed synthesizes the fully revealed end state from the parsed hook.
func (m *Machine) Completed() State {
	s := State{
		Phase:              PhaseComplete,
		ContextComplete:    true,
		CompletedHookLines: make([][]string, len(m.hook)),
	}
	if n := len(m.reflections); n > 0 {
		s.CurrentReflection = n - 1
	}
	for p, lines := range m.hook {
		s.CompletedHookLines[p] = make([]string, len(lines))
		for l := range lines {
			s.CompletedHookLines[p][l] = lines[l].parsed.Clean
			s.CurrentHookParagraph, s.CurrentHookLine = p, l
		}
	}
	return s
}

// Step applies ev to s and returns the next state with the effect to
// schedule. It does not modify s.
func (m *Machine) Step(s State, ev Event) (State, Effect) {
	switch ev {
	case EventSkip:
		if s.Phase == PhaseComplete {
			return s.Clone(), Effect{Ignored: true}
		}
		return m.Completed(), Effect{Completed: true}
	case EventVisible:
		if s.Phase != PhaseIdle {
			return s.Clone(), Effect{Ignored: true}
		}
		return m.enterContext()
	case EventTick:
		return m.tick(s.Clone())
	}
	return s.Clone(), Effect{Ignored: true}
}

func (m *Machine) tick(s State) (State, Effect) {
	t := m.timing

	switch s.Phase {
	case PhaseContext:
		b := &m.context
		if s.cursor < b.len() {
			s.cursor++
			s.DisplayText = string(b.runes[:s.cursor])
			if s.cursor == b.len() {
				return s, after(t.ContextHold)
			}
			return s, after(b.delay(s.cursor))
		}
		s.Phase = PhasePauseAfterContext
		s.ContextComplete = true
		return s, after(t.ContextPause)

	case PhasePauseAfterContext:
		s.DisplayText = ""
		s.cursor = 0
		if len(m.reflections) == 0 {
			return m.enterHook(s)
		}
		s.Phase = PhaseReflection
		s.CurrentReflection = 0
		return s, m.startReflection(0)

	case PhaseReflection:
		b := &m.reflections[s.CurrentReflection].block
		if s.cursor < b.len() {
			s.cursor++
			s.DisplayText = string(b.runes[:s.cursor])
			if s.cursor == b.len() {
				return s, after(t.ReflectionHold)
			}
			return s, after(b.delay(s.cursor))
		}
		s.Phase = PhasePauseBeforeDelete
		return s, after(t.DeletePause)

	case PhasePauseBeforeDelete:
		s.Phase = PhaseDeleting
		s.cursor = 0
		return s, after(m.deleteDelay(s.CurrentReflection, 0))

	case PhaseDeleting:
		if s.DisplayText != "" {
			s.DisplayText = dropLastWord(s.DisplayText)
			s.cursor++
			return s, after(m.deleteDelay(s.CurrentReflection, s.cursor))
		}
		s.cursor = 0
		if s.CurrentReflection+1 < len(m.reflections) {
			s.CurrentReflection++
			s.Phase = PhaseReflection
			return s, m.startReflection(s.CurrentReflection)
		}
		return m.enterHook(s)

	case PhaseHook:
		return m.tickHook(s)
	}

	// idle and complete have no timer
	return s, Effect{}
}

func (m *Machine) enterContext() (State, Effect) {
	s := State{Phase: PhaseContext}
	if m.context.len() == 0 {
		return s, after(m.timing.ContextHold)
	}
	return s, after(m.context.delay(0))
}

func (m *Machine) startReflection(i int) Effect {
	b := &m.reflections[i].block
	if b.len() == 0 {
		return after(m.timing.ReflectionHold)
	}
	return after(b.delay(0))
}

func (m *Machine) deleteDelay(reflection, step int) time.Duration {
	dels := m.reflections[reflection].deletes
	if step >= len(dels) {
		step = len(dels) - 1
	}
	return dels[step]
}

func (m *Machine) enterHook(s State) (State, Effect) {
	s.DisplayText = ""
	s.cursor = 0
	s.CompletedHookLines = make([][]string, len(m.hook))
	p, l, ok := m.nextLine(0, -1)
	if !ok {
		done := m.Completed()
		return done, Effect{Completed: true}
	}
	s.Phase = PhaseHook
	s.CurrentHookParagraph, s.CurrentHookLine = p, l
	return s, after(m.hook[p][l].delay(0))
}

func (m *Machine) tickHook(s State) (State, Effect) {
	p, l := s.CurrentHookParagraph, s.CurrentHookLine
	b := &m.hook[p][l]

	if !s.lineFrozen(p, l) {
		if s.cursor < b.len() {
			s.cursor++
			s.DisplayText = string(b.runes[:s.cursor])
		}
		if s.cursor < b.len() {
			return s, after(b.delay(s.cursor))
		}
		// the frozen snapshot is what renders from now on
		s.CompletedHookLines[p] = append(s.CompletedHookLines[p], b.parsed.Clean)
		return s, after(m.pauseAfter(p, l))
	}

	np, nl, ok := m.nextLine(p, l)
	if !ok {
		done := m.Completed()
		return done, Effect{Completed: true}
	}
	s.CurrentHookParagraph, s.CurrentHookLine = np, nl
	s.cursor = 0
	s.DisplayText = ""
	next := &m.hook[np][nl]
	if next.len() == 0 {
		return s, after(0)
	}
	return s, after(next.delay(0))
}

// nextLine returns the hook position after (p, l), skipping empty paragraphs.
func (m *Machine) nextLine(p, l int) (int, int, bool) {
	if p < len(m.hook) && l+1 < len(m.hook[p]) {
		return p, l + 1, true
	}
	for q := p + 1; q < len(m.hook); q++ {
		if len(m.hook[q]) > 0 {
			return q, 0, true
		}
	}
	return 0, 0, false
}

func (m *Machine) pauseAfter(p, l int) time.Duration {
	np, _, ok := m.nextLine(p, l)
	switch {
	case !ok:
		return m.timing.CompletionDelay
	case np == p:
		return m.timing.LinePause
	default:
		return m.timing.ParagraphPause
	}
}

// dropLastWord removes the last whitespace-delimited word and any whitespace
// left trailing.
func dropLastWord(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimRightFunc(s[:i], unicode.IsSpace)
}
