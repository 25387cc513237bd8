package typewriter

import "github.com/Zachkp/folio/internal/highlight"

// Line is a piece of rendered text with its highlight spans.
type Line struct {
	Text  string           `json:"text"`
	Spans []highlight.Span `json:"spans"`
}

// Frame is what the host paints for a State. Spans are already resolved for
// the moment: typewriter runs only show on the line being typed, and final
// runs only once FinalReveal is set at completion.
type Frame struct {
	Phase           Phase    `json:"phase"`
	Current         Line     `json:"current"`
	ContextComplete bool     `json:"contextComplete"`
	Context         *Line    `json:"context,omitempty"`
	Reflection      int      `json:"reflection"`
	Hook            [][]Line `json:"hook"`
	Paragraph       int      `json:"paragraph"`
	Line            int      `json:"line"`
	FinalReveal     bool     `json:"finalReveal"`
}

// Frame renders s against the machine's parsed content.
func (m *Machine) Frame(s State) Frame {
	f := Frame{
		Phase:           s.Phase,
		ContextComplete: s.ContextComplete,
		Reflection:      s.CurrentReflection,
		Paragraph:       s.CurrentHookParagraph,
		Line:            s.CurrentHookLine,
		Current:         Line{Text: s.DisplayText, Spans: []highlight.Span{}},
		FinalReveal:     s.Phase == PhaseComplete,
	}

	if s.ContextComplete {
		f.Context = &Line{Text: m.context.parsed.Clean, Spans: highlight.Settle(m.context.spans, false, f.FinalReveal)}
	}

	switch s.Phase {
	case PhaseContext:
		f.Current.Spans = highlight.Settle(highlight.Clip(m.context.spans, s.cursor), true, false)
	case PhaseReflection, PhasePauseBeforeDelete, PhaseDeleting:
		if n := len([]rune(s.DisplayText)); n > 0 {
			f.Current.Spans = []highlight.Span{{Start: 0, End: n, Kind: highlight.KindPlain}}
		}
	case PhaseHook:
		p, l := s.CurrentHookParagraph, s.CurrentHookLine
		if s.lineFrozen(p, l) {
			// already rendered from the frozen snapshot
			f.Current.Text = ""
		} else {
			f.Current.Spans = highlight.Settle(highlight.Clip(m.hook[p][l].spans, s.cursor), true, false)
		}
	}

	f.Hook = make([][]Line, len(s.CompletedHookLines))
	for p, lines := range s.CompletedHookLines {
		f.Hook[p] = make([]Line, len(lines))
		for l, text := range lines {
			f.Hook[p][l] = Line{Text: text, Spans: highlight.Settle(m.hook[p][l].spans, false, f.FinalReveal)}
		}
	}
	return f
}
