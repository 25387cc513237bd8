package highlight

import "sort"

// Kind tags a span with its highlight treatment.
type Kind string

const (
	KindPlain      Kind = "plain"
	KindTypewriter Kind = "typewriter"
	KindFinal      Kind = "final"
	KindPermanent  Kind = "permanent"
)

// Span is a tagged, non-overlapping run of Parsed.Clean.
type Span struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Kind  Kind `json:"kind"`
}

// Spans flattens the range lists into one ordered list of spans that covers
// Clean from start to end. Gaps between marked ranges become KindPlain spans.
// Empty ranges (e.g. from "****") are dropped.
func (p Parsed) Spans() []Span {
	marked := make([]Span, 0, len(p.Typewriter)+len(p.Final)+len(p.Permanent))
	add := func(ranges []Range, kind Kind) {
		for _, r := range ranges {
			if r.Len() > 0 {
				marked = append(marked, Span{Start: r.Start, End: r.End, Kind: kind})
			}
		}
	}
	add(p.Typewriter, KindTypewriter)
	add(p.Final, KindFinal)
	add(p.Permanent, KindPermanent)
	sort.Slice(marked, func(i, j int) bool { return marked[i].Start < marked[j].Start })

	spans := make([]Span, 0, 2*len(marked)+1)
	pos := 0
	for _, s := range marked {
		if s.Start < pos {
			// overlapping input; keep the earlier span intact
			if s.End <= pos {
				continue
			}
			s.Start = pos
		}
		if s.Start > pos {
			spans = append(spans, Span{Start: pos, End: s.Start, Kind: KindPlain})
		}
		spans = append(spans, s)
		pos = s.End
	}
	if pos < p.length {
		spans = append(spans, Span{Start: pos, End: p.length, Kind: KindPlain})
	}
	return spans
}

// KindAt returns the highlight kind applied at rune offset i.
func (p Parsed) KindAt(i int) Kind {
	switch {
	case inAny(p.Permanent, i):
		return KindPermanent
	case inAny(p.Typewriter, i):
		return KindTypewriter
	case inAny(p.Final, i):
		return KindFinal
	}
	return KindPlain
}

// Clip truncates spans to the first n runes, for rendering a partially typed
// prefix.
func Clip(spans []Span, n int) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start >= n {
			break
		}
		if s.End > n {
			s.End = n
		}
		out = append(out, s)
	}
	return out
}

// Settle resolves spans for one display moment. Typewriter runs are plain
// unless the text is being typed; final runs stay plain until revealed.
func Settle(spans []Span, typing, revealed bool) []Span {
	out := make([]Span, len(spans))
	for i, s := range spans {
		if (s.Kind == KindTypewriter && !typing) || (s.Kind == KindFinal && !revealed) {
			s.Kind = KindPlain
		}
		out[i] = s
	}
	return out
}
