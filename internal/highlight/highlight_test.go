package highlight

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Permanent(t *testing.T) {
	p := Parse("**bold**")

	assert.Equal(t, "bold", p.Clean)
	assert.Equal(t, []Range{{0, 4}}, p.Permanent)
	assert.Equal(t, []Range{{0, 4}}, p.Slow)
	assert.Empty(t, p.Typewriter)
	assert.Empty(t, p.Final)
}

func TestParse_Typewriter(t *testing.T) {
	p := Parse("*wow*")

	assert.Equal(t, "wow", p.Clean)
	assert.Equal(t, []Range{{0, 3}}, p.Typewriter)
	assert.Empty(t, p.Permanent)
}

func TestParse_FinalDigitsReordered(t *testing.T) {
	p := Parse("+15+ years")

	assert.Equal(t, "15+ years", p.Clean)
	assert.Equal(t, []Range{{0, 9}}, p.Final)
}

func TestParse_Final(t *testing.T) {
	p := Parse("+hello+ world")

	assert.Equal(t, "hello world", p.Clean)
	assert.Equal(t, []Range{{0, 5}}, p.Final)
}

func TestParse_Mixed(t *testing.T) {
	p := Parse("Hago **software** que *piensa* y +escucha+.")

	assert.Equal(t, "Hago software que piensa y escucha.", p.Clean)
	assert.Equal(t, []Range{{5, 13}}, p.Permanent)
	assert.Equal(t, []Range{{18, 24}}, p.Typewriter)
	assert.Equal(t, []Range{{27, 34}}, p.Final)
}

func TestParse_RuneOffsets(t *testing.T) {
	p := Parse("años de **diseño**")

	assert.Equal(t, "años de diseño", p.Clean)
	require.Len(t, p.Permanent, 1)
	assert.Equal(t, Range{8, 14}, p.Permanent[0])
	assert.Equal(t, utf8.RuneCountInString(p.Clean), p.Len())
}

func TestParse_Unterminated(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		clean string
	}{
		{"double star", "a **bold to the end", "a bold to the end"},
		{"single star", "a *typed to the end", "a typed to the end"},
		{"plus", "a +final to the end", "a final to the end"},
		{"digits", "+7 and counting", "7+ and counting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.src)
			assert.Equal(t, tt.clean, p.Clean)
			for _, r := range allRanges(p) {
				assert.Equal(t, p.Len(), r.End, "unterminated marker should run to the end")
			}
		})
	}
}

func TestParse_BalancedHasNoMarkers(t *testing.T) {
	inputs := []string{
		"plain text",
		"**a** *b* +c+",
		"x **y** z",
		"*one* and *two*",
		"+uno+ **dos** *tres*",
	}

	for _, in := range inputs {
		p := Parse(in)
		assert.False(t, strings.ContainsAny(p.Clean, "*+"), "clean %q of %q", p.Clean, in)
		for _, r := range allRanges(p) {
			assert.True(t, r.Start >= 0 && r.Start <= r.End && r.End <= p.Len(), "range %v out of bounds in %q", r, in)
		}
	}
}

func TestSpans_CoverClean(t *testing.T) {
	p := Parse("Hola, soy **Dani** y hago *cosas* +raras+")
	spans := p.Spans()

	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, p.Len(), spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		assert.Equal(t, spans[i-1].End, spans[i].Start)
	}

	assert.Equal(t, KindPermanent, p.KindAt(10))
	assert.Equal(t, KindPlain, p.KindAt(0))
	assert.Equal(t, KindTypewriter, p.KindAt(22))
	assert.True(t, p.IsSlow(11))
	assert.False(t, p.IsSlow(0))
}

func TestSpans_DropsEmpty(t *testing.T) {
	p := Parse("a****b")

	assert.Equal(t, "ab", p.Clean)
	assert.Equal(t, []Span{{Start: 0, End: 2, Kind: KindPlain}}, p.Spans())
}

func TestClip(t *testing.T) {
	p := Parse("ab **cd** ef")
	clipped := Clip(p.Spans(), 4)

	assert.Equal(t, []Span{
		{Start: 0, End: 3, Kind: KindPlain},
		{Start: 3, End: 4, Kind: KindPermanent},
	}, clipped)
	assert.Empty(t, Clip(p.Spans(), 0))
}

func TestSettle(t *testing.T) {
	spans := Parse("a *b* +c+ **d**").Spans()
	kinds := func(spans []Span) []Kind {
		out := make([]Kind, 0, len(spans))
		for _, s := range spans {
			if s.Kind != KindPlain {
				out = append(out, s.Kind)
			}
		}
		return out
	}

	assert.Equal(t, []Kind{KindTypewriter, KindPermanent}, kinds(Settle(spans, true, false)))
	assert.Equal(t, []Kind{KindPermanent}, kinds(Settle(spans, false, false)))
	assert.Equal(t, []Kind{KindFinal, KindPermanent}, kinds(Settle(spans, false, true)))
	// input is left alone
	assert.Equal(t, []Kind{KindTypewriter, KindFinal, KindPermanent}, kinds(spans))
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{"**a**", "*b*", "+1+", "+x", "***", "+**+*", "é*+9"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		p := Parse(s)
		for _, r := range allRanges(p) {
			if r.Start < 0 || r.Start > r.End || r.End > p.Len() {
				t.Fatalf("range %v out of bounds for %q", r, s)
			}
		}
		_ = p.Spans()
	})
}

func allRanges(p Parsed) []Range {
	var out []Range
	out = append(out, p.Typewriter...)
	out = append(out, p.Final...)
	out = append(out, p.Permanent...)
	out = append(out, p.Slow...)
	return out
}
