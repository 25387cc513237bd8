package main

import (
	"html"
	"html/template"
	"strings"

	"github.com/Zachkp/folio/internal/highlight"
	"github.com/Zachkp/folio/internal/typewriter"
)

var templateFuncs = template.FuncMap{
	"annotated": annotatedHTML,
	"line":      lineHTML,
	"upper":     strings.ToUpper,
}

// spanClass maps a highlight kind onto the stylesheet class.
func spanClass(k highlight.Kind) string {
	switch k {
	case highlight.KindTypewriter:
		return "hl-typewriter"
	case highlight.KindFinal:
		return "hl-final"
	case highlight.KindPermanent:
		return "hl-permanent"
	}
	return ""
}

// spansHTML renders text with one element per span. Offsets are runes.
func spansHTML(text string, spans []highlight.Span) template.HTML {
	runes := []rune(text)
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.Start > len(runes) {
			continue
		}
		end := min(s.End, len(runes))
		if s.Start > pos {
			b.WriteString(html.EscapeString(string(runes[pos:s.Start])))
		}
		seg := html.EscapeString(string(runes[s.Start:end]))
		if cls := spanClass(s.Kind); cls != "" {
			b.WriteString(`<span class="` + cls + `">` + seg + `</span>`)
		} else {
			b.WriteString(seg)
		}
		pos = end
	}
	if pos < len(runes) {
		b.WriteString(html.EscapeString(string(runes[pos:])))
	}
	return template.HTML(b.String())
}

// annotatedHTML renders highlight-annotated static copy, which is never typed
// and always fully revealed.
func annotatedHTML(source string) template.HTML {
	p := highlight.Parse(source)
	return spansHTML(p.Clean, highlight.Settle(p.Spans(), false, true))
}

func lineHTML(l typewriter.Line) template.HTML {
	return spansHTML(l.Text, l.Spans)
}
