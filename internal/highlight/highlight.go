// Package highlight parses the inline markers used in the site copy.
//
//	**text**  permanent highlight (also typed slowly)
//	*text*    highlighted only while it is being typed
//	+text+    highlighted at the final reveal
//
// A "+" marker that opens on digits is rewritten so the digits come first:
// "+15+ years" renders as "15+ years". Markers do not nest. An unterminated
// marker runs to the end of the string.
package highlight

// Range is a half-open [Start, End) interval of rune offsets into Parsed.Clean.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of runes covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether rune offset i falls inside the range.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// Parsed is the result of Parse. It is never mutated after Parse returns.
type Parsed struct {
	Clean      string
	Typewriter []Range
	Final      []Range
	Permanent  []Range
	Slow       []Range

	length int
}

// Parse strips markers from source in a single left-to-right scan and records
// the range of every marked run. It never fails; malformed input degrades to
// consuming the rest of the string.
func Parse(source string) Parsed {
	src := []rune(source)
	n := len(src)
	clean := make([]rune, 0, n)

	var p Parsed
	doubleStar := func(i int) bool { return src[i] == '*' && i+1 < n && src[i+1] == '*' }

	for i := 0; i < n; {
		switch {
		case doubleStar(i):
			start := len(clean)
			i += 2
			for i < n && !doubleStar(i) {
				clean = append(clean, src[i])
				i++
			}
			r := Range{Start: start, End: len(clean)}
			p.Permanent = append(p.Permanent, r)
			p.Slow = append(p.Slow, r)
			if i < n {
				i += 2
			}

		case src[i] == '+':
			start := len(clean)
			i++
			j := i
			for j < n && isDigit(src[j]) {
				j++
			}
			if j > i {
				clean = append(clean, src[i:j]...)
				clean = append(clean, '+')
				i = j
				// the "+" written after the digits is the one just relocated
				if i < n && src[i] == '+' {
					i++
				}
			}
			for i < n && src[i] != '+' {
				clean = append(clean, src[i])
				i++
			}
			p.Final = append(p.Final, Range{Start: start, End: len(clean)})
			if i < n {
				i++
			}

		case src[i] == '*':
			start := len(clean)
			i++
			for i < n && src[i] != '*' {
				clean = append(clean, src[i])
				i++
			}
			p.Typewriter = append(p.Typewriter, Range{Start: start, End: len(clean)})
			if i < n {
				i++
			}

		default:
			clean = append(clean, src[i])
			i++
		}
	}

	p.Clean = string(clean)
	p.length = len(clean)
	return p
}

// Len returns the length of Clean in runes.
func (p Parsed) Len() int { return p.length }

// IsSlow reports whether rune offset i lies in a slow-typing range.
func (p Parsed) IsSlow(i int) bool {
	return inAny(p.Slow, i)
}

func inAny(ranges []Range, i int) bool {
	for _, r := range ranges {
		if r.Contains(i) {
			return true
		}
	}
	return false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
