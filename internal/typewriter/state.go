package typewriter

// State is the value the machine transitions. Copies returned by Machine and
// Player are independent of the machine's internal state.
type State struct {
	Phase                Phase      `json:"phase"`
	DisplayText          string     `json:"displayText"`
	ContextComplete      bool       `json:"contextComplete"`
	CurrentReflection    int        `json:"currentReflection"`
	CompletedHookLines   [][]string `json:"completedHookLines"`
	CurrentHookParagraph int        `json:"currentHookParagraph"`
	CurrentHookLine      int        `json:"currentHookLine"`

	// runes of the current block revealed so far
	cursor int
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	if s.CompletedHookLines != nil {
		c.CompletedHookLines = make([][]string, len(s.CompletedHookLines))
		for i, lines := range s.CompletedHookLines {
			c.CompletedHookLines[i] = append([]string(nil), lines...)
		}
	}
	return c
}

// Revealed returns how many runes of the current block are on screen.
func (s State) Revealed() int { return s.cursor }

// lineFrozen reports whether hook line (p, l) is already captured.
func (s State) lineFrozen(p, l int) bool {
	return p < len(s.CompletedHookLines) && l < len(s.CompletedHookLines[p])
}
