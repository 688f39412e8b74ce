package gate

import "fmt"

// Pattern is a repeating cycle of On passing slots followed by Off blocking
// slots. On is always at least 1 and Off at least 0 once built by NewPattern.
type Pattern struct {
	On  int `json:"on" yaml:"on"`
	Off int `json:"off" yaml:"off"`
}

// DefaultPattern is 3 ON / 2 OFF.
var DefaultPattern = Pattern{On: 3, Off: 2}

// NewPattern clamps on to >= 1 and off to >= 0.
func NewPattern(on, off int) Pattern {
	return Pattern{On: max(1, on), Off: max(0, off)}
}

// Clamped returns p with NewPattern's bounds applied. Useful for patterns
// decoded from config files.
func (p Pattern) Clamped() Pattern {
	return NewPattern(p.On, p.Off)
}

// Length is the number of note-ons in one cycle.
func (p Pattern) Length() int {
	return p.On + p.Off
}

// Passes reports whether a zero-based slot falls inside the ON window.
func (p Pattern) Passes(slot int) bool {
	return slot < p.On
}

func (p Pattern) String() string {
	return fmt.Sprintf("%d ON / %d OFF", p.On, p.Off)
}
