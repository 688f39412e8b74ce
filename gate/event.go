package gate

import "fmt"

// Kind identifies what an Event asks the engine to do.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindReconfigure
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindReconfigure:
		return "reconfigure"
	case KindReset:
		return "reset"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one inbound message for the engine. Pitch and Velocity are used
// by note events, On and Off by KindReconfigure.
type Event struct {
	Kind     Kind
	Pitch    int
	Velocity int
	On, Off  int
}

// NoteOn builds a note-on event. A velocity of 0 is treated as a note-off
// when handled.
func NoteOn(pitch, velocity int) Event {
	return Event{Kind: KindNoteOn, Pitch: pitch, Velocity: velocity}
}

func NoteOff(pitch int) Event {
	return Event{Kind: KindNoteOff, Pitch: pitch}
}

func Reconfigure(on, off int) Event {
	return Event{Kind: KindReconfigure, On: on, Off: off}
}

func Reset() Event {
	return Event{Kind: KindReset}
}

// Note is a pitch/velocity pair passed downstream. Velocity 0 is a release.
type Note struct {
	Pitch    int
	Velocity int
}

// Decision describes the verdict for a single note-on.
type Decision struct {
	Pitch       int
	Slot        int // 1-based slot within the cycle
	CycleLength int
	Pass        bool
}

func (d Decision) String() string {
	verdict := "BLOCK"
	if d.Pass {
		verdict = "PASS"
	}
	return fmt.Sprintf("NoteOn %d: %s (%d/%d)", d.Pitch, verdict, d.Slot, d.CycleLength)
}

// Result is what the engine produced for one Event. Note is nil when
// nothing is passed downstream. Decision is only set for note-ons. Status is
// empty for note-offs.
type Result struct {
	Note     *Note
	Decision *Decision
	Status   string
}

// Passed reports whether the event produced downstream output.
func (r Result) Passed() bool {
	return r.Note != nil
}
