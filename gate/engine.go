// Package gate implements a rhythmic note gate: a cyclic pattern of ON and
// OFF slots decides whether each incoming note-on is passed downstream. The
// cycle advances once per note-on, passed or not. Note-offs never advance it
// and are released only for pitches whose note-on was passed, so a passed
// note can't get stuck and a blocked one is never released.
//
// An Engine is not safe for concurrent use. Hosts that receive events from
// several producers must serialize them before calling in.
package gate

import (
	"fmt"
	"sort"
)

const statusReset = "Cycle reset"

// noteSet tracks which pitches are currently passed through. Unknown
// pitches read as false.
type noteSet map[int]bool

func (s noteSet) has(pitch int) bool {
	return s[pitch]
}

// Engine is a single gate instance.
type Engine struct {
	pattern      Pattern
	position     int // note-ons seen since the last reset
	allowed      noteSet
	preserveHeld bool
}

// Option configures an Engine.
type Option func(*Engine)

// PreserveHeld keeps the allowed set across Reconfigure, so notes passed
// under the old pattern still get their note-off. Without it Reconfigure
// clears the set and those note-offs are swallowed.
func PreserveHeld(preserve bool) Option {
	return func(e *Engine) {
		e.preserveHeld = preserve
	}
}

// New creates an engine for the given pattern. The pattern is clamped.
func New(p Pattern, opts ...Option) *Engine {
	e := &Engine{
		pattern: p.Clamped(),
		allowed: make(noteSet),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fork returns a fresh engine with e's pattern and options, at the start of
// the cycle and holding nothing.
func (e *Engine) Fork() *Engine {
	return &Engine{
		pattern:      e.pattern,
		allowed:      make(noteSet),
		preserveHeld: e.preserveHeld,
	}
}

// HandleEvent processes one event to completion.
func (e *Engine) HandleEvent(ev Event) Result {
	switch ev.Kind {
	case KindNoteOn:
		if ev.Velocity > 0 {
			return e.noteOn(ev.Pitch, ev.Velocity)
		}
		return e.noteOff(ev.Pitch)
	case KindNoteOff:
		return e.noteOff(ev.Pitch)
	case KindReconfigure:
		return e.reconfigure(ev.On, ev.Off)
	case KindReset:
		return e.resetCycle()
	}
	return Result{}
}

// NoteOn handles a note-on. Velocity 0 is a note-off.
func (e *Engine) NoteOn(pitch, velocity int) Result {
	return e.HandleEvent(NoteOn(pitch, velocity))
}

// NoteOff releases pitch if its last note-on was passed.
func (e *Engine) NoteOff(pitch int) Result {
	return e.HandleEvent(NoteOff(pitch))
}

// Reconfigure replaces the pattern and restarts the cycle.
func (e *Engine) Reconfigure(on, off int) Result {
	return e.HandleEvent(Reconfigure(on, off))
}

// ResetCycle restarts the cycle without touching the pattern or held notes.
func (e *Engine) ResetCycle() Result {
	return e.HandleEvent(Reset())
}

func (e *Engine) noteOn(pitch, velocity int) Result {
	slot := e.position % e.pattern.Length()
	pass := e.pattern.Passes(slot)
	e.allowed[pitch] = pass
	e.position++

	d := &Decision{
		Pitch:       pitch,
		Slot:        slot + 1,
		CycleLength: e.pattern.Length(),
		Pass:        pass,
	}
	res := Result{Decision: d, Status: d.String()}
	if pass {
		res.Note = &Note{Pitch: pitch, Velocity: velocity}
	}
	return res
}

func (e *Engine) noteOff(pitch int) Result {
	var res Result
	if e.allowed.has(pitch) {
		res.Note = &Note{Pitch: pitch, Velocity: 0}
	}
	e.allowed[pitch] = false
	return res
}

func (e *Engine) reconfigure(on, off int) Result {
	e.pattern = NewPattern(on, off)
	e.position = 0
	if !e.preserveHeld {
		e.allowed = make(noteSet)
	}
	return Result{Status: "Set pattern: " + e.pattern.String()}
}

func (e *Engine) resetCycle() Result {
	e.position = 0
	return Result{Status: statusReset}
}

// Flush releases every held note, lowest pitch first, and forgets them.
// Hosts call it on shutdown or before dropping the engine so nothing is left
// sounding.
func (e *Engine) Flush() ([]Note, string) {
	held := e.Held()
	notes := make([]Note, 0, len(held))
	for _, p := range held {
		notes = append(notes, Note{Pitch: p, Velocity: 0})
		e.allowed[p] = false
	}
	return notes, fmt.Sprintf("Flush: %d released", len(notes))
}

// Held returns the currently passed-through pitches in ascending order.
func (e *Engine) Held() []int {
	var held []int
	for p, on := range e.allowed {
		if on {
			held = append(held, p)
		}
	}
	sort.Ints(held)
	return held
}

// Pattern returns the active pattern.
func (e *Engine) Pattern() Pattern {
	return e.pattern
}

// Position returns the number of note-ons since the last reset.
func (e *Engine) Position() int {
	return e.position
}

// State is a read-only view of an engine.
type State struct {
	Pattern  Pattern
	Position int
	NextSlot int  // 1-based slot the next note-on lands in
	NextPass bool // whether that slot is inside the ON window
	Held     []int
}

// Snapshot returns the engine's current state.
func (e *Engine) Snapshot() State {
	slot := e.position % e.pattern.Length()
	return State{
		Pattern:  e.pattern,
		Position: e.position,
		NextSlot: slot + 1,
		NextPass: e.pattern.Passes(slot),
		Held:     e.Held(),
	}
}
