// Package scenario runs scripted event sequences against a fresh gate
// engine and renders what came out. Scripts are YAML:
//
//	name: three-two
//	pattern: {on: 3, off: 2}
//	steps:
//	  - on: [60, 61, 62]
//	    velocity: 100
//	  - off: [60, 61, 62]
//	  - set: {on: 4, off: 1}
//	  - reset: true
//	  - flush: true
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"note-gate/gate"
)

// ErrInvalidStep is returned for steps with no action or more than one.
var ErrInvalidStep = errors.New("step must have exactly one of on, off, set, reset, flush")

// DefaultVelocity is used by on steps that don't give one.
const DefaultVelocity = 100

// Scenario is a named script.
type Scenario struct {
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description,omitempty"`
	Pattern      gate.Pattern `yaml:"pattern"`
	PreserveHeld bool         `yaml:"preserveHeld,omitempty"`
	Steps        []Step       `yaml:"steps"`
}

// Step is one scripted action. On and Off may list several pitches, played
// in order.
type Step struct {
	On       []int         `yaml:"on,omitempty"`
	Velocity int           `yaml:"velocity,omitempty"`
	Off      []int         `yaml:"off,omitempty"`
	Set      *gate.Pattern `yaml:"set,omitempty"`
	Reset    bool          `yaml:"reset,omitempty"`
	Flush    bool          `yaml:"flush,omitempty"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{len(s.On) > 0, len(s.Off) > 0, s.Set != nil, s.Reset, s.Flush} {
		if set {
			n++
		}
	}
	return n
}

// Parse decodes a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	s := &Scenario{Pattern: gate.DefaultPattern}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, step := range s.Steps {
		if step.actions() != 1 {
			return nil, fmt.Errorf("step %d: %w", i+1, ErrInvalidStep)
		}
	}
	return s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Transcript is everything a run produced, in order.
type Transcript struct {
	Lines  []string    // status lines and "-> pitch velocity" outputs
	Output []gate.Note // passed notes only
	Final  gate.State
}

func (t *Transcript) status(s string) {
	if s != "" {
		t.Lines = append(t.Lines, s)
	}
}

func (t *Transcript) note(n gate.Note) {
	t.Output = append(t.Output, n)
	t.Lines = append(t.Lines, fmt.Sprintf("-> %d %d", n.Pitch, n.Velocity))
}

func (t *Transcript) String() string {
	if len(t.Lines) == 0 {
		return ""
	}
	return strings.Join(t.Lines, "\n") + "\n"
}

// Run plays the scenario against a new engine.
func (s *Scenario) Run() *Transcript {
	e := gate.New(s.Pattern, gate.PreserveHeld(s.PreserveHeld))
	t := &Transcript{}

	for _, step := range s.Steps {
		switch {
		case len(step.On) > 0:
			vel := step.Velocity
			if vel == 0 {
				vel = DefaultVelocity
			}
			for _, p := range step.On {
				t.record(e.NoteOn(p, vel))
			}
		case len(step.Off) > 0:
			for _, p := range step.Off {
				t.record(e.NoteOff(p))
			}
		case step.Set != nil:
			t.record(e.Reconfigure(step.Set.On, step.Set.Off))
		case step.Reset:
			t.record(e.ResetCycle())
		case step.Flush:
			notes, status := e.Flush()
			t.status(status)
			for _, n := range notes {
				t.note(n)
			}
		}
	}
	t.Final = e.Snapshot()
	return t
}

func (t *Transcript) record(res gate.Result) {
	t.status(res.Status)
	if res.Note != nil {
		t.note(*res.Note)
	}
}
