package gate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatternClamps(t *testing.T) {
	tests := []struct {
		on, off int
		want    Pattern
	}{
		{3, 2, Pattern{3, 2}},
		{0, 0, Pattern{1, 0}},
		{-4, 5, Pattern{1, 5}},
		{2, -3, Pattern{2, 0}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.on, tt.off), func(t *testing.T) {
			p := NewPattern(tt.on, tt.off)
			assert.Equal(t, tt.want, p)
			assert.GreaterOrEqual(t, p.Length(), 1)
		})
	}
}

func TestNewClampsPattern(t *testing.T) {
	e := New(Pattern{On: 0, Off: -1})
	assert.Equal(t, Pattern{On: 1, Off: 0}, e.Pattern())
}

func TestCycleVerdicts(t *testing.T) {
	patterns := []Pattern{{1, 0}, {1, 1}, {3, 2}, {2, 5}, {4, 1}}
	for _, p := range patterns {
		t.Run(p.String(), func(t *testing.T) {
			e := New(p)
			for k := 1; k <= 3*p.Length()+2; k++ {
				res := e.NoteOn(60, 100)
				want := (k-1)%p.Length() < p.On
				require.NotNil(t, res.Decision)
				assert.Equal(t, want, res.Decision.Pass, "note-on %d", k)
				assert.Equal(t, want, res.Passed(), "note-on %d", k)
				assert.Equal(t, (k-1)%p.Length()+1, res.Decision.Slot)
				assert.Equal(t, p.Length(), res.Decision.CycleLength)
				e.NoteOff(60)
			}
		})
	}
}

func TestScenarioThreeTwo(t *testing.T) {
	e := New(Pattern{On: 3, Off: 2})

	pitches := []int{60, 61, 62, 63, 64, 65}
	wantPass := []bool{true, true, true, false, false, true}
	wantStatus := []string{
		"NoteOn 60: PASS (1/5)",
		"NoteOn 61: PASS (2/5)",
		"NoteOn 62: PASS (3/5)",
		"NoteOn 63: BLOCK (4/5)",
		"NoteOn 64: BLOCK (5/5)",
		"NoteOn 65: PASS (1/5)",
	}

	for i, p := range pitches {
		res := e.NoteOn(p, 100)
		assert.Equal(t, wantStatus[i], res.Status)
		if wantPass[i] {
			require.NotNil(t, res.Note)
			assert.Equal(t, Note{Pitch: p, Velocity: 100}, *res.Note)
		} else {
			assert.Nil(t, res.Note)
		}
	}

	var released []int
	for _, p := range pitches {
		res := e.NoteOff(p)
		assert.Empty(t, res.Status)
		if res.Note != nil {
			assert.Equal(t, 0, res.Note.Velocity)
			released = append(released, res.Note.Pitch)
		}
	}
	assert.Equal(t, []int{60, 61, 62, 65}, released)
	assert.Empty(t, e.Held())
}

func TestNoteOffNeverAdvancesCycle(t *testing.T) {
	e := New(Pattern{On: 1, Off: 1})
	e.NoteOn(60, 100)
	for i := 0; i < 5; i++ {
		e.NoteOff(60)
		e.NoteOff(72)
	}
	assert.Equal(t, 1, e.Position())

	res := e.NoteOn(61, 100)
	assert.False(t, res.Decision.Pass)
	assert.Equal(t, 2, res.Decision.Slot)
}

func TestZeroVelocityIsNoteOff(t *testing.T) {
	e := New(Pattern{On: 1, Off: 1})
	e.NoteOn(60, 90)

	res := e.NoteOn(60, 0)
	require.NotNil(t, res.Note)
	assert.Equal(t, Note{Pitch: 60, Velocity: 0}, *res.Note)
	assert.Nil(t, res.Decision)
	assert.Equal(t, 1, e.Position())
}

func TestPassedNoteAlwaysReleased(t *testing.T) {
	e := New(Pattern{On: 2, Off: 3})
	for k := 0; k < 20; k++ {
		pitch := 40 + k%7
		on := e.NoteOn(pitch, 64)
		// unrelated traffic between on and off must not matter
		e.NoteOn(100, 64)
		e.NoteOff(100)
		off := e.NoteOff(pitch)
		assert.Equal(t, on.Passed(), off.Passed(), "note-on %d pitch %d", k, pitch)
	}
}

func TestBlockedNoteNeverReleased(t *testing.T) {
	e := New(Pattern{On: 1, Off: 2})
	e.NoteOn(60, 100) // slot 1 pass
	e.NoteOff(60)

	res := e.NoteOn(60, 100) // slot 2 block
	require.False(t, res.Passed())
	e.ResetCycle()
	assert.Nil(t, e.NoteOff(60).Note)
}

func TestRetriggerOverwritesAllowed(t *testing.T) {
	e := New(Pattern{On: 1, Off: 1})
	require.True(t, e.NoteOn(60, 100).Passed())
	require.False(t, e.NoteOn(60, 100).Passed())

	// most recent note-on for 60 was blocked
	assert.False(t, e.NoteOff(60).Passed())
}

func TestDoubleNoteOffReleasesOnce(t *testing.T) {
	e := New(Pattern{On: 1, Off: 0})
	e.NoteOn(64, 100)

	first := e.NoteOff(64)
	second := e.NoteOff(64)
	assert.True(t, first.Passed())
	assert.False(t, second.Passed())
}

func TestUnmatchedNoteOffAbsorbed(t *testing.T) {
	e := New(DefaultPattern)
	res := e.NoteOff(12)
	assert.Equal(t, Result{}, res)
}

func TestResetCycle(t *testing.T) {
	e := New(Pattern{On: 2, Off: 2})
	for i := 0; i < 3; i++ {
		e.NoteOn(50+i, 100)
	}
	held := e.Held()
	require.Equal(t, []int{50, 51}, held)

	res := e.ResetCycle()
	assert.Equal(t, "Cycle reset", res.Status)
	assert.Nil(t, res.Note)
	assert.Equal(t, 0, e.Position())
	assert.Equal(t, held, e.Held())

	next := e.NoteOn(70, 100)
	assert.Equal(t, 1, next.Decision.Slot)
	assert.True(t, next.Passed())

	// notes from before the reset are still released
	assert.True(t, e.NoteOff(50).Passed())
}

func TestReconfigureClampsAndResets(t *testing.T) {
	e := New(Pattern{On: 3, Off: 2})
	e.NoteOn(60, 100)
	e.NoteOn(61, 100)

	res := e.Reconfigure(0, -3)
	assert.Equal(t, "Set pattern: 1 ON / 0 OFF", res.Status)
	assert.Equal(t, Pattern{On: 1, Off: 0}, e.Pattern())
	assert.Equal(t, 0, e.Position())

	next := e.NoteOn(62, 100)
	assert.Equal(t, "NoteOn 62: PASS (1/1)", next.Status)
}

func TestReconfigureClearsHeldByDefault(t *testing.T) {
	e := New(Pattern{On: 1, Off: 0})
	e.NoteOn(60, 100)
	e.Reconfigure(2, 2)

	assert.Empty(t, e.Held())
	assert.False(t, e.NoteOff(60).Passed(), "note held across reconfigure is dropped")
}

func TestReconfigurePreserveHeld(t *testing.T) {
	e := New(Pattern{On: 1, Off: 0}, PreserveHeld(true))
	e.NoteOn(60, 100)
	e.Reconfigure(2, 2)

	assert.Equal(t, []int{60}, e.Held())
	assert.True(t, e.NoteOff(60).Passed())
}

func TestFlush(t *testing.T) {
	e := New(Pattern{On: 4, Off: 1})
	for _, p := range []int{67, 60, 64, 72, 55} {
		e.NoteOn(p, 100)
	}
	// 55 landed in slot 5 and was blocked
	notes, status := e.Flush()
	assert.Equal(t, []Note{{60, 0}, {64, 0}, {67, 0}, {72, 0}}, notes)
	assert.Equal(t, "Flush: 4 released", status)
	assert.Empty(t, e.Held())

	notes, _ = e.Flush()
	assert.Empty(t, notes)
}

func TestOutOfRangeValuesAccepted(t *testing.T) {
	e := New(Pattern{On: 1, Off: 0})
	res := e.NoteOn(300, 999)
	require.NotNil(t, res.Note)
	assert.Equal(t, Note{Pitch: 300, Velocity: 999}, *res.Note)
	assert.True(t, e.NoteOff(300).Passed())
}

func TestSnapshot(t *testing.T) {
	e := New(Pattern{On: 2, Off: 1})
	e.NoteOn(60, 100)
	e.NoteOn(62, 100)

	s := e.Snapshot()
	assert.Equal(t, Pattern{On: 2, Off: 1}, s.Pattern)
	assert.Equal(t, 2, s.Position)
	assert.Equal(t, 3, s.NextSlot)
	assert.False(t, s.NextPass)
	assert.Equal(t, []int{60, 62}, s.Held)
}

func TestIndependentEngines(t *testing.T) {
	a := New(Pattern{On: 1, Off: 1})
	b := New(Pattern{On: 1, Off: 1})
	a.NoteOn(60, 100)

	assert.True(t, b.NoteOn(60, 100).Passed())
	assert.False(t, a.NoteOn(60, 100).Passed())
}

func TestFork(t *testing.T) {
	e := New(Pattern{On: 1, Off: 2}, PreserveHeld(true))
	e.NoteOn(60, 100)
	e.NoteOn(61, 100)

	f := e.Fork()
	assert.Equal(t, e.Pattern(), f.Pattern())
	assert.Equal(t, 0, f.Position())
	assert.Empty(t, f.Held())

	// options carry over
	f.NoteOn(64, 100)
	f.Reconfigure(2, 2)
	assert.Equal(t, []int{64}, f.Held())

	// and the original is untouched
	assert.Equal(t, 2, e.Position())
	assert.Equal(t, []int{60}, e.Held())
}

func TestTranscriptGolden(t *testing.T) {
	e := New(Pattern{On: 3, Off: 2})
	events := []Event{
		NoteOn(60, 100), NoteOn(61, 100), NoteOn(62, 100),
		NoteOn(63, 100), NoteOn(64, 100), NoteOn(65, 100),
		NoteOff(60), NoteOff(61), NoteOff(62),
		NoteOff(63), NoteOff(64), NoteOff(65),
		Reset(),
		NoteOn(66, 80),
		Reconfigure(0, -3),
		NoteOff(66),
		NoteOn(67, 90),
		NoteOn(67, 0),
	}

	var out strings.Builder
	for _, ev := range events {
		res := e.HandleEvent(ev)
		if res.Status != "" {
			out.WriteString(res.Status + "\n")
		}
		if res.Note != nil {
			fmt.Fprintf(&out, "-> %d %d\n", res.Note.Pitch, res.Note.Velocity)
		}
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "transcript", []byte(out.String()))
}
