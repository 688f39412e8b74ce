package offline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"note-gate/gate"
	"note-gate/midi"
)

// sixNotes plays 60..65, each a quarter note long, back to back.
func sixNotes() smf.Track {
	var tr smf.Track
	for n := uint8(60); n <= 65; n++ {
		tr.Add(0, gomidi.NoteOn(0, n, 100))
		tr.Add(480, gomidi.NoteOff(0, n))
	}
	tr.Close(0)
	return tr
}

type placed struct {
	tick uint32
	evt  midi.Event
}

func notesOf(tr smf.Track) []placed {
	var out []placed
	var abs uint32
	for _, ev := range tr {
		abs += ev.Delta
		evt, ok := midi.Decode(gomidi.Message(ev.Message))
		if ok && evt.IsNote() {
			out = append(out, placed{tick: abs, evt: evt})
		}
	}
	return out
}

func totalTicks(tr smf.Track) uint32 {
	var abs uint32
	for _, ev := range tr {
		abs += ev.Delta
	}
	return abs
}

func TestFilterTrack(t *testing.T) {
	in := sixNotes()
	out, st := FilterTrack(in, gate.New(gate.Pattern{On: 3, Off: 2}))

	assert.Equal(t, 4, st.Passed)
	assert.Equal(t, 2, st.Blocked)
	assert.Equal(t, 4, st.Released)
	assert.Equal(t, 2, st.Absorbed)
	assert.Empty(t, st.Held)

	notes := notesOf(out)
	require.Len(t, notes, 8)

	want := []struct {
		tick uint32
		typ  uint8
		note uint8
	}{
		{0, midi.NoteOn, 60}, {480, midi.NoteOff, 60},
		{480, midi.NoteOn, 61}, {960, midi.NoteOff, 61},
		{960, midi.NoteOn, 62}, {1440, midi.NoteOff, 62},
		{2400, midi.NoteOn, 65}, {2880, midi.NoteOff, 65},
	}
	for i, w := range want {
		assert.Equal(t, w.tick, notes[i].tick, "event %d", i)
		assert.Equal(t, w.typ, notes[i].evt.Type, "event %d", i)
		assert.Equal(t, w.note, notes[i].evt.Note, "event %d", i)
	}

	// the track keeps its length
	assert.Equal(t, totalTicks(in), totalTicks(out))
}

func TestFilterTrackKeepsNonNotes(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))  // pass
	tr.Add(10, gomidi.NoteOn(0, 61, 100)) // block
	tr.Add(10, gomidi.ControlChange(0, 64, 127))
	tr.Close(0)

	out, st := FilterTrack(tr, gate.New(gate.Pattern{On: 1, Off: 1}))
	assert.Equal(t, 1, st.Passed)
	assert.Equal(t, 1, st.Blocked)
	assert.Equal(t, []int{60}, st.Held)

	// tempo, note-on 60, CC (delta 10+10), end of track
	require.Len(t, out, 4)
	assert.Equal(t, uint32(20), out[2].Delta)
	cc, ok := midi.Decode(gomidi.Message(out[2].Message))
	require.True(t, ok)
	assert.Equal(t, midi.CC, cc.Type)
}

func TestFilterSMFPerTrackEngines(t *testing.T) {
	src := smf.New()
	src.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, src.Add(sixNotes()))
	require.NoError(t, src.Add(sixNotes()))

	dst, stats, err := FilterSMF(src, gate.Pattern{On: 3, Off: 2}, Options{})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, src.TimeFormat, dst.TimeFormat)

	for i, st := range stats {
		assert.Equal(t, i, st.Track)
		assert.Equal(t, 4, st.Passed, "each track starts its own cycle")
	}
	assert.Len(t, src.Tracks[0], 13, "source is untouched")
}

func TestFilterFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mid")
	out := filepath.Join(dir, "out.mid")

	src := smf.New()
	src.TimeFormat = smf.MetricTicks(960)
	require.NoError(t, src.Add(sixNotes()))
	require.NoError(t, src.WriteFile(in))

	stats, err := FilterFile(in, out, gate.Pattern{On: 1, Off: 1}, Options{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Passed)
	assert.Equal(t, "track 0: 3 passed, 3 blocked, 3 released, 3 absorbed, 0 held at end", stats[0].String())

	got, err := smf.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, got.Tracks, 1)

	var pitches []uint8
	for _, p := range notesOf(got.Tracks[0]) {
		if p.evt.Type == midi.NoteOn {
			pitches = append(pitches, p.evt.Note)
		}
	}
	assert.Equal(t, []uint8{60, 62, 64}, pitches)
}

func TestFilterFileMissing(t *testing.T) {
	_, err := FilterFile(filepath.Join(t.TempDir(), "nope.mid"), "out.mid", gate.DefaultPattern, Options{})
	assert.ErrorContains(t, err, "read")
}

// twoParts interleaves the same pitch on channels 1 and 2, as a format 0
// file does
func twoParts() smf.Track {
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(0, gomidi.NoteOn(1, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Add(0, gomidi.NoteOff(1, 60))
	tr.Close(0)
	return tr
}

func TestFilterTrackSharedCycle(t *testing.T) {
	out, st := FilterTrack(twoParts(), gate.New(gate.Pattern{On: 1, Off: 1}))

	// channel 2 lands on the OFF slot and takes pitch 60 over
	assert.Equal(t, 1, st.Passed)
	assert.Equal(t, 1, st.Blocked)
	assert.Equal(t, 2, st.Absorbed)
	require.Len(t, notesOf(out), 1)
}

func TestFilterTrackByChannel(t *testing.T) {
	out, st := FilterTrackByChannel(twoParts(), gate.New(gate.Pattern{On: 1, Off: 1}))

	assert.Equal(t, 2, st.Passed)
	assert.Equal(t, 2, st.Released)
	assert.Empty(t, st.Held)

	notes := notesOf(out)
	require.Len(t, notes, 4)
	assert.Equal(t, uint8(0), notes[2].evt.Channel)
	assert.Equal(t, midi.NoteOff, notes[2].evt.Type)
	assert.Equal(t, uint8(1), notes[3].evt.Channel)
}

func TestFilterSMFSplitChannels(t *testing.T) {
	src := smf.New()
	src.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, src.Add(twoParts()))

	_, stats, err := FilterSMF(src, gate.Pattern{On: 1, Off: 1}, Options{SplitChannels: true})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Passed)
}
