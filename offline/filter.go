// Package offline gates Standard MIDI Files. Each track runs through its own
// gate.Engine; events the gate drops hand their delta time to the next kept
// event so everything else stays where it was.
package offline

import (
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"note-gate/debug"
	"note-gate/gate"
	"note-gate/midi"
)

// TrackStats summarizes one gated track.
type TrackStats struct {
	Track    int
	Passed   int // note-ons kept
	Blocked  int // note-ons removed
	Released int // note-offs kept
	Absorbed int // note-offs removed
	Held     []int
}

func (s TrackStats) String() string {
	return fmt.Sprintf("track %d: %d passed, %d blocked, %d released, %d absorbed, %d held at end",
		s.Track, s.Passed, s.Blocked, s.Released, s.Absorbed, len(s.Held))
}

// Options controls how a file is gated.
type Options struct {
	Gate []gate.Option
	// SplitChannels gives every MIDI channel in a track its own cycle, for
	// format 0 files where all parts share one track.
	SplitChannels bool
}

// FilterSMF returns a gated copy of src. src is not modified.
func FilterSMF(src *smf.SMF, p gate.Pattern, opts Options) (*smf.SMF, []TrackStats, error) {
	dst := smf.New()
	dst.TimeFormat = src.TimeFormat

	stats := make([]TrackStats, 0, len(src.Tracks))
	for i, tr := range src.Tracks {
		filter := FilterTrack
		if opts.SplitChannels {
			filter = FilterTrackByChannel
		}
		out, st := filter(tr, gate.New(p, opts.Gate...))
		st.Track = i
		if err := dst.Add(out); err != nil {
			return nil, nil, fmt.Errorf("add track %d: %w", i, err)
		}
		debug.Log("offline", "%s", st)
		stats = append(stats, st)
	}
	return dst, stats, nil
}

// FilterTrack gates one track with e. All channels share e's cycle.
func FilterTrack(tr smf.Track, e *gate.Engine) (smf.Track, TrackStats) {
	out, st := filterTrack(tr, func(uint8) *gate.Engine { return e })
	st.Held = e.Held()
	return out, st
}

// FilterTrackByChannel gates one track with a fork of e per channel.
func FilterTrackByChannel(tr smf.Track, e *gate.Engine) (smf.Track, TrackStats) {
	lanes := make(map[uint8]*gate.Engine)
	out, st := filterTrack(tr, func(ch uint8) *gate.Engine {
		l, ok := lanes[ch]
		if !ok {
			l = e.Fork()
			lanes[ch] = l
		}
		return l
	})
	for _, l := range lanes {
		st.Held = append(st.Held, l.Held()...)
	}
	sort.Ints(st.Held)
	return out, st
}

func filterTrack(tr smf.Track, lane func(channel uint8) *gate.Engine) (smf.Track, TrackStats) {
	var (
		out     smf.Track
		st      TrackStats
		pending uint32 // delta carried over from dropped events
	)

	for _, ev := range tr {
		keep := true
		if evt, ok := midi.Decode(gomidi.Message(ev.Message)); ok {
			switch evt.Type {
			case midi.NoteOn:
				keep = lane(evt.Channel).NoteOn(int(evt.Note), int(evt.Velocity)).Passed()
				if keep {
					st.Passed++
				} else {
					st.Blocked++
				}
			case midi.NoteOff:
				keep = lane(evt.Channel).NoteOff(int(evt.Note)).Passed()
				if keep {
					st.Released++
				} else {
					st.Absorbed++
				}
			}
		}

		if !keep {
			pending += ev.Delta
			continue
		}
		out = append(out, smf.Event{Delta: pending + ev.Delta, Message: ev.Message})
		pending = 0
	}
	return out, st
}

// FilterFile gates the file at in and writes the result to out.
func FilterFile(in, out string, p gate.Pattern, opts Options) ([]TrackStats, error) {
	src, err := smf.ReadFile(in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}

	dst, stats, err := FilterSMF(src, p, opts)
	if err != nil {
		return nil, err
	}

	if err := dst.WriteFile(out); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return stats, nil
}
