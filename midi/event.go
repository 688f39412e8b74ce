package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Other   uint8 = 0x00 // anything else, carried in Raw
)

// Event is a decoded MIDI message. Channel is 0-15.
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC, Other
	Channel  uint8
	Note     uint8 // note number, or controller number for CC
	Velocity uint8 // velocity, or value for CC
	Raw      gomidi.Message
}

// Decode converts a gomidi message. A note-on with velocity 0 decodes as a
// note-off. ok is false for empty messages.
func Decode(msg gomidi.Message) (evt Event, ok bool) {
	raw := []byte(msg)
	if len(raw) == 0 {
		return Event{}, false
	}
	evt.Raw = msg

	var channel, note, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
		evt.Type = NoteOn
	case msg.GetNoteOff(&channel, &note, &velocity):
		evt.Type = NoteOff
		velocity = 0
	case msg.GetNoteEnd(&channel, &note):
		evt.Type = NoteOff
		velocity = 0
	case msg.GetControlChange(&channel, &note, &velocity):
		evt.Type = CC
	default:
		evt.Type = Other
		note, velocity = 0, 0
		if status := raw[0]; status >= 0x80 && status < 0xF0 {
			channel = status & 0x0F
		}
	}
	evt.Channel = channel
	evt.Note = note
	evt.Velocity = velocity
	return evt, true
}

// IsNote reports whether the event is a note-on or note-off.
func (e Event) IsNote() bool {
	return e.Type == NoteOn || e.Type == NoteOff
}

// HasChannel reports whether the event is a channel voice message.
func (e Event) HasChannel() bool {
	if e.Type != Other {
		return true
	}
	raw := []byte(e.Raw)
	return len(raw) > 0 && raw[0] >= 0x80 && raw[0] < 0xF0
}

// Message encodes the event on the given channel (0-15). Other events are
// returned as their raw bytes unchanged.
func (e Event) Message(channel uint8) gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(channel, e.Note)
	case CC:
		return gomidi.ControlChange(channel, e.Note, e.Velocity)
	}
	return e.Raw
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("ch%d NoteOn %d vel %d", e.Channel+1, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("ch%d NoteOff %d", e.Channel+1, e.Note)
	case CC:
		return fmt.Sprintf("ch%d CC %d = %d", e.Channel+1, e.Note, e.Velocity)
	}
	return fmt.Sprintf("% X", []byte(e.Raw))
}
