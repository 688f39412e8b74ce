package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Source is a stream of decoded MIDI events from one input.
type Source interface {
	ID() string
	Events() <-chan Event
	Close() error
}

// Input listens on a MIDI input port
type Input struct {
	id       string
	stopFunc func()
	dropped  atomic.Uint64
	once     sync.Once

	mu     sync.RWMutex
	closed bool
	events chan Event
}

// NewInput opens inPort and starts decoding its messages
func NewInput(id string, inPort drivers.In) (*Input, error) {
	in := &Input{
		id:     id,
		events: make(chan Event, 64),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			if evt, ok := Decode(msg); ok {
				in.push(evt)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		in.stopFunc = stop
	}

	return in, nil
}

// OpenInput scans for an input port by name and opens it.
func OpenInput(name string) (*Input, error) {
	ports, err := ScanPorts(DefaultScanTimeout)
	if err != nil {
		return nil, err
	}
	port, err := ports.FindIn(name)
	if err != nil {
		return nil, err
	}
	return NewInput(port.String(), port)
}

// push never blocks the driver callback; events are dropped when full
func (in *Input) push(evt Event) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return
	}
	select {
	case in.events <- evt:
	default:
		in.dropped.Add(1)
	}
}

func (in *Input) ID() string {
	return in.id
}

func (in *Input) Events() <-chan Event {
	return in.events
}

// Dropped returns how many events were lost to a full buffer.
func (in *Input) Dropped() uint64 {
	return in.dropped.Load()
}

func (in *Input) Close() error {
	in.once.Do(func() {
		if in.stopFunc != nil {
			in.stopFunc()
		}
		in.mu.Lock()
		in.closed = true
		close(in.events)
		in.mu.Unlock()
	})
	return nil
}
