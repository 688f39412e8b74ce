package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrPortNotFound = errors.New("midi port not found")
	// ErrScanTimeout means the driver didn't answer in time. On macOS this
	// is usually a hung CoreMIDI: sudo killall coreaudiod midiserver
	ErrScanTimeout = errors.New("midi port scan timed out")
)

// DefaultScanTimeout bounds a single port scan.
const DefaultScanTimeout = 3 * time.Second

// Ports is a snapshot of the available MIDI ports.
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// InNames returns the input port names.
func (p Ports) InNames() []string {
	names := make([]string, len(p.Ins))
	for i, in := range p.Ins {
		names[i] = in.String()
	}
	return names
}

// OutNames returns the output port names.
func (p Ports) OutNames() []string {
	names := make([]string, len(p.Outs))
	for i, out := range p.Outs {
		names[i] = out.String()
	}
	return names
}

// ScanPorts lists ports, giving up after timeout. The driver call keeps
// running in the background if it hangs.
func ScanPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrScanTimeout
	}
}

// MatchPort returns the index of the port best matching name: an exact
// case-insensitive match wins, otherwise the first name containing it.
// Returns -1 when nothing matches or name is empty.
func MatchPort(names []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return -1
	}
	for i, n := range names {
		if strings.ToLower(n) == want {
			return i
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// FindIn looks up an input port by name.
func (p Ports) FindIn(name string) (drivers.In, error) {
	i := MatchPort(p.InNames(), name)
	if i < 0 {
		return nil, fmt.Errorf("input %q: %w", name, ErrPortNotFound)
	}
	return p.Ins[i], nil
}

// FindOut looks up an output port by name.
func (p Ports) FindOut(name string) (drivers.Out, error) {
	i := MatchPort(p.OutNames(), name)
	if i < 0 {
		return nil, fmt.Errorf("output %q: %w", name, ErrPortNotFound)
	}
	return p.Outs[i], nil
}

// OpenOutput finds an output port and returns a sender for it along with
// the port's full name.
func OpenOutput(name string) (send func(gomidi.Message) error, portName string, err error) {
	ports, err := ScanPorts(DefaultScanTimeout)
	if err != nil {
		return nil, "", err
	}
	out, err := ports.FindOut(name)
	if err != nil {
		return nil, "", err
	}
	send, err = gomidi.SendTo(out)
	if err != nil {
		return nil, "", fmt.Errorf("open output %q: %w", out.String(), err)
	}
	return send, out.String(), nil
}
