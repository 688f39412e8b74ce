package midi

import (
	"context"
	"sync"
	"time"

	"note-gate/debug"
)

// DeviceEvent is emitted when the watched input connects/disconnects
type DeviceEvent struct {
	Type   DeviceEventType
	Source Source
	ID     string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceManager watches for an input port by name and opens it whenever it
// shows up, so a keyboard can be unplugged and replugged mid-session.
type DeviceManager struct {
	portName string
	sources  map[string]Source
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration

	// swapped in tests
	list func() ([]string, error)
	open func(name string) (Source, error)
}

// NewDeviceManager creates a manager watching for inputs matching portName
func NewDeviceManager(portName string) *DeviceManager {
	return &DeviceManager{
		portName: portName,
		sources:  make(map[string]Source),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
		list:     scanInNames,
		open:     openSource,
	}
}

func scanInNames() ([]string, error) {
	ports, err := ScanPorts(DefaultScanTimeout)
	if err != nil {
		return nil, err
	}
	return ports.InNames(), nil
}

func openSource(name string) (Source, error) {
	return OpenInput(name)
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Sources returns a snapshot of connected inputs
func (dm *DeviceManager) Sources() map[string]Source {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	snapshot := make(map[string]Source, len(dm.sources))
	for k, v := range dm.sources {
		snapshot[k] = v
	}
	return snapshot
}

// Connected reports whether the watched input is currently open
func (dm *DeviceManager) Connected() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.sources) > 0
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	names, err := dm.list()
	if err != nil {
		// a hung driver skips this round, the next tick retries
		debug.Log("device", "scan failed: %v", err)
		return
	}

	seen := make(map[string]bool)
	if i := MatchPort(names, dm.portName); i >= 0 {
		id := names[i]
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.sources[id]
		dm.mu.RUnlock()

		if !exists {
			src, err := dm.open(id)
			if err != nil {
				debug.Log("device", "open %q failed: %v", id, err)
			} else {
				dm.mu.Lock()
				dm.sources[id] = src
				dm.mu.Unlock()
				debug.Log("device", "connected %q", id)
				dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Source: src, ID: id})
			}
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var gone []string
	for id, src := range dm.sources {
		if !seen[id] {
			src.Close()
			delete(dm.sources, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("device", "disconnected %q", id)
		dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ctx context.Context, evt DeviceEvent) {
	select {
	case dm.events <- evt:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, s := range dm.sources {
		s.Close()
	}
	dm.sources = make(map[string]Source)
}
