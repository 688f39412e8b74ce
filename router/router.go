// Package router hosts a gate.Engine on a live MIDI stream. Every input
// event and control command goes through a single goroutine, so the engine
// sees them one at a time in arrival order.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"note-gate/config"
	"note-gate/debug"
	"note-gate/gate"
	"note-gate/midi"
)

// Options controls routing around the engine
type Options struct {
	InputChannel       int  // 0 = omni, 1-16 = only this channel
	OutputChannel      int  // 0 = keep the incoming channel, 1-16 = remap
	Thru               bool // forward non-note messages
	FlushOnReconfigure bool // release held notes before a pattern change
	SplitChannels      bool // omni input: one cycle per input channel
	History            int  // status lines kept for Snapshot

	// OnStatus, if set, is called from the routing goroutine for every
	// status line.
	OnStatus func(string)
}

// OptionsFromConfig maps the config file onto router options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InputChannel:       cfg.Input.Channel,
		OutputChannel:      cfg.Output.Channel,
		Thru:               cfg.Thru,
		FlushOnReconfigure: cfg.FlushOnReconfigure,
		SplitChannels:      cfg.SplitChannels,
		History:            cfg.UI.History,
	}
}

// Stats counts what the router has done
type Stats struct {
	Passed     uint64 // note-ons let through
	Blocked    uint64 // note-ons held back
	Released   uint64 // note-offs let through (including flushes)
	Absorbed   uint64 // note-offs with no passed note-on
	Forwarded  uint64 // non-note messages sent thru
	Filtered   uint64 // events on other input channels, or thru disabled
	Dropped    uint64 // events lost because the input queue was full
	SendErrors uint64
}

// View is a snapshot for the UI
type View struct {
	State   gate.State
	Stats   Stats
	History []string
}

type commandKind int

const (
	cmdReconfigure commandKind = iota
	cmdAdjust
	cmdReset
	cmdFlush
)

type command struct {
	kind    commandKind
	on, off int // absolute for cmdReconfigure, deltas for cmdAdjust
}

// omniLane is the single lane used unless channels are split
const omniLane = -1

// inbound is an event from an attached source, or the notice that the
// source has closed
type inbound struct {
	source uint64
	id     string
	evt    midi.Event
	closed bool
}

type heldKey struct {
	lane  int
	pitch int
}

// heldNote remembers where a passed note-on went and who played it, so its
// release goes to the same output channel and can be sent if the source
// disappears
type heldNote struct {
	channel uint8
	source  uint64 // 0 for events written to Input
}

// Router owns the engines and the output sender
type Router struct {
	engine *gate.Engine // template for new lanes, and the omni lane
	send   func(gomidi.Message) error
	opts   Options

	input    chan midi.Event
	inbound  chan inbound
	commands chan command
	done     chan struct{}
	sources  atomic.Uint64

	// only touched by the routing goroutine
	lanes map[int]*gate.Engine
	last  int // lane of the latest note-on
	held  map[heldKey]heldNote

	mu      sync.RWMutex
	stats   Stats
	state   gate.State
	history []string

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// New creates a router. send may be nil for a dry run.
func New(engine *gate.Engine, send func(gomidi.Message) error, opts Options) *Router {
	if opts.History <= 0 {
		opts.History = 12
	}
	return &Router{
		engine:     engine,
		send:       send,
		opts:       opts,
		input:      make(chan midi.Event, 64),
		inbound:    make(chan inbound, 64),
		commands:   make(chan command, 16),
		done:       make(chan struct{}),
		lanes:      map[int]*gate.Engine{omniLane: engine},
		last:       omniLane,
		held:       make(map[heldKey]heldNote),
		state:      engine.Snapshot(),
		UpdateChan: make(chan struct{}, 1),
	}
}

// Input returns the channel the routing loop reads events from
func (r *Router) Input() chan<- midi.Event {
	return r.input
}

// Attach forwards events from src until it closes, then releases the notes
// src still holds. Events are dropped when the router can't keep up.
func (r *Router) Attach(src midi.Source) {
	key := r.sources.Add(1)
	id := src.ID()
	go func() {
		for evt := range src.Events() {
			select {
			case r.inbound <- inbound{source: key, id: id, evt: evt}:
			case <-r.done:
				return
			default:
				r.mu.Lock()
				r.stats.Dropped++
				r.mu.Unlock()
				debug.LogEvery(10, "router", "input full, dropping")
			}
		}
		debug.Log("router", "source %q closed", id)
		select {
		case r.inbound <- inbound{source: key, id: id, closed: true}:
		case <-r.done:
		}
	}()
}

// Run processes events and commands until ctx is cancelled, then releases
// any held notes (blocking - run in goroutine)
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.flush()
			r.notifyUpdate()
			return
		case evt := <-r.input:
			r.Handle(evt)
		case in := <-r.inbound:
			if in.closed {
				r.release(in.source, in.id)
			} else {
				r.handle(in.source, in.evt)
			}
		case cmd := <-r.commands:
			r.apply(cmd)
		}
	}
}

// Reconfigure queues a pattern change
func (r *Router) Reconfigure(on, off int) {
	r.enqueue(command{kind: cmdReconfigure, on: on, off: off})
}

// Adjust queues a pattern change relative to the pattern in effect when
// the router gets to it
func (r *Router) Adjust(dOn, dOff int) {
	r.enqueue(command{kind: cmdAdjust, on: dOn, off: dOff})
}

// ResetCycle queues a cycle reset
func (r *Router) ResetCycle() {
	r.enqueue(command{kind: cmdReset})
}

// Flush queues a release of every held note
func (r *Router) Flush() {
	r.enqueue(command{kind: cmdFlush})
}

func (r *Router) enqueue(cmd command) {
	select {
	case r.commands <- cmd:
	case <-r.done:
	}
}

// Handle routes one event. Only call it from the goroutine that owns the
// router (Run's, or a test's when Run isn't running).
func (r *Router) Handle(evt midi.Event) {
	r.handle(0, evt)
}

func (r *Router) handle(source uint64, evt midi.Event) {
	defer r.notifyUpdate()

	if r.opts.InputChannel != 0 && evt.HasChannel() && int(evt.Channel) != r.opts.InputChannel-1 {
		r.count(func(s *Stats) { s.Filtered++ })
		return
	}

	switch {
	case evt.Type == midi.NoteOn && evt.Velocity > 0:
		r.noteOn(source, evt)
	case evt.IsNote():
		r.noteOff(evt)
	default:
		if !r.opts.Thru {
			r.count(func(s *Stats) { s.Filtered++ })
			return
		}
		r.emit(evt.Message(r.outChannel(evt)))
		r.count(func(s *Stats) { s.Forwarded++ })
	}
}

func (r *Router) laneOf(evt midi.Event) int {
	if r.opts.SplitChannels {
		return int(evt.Channel)
	}
	return omniLane
}

func (r *Router) laneEngine(lane int) *gate.Engine {
	e, ok := r.lanes[lane]
	if !ok {
		e = r.engine.Fork()
		r.lanes[lane] = e
	}
	return e
}

func (r *Router) noteOn(source uint64, evt midi.Event) {
	lane := r.laneOf(evt)
	res := r.laneEngine(lane).NoteOn(int(evt.Note), int(evt.Velocity))
	r.last = lane
	key := heldKey{lane: lane, pitch: int(evt.Note)}
	if res.Note != nil {
		ch := r.outChannel(evt)
		r.held[key] = heldNote{channel: ch, source: source}
		r.emit(gomidi.NoteOn(ch, evt.Note, evt.Velocity))
		r.count(func(s *Stats) { s.Passed++ })
	} else {
		// a blocked retrigger makes the earlier note unreleasable
		delete(r.held, key)
		r.count(func(s *Stats) { s.Blocked++ })
	}
	r.record(res.Status)
}

func (r *Router) noteOff(evt midi.Event) {
	lane := r.laneOf(evt)
	res := r.laneEngine(lane).NoteOff(int(evt.Note))
	if res.Note == nil {
		r.count(func(s *Stats) { s.Absorbed++ })
		r.syncState()
		return
	}
	key := heldKey{lane: lane, pitch: res.Note.Pitch}
	h, ok := r.held[key]
	if !ok {
		h.channel = r.outChannel(evt)
	}
	delete(r.held, key)
	r.emit(gomidi.NoteOff(h.channel, evt.Note))
	r.count(func(s *Stats) { s.Released++ })
	r.syncState()
}

func (r *Router) apply(cmd command) {
	defer r.notifyUpdate()

	switch cmd.kind {
	case cmdReconfigure:
		r.reconfigure(cmd.on, cmd.off)
	case cmdAdjust:
		p := r.engine.Pattern()
		r.reconfigure(p.On+cmd.on, p.Off+cmd.off)
	case cmdReset:
		var status string
		for _, e := range r.lanes {
			status = e.ResetCycle().Status
		}
		r.record(status)
	case cmdFlush:
		r.flush()
	}
}

func (r *Router) reconfigure(on, off int) {
	if r.opts.FlushOnReconfigure {
		r.flush()
	}
	var status string
	for _, e := range r.lanes {
		status = e.Reconfigure(on, off).Status
	}
	r.pruneHeld()
	r.record(status)
}

// sortedLanes returns lane ids in ascending order so releases go out in a
// stable order
func (r *Router) sortedLanes() []int {
	ids := make([]int, 0, len(r.lanes))
	for id := range r.lanes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Router) flush() {
	released := 0
	for _, lane := range r.sortedLanes() {
		notes, _ := r.lanes[lane].Flush()
		for _, n := range notes {
			key := heldKey{lane: lane, pitch: n.Pitch}
			ch := r.held[key].channel
			delete(r.held, key)
			r.emit(gomidi.NoteOff(ch, uint8(n.Pitch)))
		}
		released += len(notes)
	}
	r.count(func(s *Stats) { s.Released += uint64(released) })
	r.record(fmt.Sprintf("Flush: %d released", released))
}

// release sends note-offs for everything the given source still holds
func (r *Router) release(source uint64, id string) {
	defer r.notifyUpdate()

	var keys []heldKey
	for k, h := range r.held {
		if h.source == source {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lane != keys[j].lane {
			return keys[i].lane < keys[j].lane
		}
		return keys[i].pitch < keys[j].pitch
	})

	released := 0
	for _, k := range keys {
		h := r.held[k]
		delete(r.held, k)
		if res := r.lanes[k.lane].NoteOff(k.pitch); res.Note != nil {
			r.emit(gomidi.NoteOff(h.channel, uint8(k.pitch)))
			released++
		}
	}
	r.count(func(s *Stats) { s.Released += uint64(released) })
	r.record(fmt.Sprintf("Input %s closed: %d released", id, released))
}

// pruneHeld forgets pitches the engines dropped
func (r *Router) pruneHeld() {
	still := make(map[heldKey]bool)
	for lane, e := range r.lanes {
		for _, p := range e.Held() {
			still[heldKey{lane: lane, pitch: p}] = true
		}
	}
	for k := range r.held {
		if !still[k] {
			delete(r.held, k)
		}
	}
}

func (r *Router) outChannel(evt midi.Event) uint8 {
	if r.opts.OutputChannel > 0 {
		return uint8(r.opts.OutputChannel - 1)
	}
	return evt.Channel
}

func (r *Router) emit(msg gomidi.Message) {
	if r.send == nil {
		return
	}
	if err := r.send(msg); err != nil {
		r.count(func(s *Stats) { s.SendErrors++ })
		debug.Log("router", "send %v: %v", msg, err)
	}
}

func (r *Router) count(f func(*Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

func (r *Router) record(status string) {
	st := r.current()
	r.mu.Lock()
	r.state = st
	if status != "" {
		r.history = append(r.history, status)
		if over := len(r.history) - r.opts.History; over > 0 {
			r.history = append(r.history[:0], r.history[over:]...)
		}
	}
	r.mu.Unlock()

	if status == "" {
		return
	}
	debug.Log("gate", "%s", status)
	if r.opts.OnStatus != nil {
		r.opts.OnStatus(status)
	}
}

func (r *Router) syncState() {
	st := r.current()
	r.mu.Lock()
	r.state = st
	r.mu.Unlock()
}

// current is the state of the lane that saw the latest note-on, with the
// held notes of every lane
func (r *Router) current() gate.State {
	st := r.lanes[r.last].Snapshot()
	if len(r.lanes) > 1 {
		var held []int
		for _, e := range r.lanes {
			held = append(held, e.Held()...)
		}
		sort.Ints(held)
		st.Held = held
	}
	return st
}

// Snapshot returns a copy of the router state
func (r *Router) Snapshot() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return View{
		State:   r.state,
		Stats:   r.stats,
		History: append([]string(nil), r.history...),
	}
}

// notifyUpdate pings the TUI without blocking
func (r *Router) notifyUpdate() {
	select {
	case r.UpdateChan <- struct{}{}:
	default:
	}
}
