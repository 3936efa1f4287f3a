package device

import (
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-keyfall/debug"
)

// InputEvent is one note message from the input device
type InputEvent struct {
	Status    byte
	Data1     byte
	Data2     byte
	Timestamp int32 // driver milliseconds
}

// queueSize bounds the events buffered between two frames
const queueSize = 256

// Input listens to a MIDI input port. The driver callback only queues; the
// frame loop drains the queue.
type Input struct {
	name     string
	stopFunc func()
	events   chan InputEvent
	dropped  atomic.Int64
}

// OpenInput starts listening on the input port matching name (the first
// port when empty). Any failure wraps ErrNoInput.
func OpenInput(name string) (*Input, error) {
	r, err := scanPorts(DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInput, err)
	}
	i := match(names(r.ins), name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoInput, name)
	}
	port := r.ins[i]

	in := newInput(port.String())
	stop, err := gomidi.ListenTo(port, in.handle)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNoInput, port.String(), err)
	}
	in.stopFunc = stop
	debug.Log("device", "input %s", port.String())
	return in, nil
}

func newInput(name string) *Input {
	return &Input{name: name, events: make(chan InputEvent, queueSize)}
}

func (in *Input) Name() string { return in.name }

// handle runs on the driver's goroutine
func (in *Input) handle(msg gomidi.Message, timestampms int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		in.push(InputEvent{Status: 0x90 | ch, Data1: key, Data2: vel, Timestamp: timestampms})
	case msg.GetNoteEnd(&ch, &key):
		in.push(InputEvent{Status: 0x80 | ch, Data1: key, Timestamp: timestampms})
	}
}

func (in *Input) push(ev InputEvent) {
	select {
	case in.events <- ev:
	default:
		n := in.dropped.Add(1)
		debug.LogEvery(10, "device", "input queue full, %d dropped", n)
	}
}

// Drain appends every queued event to buf and returns it. It never blocks.
func (in *Input) Drain(buf []InputEvent) []InputEvent {
	for {
		select {
		case ev := <-in.events:
			buf = append(buf, ev)
		default:
			return buf
		}
	}
}

// Dropped returns how many events were lost to a full queue
func (in *Input) Dropped() int64 {
	return in.dropped.Load()
}

func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
		in.stopFunc = nil
	}
	return nil
}
