package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestMatch(t *testing.T) {
	ports := []string{"Midi Through:Midi Through Port-0 14:0", "Digital Piano:Digital Piano MIDI 1 20:0", "Launchpad X MIDI 1"}

	assert.Equal(t, 0, match(ports, ""))
	assert.Equal(t, 2, match(ports, "Launchpad X MIDI 1"))
	assert.Equal(t, 1, match(ports, "digital piano"))
	assert.Equal(t, -1, match(ports, "Keystation"))
	assert.Equal(t, -1, match(nil, ""))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		status, d1, d2 byte
		want           gomidi.Message
	}{
		{0x93, 60, 100, gomidi.NoteOn(3, 60, 100)},
		{0x80, 60, 0, gomidi.NoteOffVelocity(0, 60, 0)},
		{0xB9, 7, 90, gomidi.ControlChange(9, 7, 90)},
		{0xC1, 32, 0, gomidi.ProgramChange(1, 32)},
		{0xD0, 50, 0, gomidi.AfterTouch(0, 50)},
		{0xA2, 60, 10, gomidi.PolyAfterTouch(2, 60, 10)},
		{0xE0, 0x00, 0x40, gomidi.Pitchbend(0, 0)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.status, tt.d1, tt.d2), "status %X", tt.status)
	}
	assert.Nil(t, Message(0xF0, 0, 0))
}

func TestInputQueuesNotes(t *testing.T) {
	in := newInput("test")
	in.handle(gomidi.NoteOn(0, 60, 100), 5)
	in.handle(gomidi.ControlChange(0, 64, 127), 6) // pedal is ignored
	in.handle(gomidi.NoteOff(0, 60), 7)
	in.handle(gomidi.NoteOn(2, 62, 0), 8) // zero velocity ends the note

	events := in.Drain(nil)
	assert.Equal(t, []InputEvent{
		{Status: 0x90, Data1: 60, Data2: 100, Timestamp: 5},
		{Status: 0x80, Data1: 60, Timestamp: 7},
		{Status: 0x82, Data1: 62, Timestamp: 8},
	}, events)

	assert.Empty(t, in.Drain(nil), "drain empties the queue")
}

func TestInputDropsWhenFull(t *testing.T) {
	in := newInput("test")
	for i := 0; i < queueSize+5; i++ {
		in.handle(gomidi.NoteOn(0, 60, 100), int32(i))
	}
	assert.Len(t, in.Drain(nil), queueSize)
	assert.Equal(t, int64(5), in.Dropped())
	assert.NoError(t, in.Close())
}

func TestDiffPorts(t *testing.T) {
	old := Ports{Inputs: []string{"a", "b"}, Outputs: []string{"x"}}
	cur := Ports{Inputs: []string{"b", "c"}, Outputs: []string{"x"}}
	assert.Equal(t, []PortEvent{
		{Name: "c", Input: true, Connected: true},
		{Name: "a", Input: true, Connected: false},
	}, diffPorts(old, cur))
	assert.Empty(t, diffPorts(cur, cur))
}

func TestWatcherReportsChanges(t *testing.T) {
	scans := []Ports{
		{Inputs: []string{"piano"}},
		{Inputs: []string{"piano"}},
		{},
	}
	w := NewWatcher()
	w.pollRate = time.Millisecond
	w.list = func(time.Duration) (Ports, error) {
		if len(scans) == 0 {
			return Ports{}, nil
		}
		p := scans[0]
		scans = scans[1:]
		return p, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ev := <-w.Events()
	assert.Equal(t, PortEvent{Name: "piano", Input: true, Connected: true}, ev)
	ev = <-w.Events()
	assert.Equal(t, PortEvent{Name: "piano", Input: true, Connected: false}, ev)

	cancel()
	for range w.Events() {
	}
	require.Empty(t, w.Ports().Inputs)
}
