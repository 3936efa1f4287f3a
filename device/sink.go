package device

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-keyfall/debug"
)

// Sink sends playback messages to an output port
type Sink struct {
	name string
	port drivers.Out
	send func(gomidi.Message) error
}

// OpenSink opens the output port matching name (the first port when empty)
func OpenSink(name string) (*Sink, error) {
	r, err := scanPorts(DefaultTimeout)
	if err != nil {
		return nil, err
	}
	i := match(names(r.outs), name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoOutput, name)
	}
	port := r.outs[i]
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	debug.Log("device", "output %s", port.String())
	return &Sink{name: port.String(), port: port, send: send}, nil
}

func (s *Sink) Name() string { return s.name }

// Send writes one channel message. Errors are logged, not returned: a
// dropped message must not stall playback.
func (s *Sink) Send(status, data1, data2 byte) {
	msg := Message(status, data1, data2)
	if msg == nil {
		return
	}
	if err := s.send(msg); err != nil {
		debug.LogEvery(100, "device", "send %s: %v", msg, err)
	}
}

func (s *Sink) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// Message builds the gomidi message for a raw channel message
func Message(status, data1, data2 byte) gomidi.Message {
	ch := status & 0x0F
	data1 &= 0x7F
	data2 &= 0x7F
	switch status & 0xF0 {
	case 0x80:
		return gomidi.NoteOffVelocity(ch, data1, data2)
	case 0x90:
		return gomidi.NoteOn(ch, data1, data2)
	case 0xA0:
		return gomidi.PolyAfterTouch(ch, data1, data2)
	case 0xB0:
		return gomidi.ControlChange(ch, data1, data2)
	case 0xC0:
		return gomidi.ProgramChange(ch, data1)
	case 0xD0:
		return gomidi.AfterTouch(ch, data1)
	case 0xE0:
		return gomidi.Pitchbend(ch, int16(uint16(data2)<<7|uint16(data1))-8192)
	}
	return nil
}

// NullSink drops everything, for headless runs without an output port
type NullSink struct{}

func (NullSink) Send(byte, byte, byte) {}
