// Package smftest builds Standard MIDI File fixtures for tests. Well-formed
// songs go through gomidi's smf writer; Header and Chunk assemble raw bytes
// for the malformed cases a writer refuses to produce.
package smftest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is one message at an absolute tick
type Event struct {
	Tick uint32
	Msg  []byte
}

func On(tick uint32, ch, key, vel uint8) Event {
	return Event{tick, midi.NoteOn(ch, key, vel)}
}

func Off(tick uint32, ch, key uint8) Event {
	return Event{tick, midi.NoteOff(ch, key)}
}

// Note returns the On/Off pair of a note held from on to off
func Note(on, off uint32, ch, key uint8) []Event {
	return []Event{On(on, ch, key, 100), Off(off, ch, key)}
}

func Program(tick uint32, ch, prog uint8) Event {
	return Event{tick, midi.ProgramChange(ch, prog)}
}

func CC(tick uint32, ch, ctrl, val uint8) Event {
	return Event{tick, midi.ControlChange(ch, ctrl, val)}
}

func Tempo(tick uint32, bpm float64) Event {
	return Event{tick, smf.MetaTempo(bpm)}
}

func Meter(tick uint32, num, denom uint8) Event {
	return Event{tick, smf.MetaMeter(num, denom)}
}

func Name(name string) Event {
	return Event{0, smf.MetaTrackSequenceName(name)}
}

// Track converts absolute-tick events to a closed smf.Track. Events at the
// same tick keep their argument order.
func Track(events ...Event) smf.Track {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	var t smf.Track
	var last uint32
	for _, ev := range sorted {
		t.Add(ev.Tick-last, ev.Msg)
		last = ev.Tick
	}
	t.Close(0)
	return t
}

// Join flattens event groups, so Note pairs can be passed to Track
func Join(groups ...[]Event) []Event {
	var out []Event
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Bytes writes a format 1 file with ppq ticks per quarter note
func Bytes(tb testing.TB, ppq uint16, tracks ...smf.Track) []byte {
	tb.Helper()
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(ppq)
	for _, t := range tracks {
		require.NoError(tb, s.Add(t))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(tb, err)
	return buf.Bytes()
}

// Header returns a raw MThd chunk with the standard six byte body
func Header(format, tracks, division uint16) []byte {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body[0:], format)
	binary.BigEndian.PutUint16(body[2:], tracks)
	binary.BigEndian.PutUint16(body[4:], division)
	return Chunk("MThd", body)
}

// Chunk returns magic, a big-endian length and body
func Chunk(magic string, body []byte) []byte {
	out := make([]byte, 8, 8+len(body))
	copy(out, magic)
	binary.BigEndian.PutUint32(out[4:], uint32(len(body)))
	return append(out, body...)
}

// Concat joins raw byte blocks
func Concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
