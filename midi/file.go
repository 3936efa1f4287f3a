package midi

import (
	"errors"
	"fmt"

	"go-keyfall/debug"
)

// Chunk magics
const (
	MagicHeader = "MThd"
	MagicTrack  = "MTrk"
)

// Header parse failures. Parse returns one of these alongside an empty File.
var (
	ErrShortHeader = errors.New("midi: file too short for a header chunk")
	ErrBadMagic    = errors.New("midi: missing MThd header")
	ErrFormat      = errors.New("midi: unsupported format type")
	ErrDivision    = errors.New("midi: invalid time division")
)

const (
	chunkHeaderSize = 8
	minHeaderSize   = 6
)

// Division is the raw division field of the MThd chunk
type Division uint16

// IsSMPTE reports whether the division encodes frames per second
func (d Division) IsSMPTE() bool {
	return d&0x8000 != 0
}

// TicksPerQuarterNote returns the metrical resolution, or 0 for SMPTE files
func (d Division) TicksPerQuarterNote() int64 {
	if d.IsSMPTE() {
		return 0
	}
	return int64(d)
}

// SMPTE returns frames per second and ticks per frame, or 0, 0 for metrical
// files. The frame rate is stored as a negative two's complement byte.
func (d Division) SMPTE() (fps, ticksPerFrame uint8) {
	if !d.IsSMPTE() {
		return 0, 0
	}
	return uint8(-int8(d >> 8)), uint8(d & 0xFF)
}

// Valid reports whether the division can drive a timeline
func (d Division) Valid() bool {
	if d.IsSMPTE() {
		fps, tpf := d.SMPTE()
		return fps != 0 && tpf != 0
	}
	return d != 0
}

func (d Division) String() string {
	if !d.Valid() {
		return fmt.Sprintf("invalid division 0x%04x", uint16(d))
	}
	if d.IsSMPTE() {
		fps, tpf := d.SMPTE()
		return fmt.Sprintf("%d fps, %d ticks per frame", fps, tpf)
	}
	return fmt.Sprintf("%d ticks per quarter note", uint16(d))
}

// Header is the decoded MThd chunk
type Header struct {
	Size     uint32 // declared chunk size after clamping
	Format   uint16
	Tracks   uint16 // declared track count
	Division Division
}

// File is a parsed Standard MIDI File. Events of every track live in one
// append-only arena; tracks refer to their events by index range.
type File struct {
	Header   Header
	Tracks   []*Track
	Events   []Event
	Timeline *Timeline // nil until BuildTimeline
}

// Parse decodes an SMF byte buffer. It never reads past len(data) and never
// fails on damaged track data: a damaged track is cut at the point of damage
// and an empty track is dropped. A non-nil error means the header itself was
// rejected and the returned File has no tracks.
func Parse(data []byte) (*File, error) {
	f := &File{}

	if len(data) < chunkHeaderSize+minHeaderSize {
		return f, ErrShortHeader
	}
	if magic, _ := ReadChars(data, 4); magic != MagicHeader {
		return f, ErrBadMagic
	}
	size, _ := ReadUint32(data[4:])
	if size < minHeaderSize {
		debug.Log("parse", "header size %d clamped to %d", size, minHeaderSize)
		size = minHeaderSize
	}
	format, _ := ReadUint16(data[8:])
	tracks, _ := ReadUint16(data[10:])
	division, _ := ReadUint16(data[12:])
	f.Header = Header{Size: size, Format: format, Tracks: tracks, Division: Division(division)}

	if format > 2 {
		return f, fmt.Errorf("%w: %d", ErrFormat, format)
	}
	if !f.Header.Division.Valid() {
		return f, fmt.Errorf("%w: 0x%04x", ErrDivision, division)
	}

	f.Events = make([]Event, 0, arenaHint(len(data)))

	pos := chunkHeaderSize + int(size)
	chunks := 0
	for pos+chunkHeaderSize <= len(data) {
		if format == 2 && chunks >= int(tracks) {
			break
		}
		magic, _ := ReadChars(data[pos:], 4)
		length, _ := ReadUint32(data[pos+4:])
		body := pos + chunkHeaderSize
		end := body + int(length)
		if end > len(data) || end < body {
			debug.Log("parse", "chunk at %d claims %d bytes, only %d left", pos, length, len(data)-body)
			end = len(data)
		}
		pos = end

		if magic != MagicTrack {
			debug.Log("parse", "skipping %q chunk", magic)
			continue
		}
		chunks++
		f.parseTrack(data[body:end])
	}

	return f, nil
}

// maxArenaHint caps the events reserved up front. Larger files grow the
// arena by appending.
const maxArenaHint = 1 << 16

// arenaHint guesses the event count of an n byte file. Channel events with
// running status take three or four bytes, metas and unknown chunks more.
func arenaHint(n int) int {
	return min(n/8, maxArenaHint)
}

// parseTrack appends one track's events to the arena. Parsing stops at the
// end of the chunk, at the first malformed event, or at End-Of-Track.
func (f *File) parseTrack(b []byte) {
	start := len(f.Events)
	index := len(f.Tracks)

	var tick int64
	var running byte
	off := 0
	for off < len(b) {
		delta, n := ReadVarLen(b[off:])
		if n == 0 {
			debug.Log("parse", "track %d: truncated delta time at %d", index, off)
			break
		}
		off += n
		if off >= len(b) {
			break
		}

		status := b[off]
		if status < 0x80 {
			if running == 0 {
				debug.Log("parse", "track %d: data byte 0x%02x without running status", index, status)
				break
			}
			status = running
		} else {
			off++
		}

		ev := Event{Track: index, Tick: tick + int64(delta), Status: status, Sister: NoSister}
		switch {
		case status < 0xF0:
			n = parseChannel(&ev, b[off:])
			running = status
		case status == 0xFF:
			n = parseMeta(&ev, b[off:])
			running = 0
		default:
			n = parseSysEx(&ev, b[off:])
			running = 0
		}
		if n == 0 {
			debug.Log("parse", "track %d: truncated %s event at %d", index, ev.Kind, off)
			break
		}
		off += n
		tick = ev.Tick
		f.Events = append(f.Events, ev)

		if ev.IsMeta(MetaEndOfTrack) {
			break
		}
	}

	if len(f.Events) == start {
		debug.Log("parse", "dropping empty track chunk")
		return
	}
	t := &Track{Index: index, Start: start, End: len(f.Events)}
	t.summarize(f.Events[start:])
	f.Tracks = append(f.Tracks, t)
}

// parseChannel reads the data bytes following a channel status. It returns
// the bytes consumed, 0 when the data ran out.
func parseChannel(ev *Event, b []byte) int {
	ev.Kind = KindChannel
	need := ev.ChannelKind().dataLen()
	if len(b) < need {
		return 0
	}
	ev.Data1 = b[0] & 0x7F
	if need == 2 {
		ev.Data2 = b[1] & 0x7F
	}
	return need
}

// parseMeta reads type, length and payload of a meta event
func parseMeta(ev *Event, b []byte) int {
	ev.Kind = KindMeta
	if len(b) < 1 {
		return 0
	}
	ev.MetaType = b[0]
	size, n := ReadVarLen(b[1:])
	if n == 0 {
		return 0
	}
	off := 1 + n
	if uint64(len(b)-off) < uint64(size) {
		return 0
	}
	ev.Data = b[off : off+int(size) : off+int(size)]
	return off + int(size)
}

// parseSysEx reads a length-prefixed sysex (or escape) payload
func parseSysEx(ev *Event, b []byte) int {
	ev.Kind = KindSysEx
	size, n := ReadVarLen(b)
	if n == 0 {
		return 0
	}
	if uint64(len(b)-n) < uint64(size) {
		return 0
	}
	ev.Data = b[n : n+int(size) : n+int(size)]
	return n + int(size)
}

// TrackEvents returns the arena slice holding track i
func (f *File) TrackEvents(i int) []Event {
	t := f.Tracks[i]
	return f.Events[t.Start:t.End]
}

// NoteCount returns the number of sounding Note-Ons across all tracks
func (f *File) NoteCount() int {
	n := 0
	for _, t := range f.Tracks {
		n += t.Notes
	}
	return n
}

// IsValid reports whether the file can be played: a usable division, at
// least one track and at least one sounding note.
func (f *File) IsValid() bool {
	return f.Header.Division.Valid() && len(f.Tracks) > 0 && f.NoteCount() > 0
}
