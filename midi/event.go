package midi

// Kind is the variant tag of an Event
type Kind uint8

const (
	KindChannel Kind = iota
	KindMeta
	KindSysEx
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindMeta:
		return "meta"
	case KindSysEx:
		return "sysex"
	}
	return "unknown"
}

// ChannelKind is the high nibble of a channel status byte
type ChannelKind uint8

const (
	NoteOff           ChannelKind = 0x8
	NoteOn            ChannelKind = 0x9
	Aftertouch        ChannelKind = 0xA
	Controller        ChannelKind = 0xB
	ProgramChange     ChannelKind = 0xC
	ChannelAftertouch ChannelKind = 0xD
	PitchBend         ChannelKind = 0xE
)

// dataLen returns how many data bytes follow a channel status of this kind
func (k ChannelKind) dataLen() int {
	if k == ProgramChange || k == ChannelAftertouch {
		return 1
	}
	return 2
}

// Meta event types
const (
	MetaSequenceNumber byte = 0x00
	MetaText           byte = 0x01
	MetaCopyright      byte = 0x02
	MetaTrackName      byte = 0x03
	MetaInstrument     byte = 0x04
	MetaLyric          byte = 0x05
	MetaMarker         byte = 0x06
	MetaCuePoint       byte = 0x07
	MetaChannelPrefix  byte = 0x20
	MetaPortPrefix     byte = 0x21
	MetaEndOfTrack     byte = 0x2F
	MetaTempo          byte = 0x51
	MetaSMPTEOffset    byte = 0x54
	MetaTimeSignature  byte = 0x58
	MetaKeySignature   byte = 0x59
	MetaProprietary    byte = 0x7F
)

// Controllers replayed or sent explicitly by playback
const (
	CCSustain     byte = 64
	CCAllNotesOff byte = 123
)

// NoSister marks a channel event without a paired note event
const NoSister int32 = -1

// DefaultTempo is 120 BPM in microseconds per quarter note
const DefaultTempo = 500000

// Event is one parsed SMF event. It is a closed variant over channel, meta
// and sysex events selected by Kind; fields that do not apply to a kind stay
// zero.
type Event struct {
	Kind   Kind
	Track  int   // index into File.Tracks
	Tick   int64 // absolute tick within the track
	Time   int64 // absolute microseconds, set by BuildTimeline
	Status byte

	// Channel events
	Data1, Data2 byte
	// Sister is the index of the paired note event in the owning slice
	// (File.Events before timeline construction, Timeline.Events after).
	Sister int32
	// Simultaneous is the number of notes sounding right after this event.
	Simultaneous int32

	// Meta events carry their type; meta and sysex carry a payload.
	MetaType byte
	Data     []byte
}

// ChannelKind returns the event kind nibble of a channel event
func (e *Event) ChannelKind() ChannelKind {
	return ChannelKind(e.Status >> 4)
}

// Channel returns the 0-based MIDI channel of a channel event
func (e *Event) Channel() uint8 {
	return e.Status & 0x0F
}

// Note returns the key number of a note event
func (e *Event) Note() uint8 {
	return e.Data1
}

// Velocity returns the velocity of a note event
func (e *Event) Velocity() uint8 {
	return e.Data2
}

// IsNoteOn reports a Note-On that actually starts a note (velocity > 0)
func (e *Event) IsNoteOn() bool {
	return e.Kind == KindChannel && e.ChannelKind() == NoteOn && e.Data2 > 0
}

// IsNoteOff reports a Note-Off or a zero-velocity Note-On
func (e *Event) IsNoteOff() bool {
	if e.Kind != KindChannel {
		return false
	}
	k := e.ChannelKind()
	return k == NoteOff || (k == NoteOn && e.Data2 == 0)
}

// IsNote reports any note start or release
func (e *Event) IsNote() bool {
	return e.IsNoteOn() || e.IsNoteOff()
}

// HasSister reports whether the note pairing found a partner for this event
func (e *Event) HasSister() bool {
	return e.Sister != NoSister
}

// IsMeta reports a meta event of type t
func (e *Event) IsMeta(t byte) bool {
	return e.Kind == KindMeta && e.MetaType == t
}

// Tempo returns the microseconds per quarter note of a tempo meta event
func (e *Event) Tempo() (uint32, bool) {
	if !e.IsMeta(MetaTempo) {
		return 0, false
	}
	v, n := ReadUint24(e.Data)
	if n == 0 || v == 0 {
		return 0, false
	}
	return v, true
}

// TimeSignature is the payload of a time-signature meta event
type TimeSignature struct {
	Numerator     uint8 // beats per measure
	Denominator   uint8 // beat unit as a power of two (2 = quarter note)
	Clocks        uint8 // MIDI clocks per metronome tick
	ThirtySeconds uint8
}

// DefaultSignature is 4/4 with a metronome click every quarter note
var DefaultSignature = TimeSignature{Numerator: 4, Denominator: 2, Clocks: 24, ThirtySeconds: 8}

// BeatUnit returns the denominator as a note value (4 for quarter notes)
func (s TimeSignature) BeatUnit() int {
	return 1 << s.Denominator
}

// TimeSignature returns the decoded payload of a time-signature meta event
func (e *Event) TimeSignature() (TimeSignature, bool) {
	if !e.IsMeta(MetaTimeSignature) || len(e.Data) < 2 || e.Data[0] == 0 {
		return TimeSignature{}, false
	}
	s := TimeSignature{Numerator: e.Data[0], Denominator: e.Data[1], Clocks: 24, ThirtySeconds: 8}
	if len(e.Data) >= 4 {
		s.Clocks = e.Data[2]
		s.ThirtySeconds = e.Data[3]
	}
	if s.Denominator > 6 {
		return TimeSignature{}, false
	}
	return s, true
}

// Message returns the raw status and data bytes of a channel event
func (e *Event) Message() (status, data1, data2 byte) {
	return e.Status, e.Data1, e.Data2
}
