package midi

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DrumChannel is General MIDI channel 10
const DrumChannel = 9

// Track is one parsed MTrk chunk: an index range into File.Events plus an
// aggregate summary computed at parse time.
type Track struct {
	Index      int
	Start, End int // arena range [Start, End)

	Name           string
	InstrumentName string // meta 0x04 text, if any
	SequenceNumber int    // -1 when absent

	Notes      int     // sounding Note-Ons
	NoteCounts [16]int // per channel
	Programs   [16]int // first program per channel, -1 when none
	MinNote    uint8
	MaxNote    uint8
}

// summarize walks the track's events once and fills the aggregate fields
func (t *Track) summarize(events []Event) {
	t.SequenceNumber = -1
	for i := range t.Programs {
		t.Programs[i] = -1
	}
	t.MinNote = 127

	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case KindChannel:
			ch := ev.Channel()
			switch {
			case ev.ChannelKind() == ProgramChange:
				if t.Programs[ch] < 0 {
					t.Programs[ch] = int(ev.Data1)
				}
			case ev.IsNoteOn():
				t.Notes++
				t.NoteCounts[ch]++
				t.MinNote = min(t.MinNote, ev.Note())
				t.MaxNote = max(t.MaxNote, ev.Note())
			}
		case KindMeta:
			switch ev.MetaType {
			case MetaTrackName:
				if t.Name == "" {
					t.Name = DecodeText(ev.Data)
				}
			case MetaInstrument:
				if t.InstrumentName == "" {
					t.InstrumentName = DecodeText(ev.Data)
				}
			case MetaSequenceNumber:
				if v, n := ReadUint16(ev.Data); n > 0 {
					t.SequenceNumber = int(v)
				}
			}
		}
	}

	if t.Notes == 0 {
		t.MinNote, t.MaxNote = 0, 0
	}
}

// Channels returns the channels that carry notes, in ascending order
func (t *Track) Channels() []int {
	var out []int
	for ch, n := range t.NoteCounts {
		if n > 0 {
			out = append(out, ch)
		}
	}
	return out
}

// Instrument resolves a display label for the track: the General MIDI name
// shared by every note-bearing channel, "Drums" for a pure channel 10 track,
// or "Various" when channels disagree.
func (t *Track) Instrument() string {
	label := ""
	for _, ch := range t.Channels() {
		name := ChannelInstrument(ch, t.Programs[ch])
		if label == "" {
			label = name
		} else if label != name {
			return "Various"
		}
	}
	if label == "" {
		return "None"
	}
	return label
}

// ChannelInstrument names the instrument a channel plays with program p
// (p < 0 means no program change was seen, which GM treats as program 0).
func ChannelInstrument(ch, p int) string {
	if ch == DrumChannel {
		return "Drums"
	}
	if p < 0 {
		p = 0
	}
	return InstrumentName(p)
}

// DecodeText converts a text meta payload to UTF-8. SMF text has no declared
// encoding; payloads that are not already UTF-8 are read as Windows-1252.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
