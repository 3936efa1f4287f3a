package midi

import (
	"container/heap"
	"math"
	"math/bits"
	"sort"

	"go-keyfall/config"
	"go-keyfall/debug"
)

// Point locates one timeline event by time for binary search
type Point struct {
	Time  int64 // microseconds
	Index int   // into Timeline.Events
}

// rate is the length of one tick in microseconds, as the fraction Num/Den
type rate struct {
	Num, Den uint64
}

type tempoAnchor struct {
	Tick  int64
	Time  int64
	Tempo uint32
	rate  rate
}

type signatureAnchor struct {
	Tick int64
	Time int64
	Sig  TimeSignature
}

// Timeline is the globally ordered, time-stamped event stream of a file.
// It is immutable once built and safe to share between readers.
type Timeline struct {
	Division Division
	Events   []Event

	NoteOns    []Point
	NonNotes   []Point // everything except note starts and releases
	Controls   []Point // program changes and controllers
	Tempos     []Point
	Signatures []Point

	FirstNote int64 // time of the first sounding Note-On
	LastEvent int64
	Start     int64 // FirstNote minus lead-in
	End       int64 // LastEvent plus trailing time

	tempos     []tempoAnchor
	signatures []signatureAnchor
}

// Load parses data, pairs its notes and builds the timeline. The returned
// file is never nil; callers check IsValid before starting playback.
func Load(data []byte, cfg config.PlaybackConfig) (*File, error) {
	f, err := Parse(data)
	if err != nil {
		return f, err
	}
	f.ConnectNotes()
	f.BuildTimeline(cfg)
	return f, nil
}

// cursor is one track's read position during the merge
type cursor struct {
	track int
	pos   int
	end   int
	tick  int64
}

type mergeHeap []cursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].tick != h[j].tick {
		return h[i].tick < h[j].tick
	}
	if h[i].track != h[j].track {
		return h[i].track < h[j].track
	}
	return h[i].pos < h[j].pos
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any) { *h = append(*h, x.(cursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// BuildTimeline merges every track into one time-ordered stream and stamps
// each event with its absolute time. SysEx events are left out.
func (f *File) BuildTimeline(cfg config.PlaybackConfig) *Timeline {
	tl := &Timeline{Division: f.Header.Division}
	f.Timeline = tl
	if !tl.Division.Valid() {
		return tl
	}

	base := baseRate(tl.Division)
	smpte := tl.Division.IsSMPTE()
	tl.tempos = []tempoAnchor{{Tempo: DefaultTempo, rate: base}}
	tl.signatures = []signatureAnchor{{Sig: DefaultSignature}}

	h := make(mergeHeap, 0, len(f.Tracks))
	for _, t := range f.Tracks {
		h = append(h, cursor{track: t.Index, pos: t.Start, end: t.End, tick: f.Events[t.Start].Tick})
	}
	heap.Init(&h)

	// arena index to timeline index, for the sister remap
	remap := make([]int32, len(f.Events))
	tl.Events = make([]Event, 0, len(f.Events))

	var simultaneous int32
	firstNote := int64(-1)
	anchor := tl.tempos[0]

	for h.Len() > 0 {
		c := &h[0]
		ev := f.Events[c.pos]
		remap[c.pos] = int32(len(tl.Events))
		c.pos++
		if c.pos < c.end {
			c.tick = f.Events[c.pos].Tick
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}

		if ev.Kind == KindSysEx {
			continue
		}

		ev.Time = anchor.Time + anchor.rate.scale(ev.Tick-anchor.Tick)

		switch {
		case ev.IsNoteOn():
			simultaneous++
		case ev.IsNoteOff() && ev.HasSister():
			simultaneous--
		}
		ev.Simultaneous = simultaneous

		idx := len(tl.Events)
		p := Point{Time: ev.Time, Index: idx}
		switch {
		case ev.IsNoteOn():
			tl.NoteOns = append(tl.NoteOns, p)
			if firstNote < 0 {
				firstNote = ev.Time
			}
		case ev.IsNoteOff():
		default:
			tl.NonNotes = append(tl.NonNotes, p)
		}

		if ev.Kind == KindChannel {
			if k := ev.ChannelKind(); k == ProgramChange || k == Controller {
				tl.Controls = append(tl.Controls, p)
			}
		}
		if tempo, ok := ev.Tempo(); ok && !smpte {
			anchor = tempoAnchor{
				Tick:  ev.Tick,
				Time:  ev.Time,
				Tempo: tempo,
				rate:  rate{Num: uint64(tempo), Den: base.Den},
			}
			tl.tempos = append(tl.tempos, anchor)
			tl.Tempos = append(tl.Tempos, p)
		}
		if sig, ok := ev.TimeSignature(); ok {
			tl.signatures = append(tl.signatures, signatureAnchor{Tick: ev.Tick, Time: ev.Time, Sig: sig})
			tl.Signatures = append(tl.Signatures, p)
		}

		tl.Events = append(tl.Events, ev)
	}

	for i := range tl.Events {
		if s := tl.Events[i].Sister; s != NoSister {
			tl.Events[i].Sister = remap[s]
		}
	}

	if len(tl.Events) == 0 {
		return tl
	}
	if firstNote < 0 {
		firstNote = 0
	}
	tl.FirstNote = firstNote
	tl.LastEvent = tl.Events[len(tl.Events)-1].Time
	tl.Start = firstNote - cfg.LeadIn()
	tl.End = tl.LastEvent + cfg.Trailing()

	debug.Log("timeline", "%d events, %d notes, %d tempo changes, start=%d end=%d",
		len(tl.Events), len(tl.NoteOns), len(tl.Tempos), tl.Start, tl.End)
	return tl
}

// baseRate returns the tick length at the default tempo. SMPTE files have a
// fixed rate of fps * ticksPerFrame ticks per second; 29 means 29.97 fps.
func baseRate(d Division) rate {
	if !d.IsSMPTE() {
		return rate{Num: DefaultTempo, Den: uint64(d.TicksPerQuarterNote())}
	}
	fps, tpf := d.SMPTE()
	if fps == 29 {
		return rate{Num: 1_000_000 * 100, Den: 2997 * uint64(tpf)}
	}
	return rate{Num: 1_000_000, Den: uint64(fps) * uint64(tpf)}
}

// scale converts a tick distance to microseconds, rounding once
func (r rate) scale(ticks int64) int64 {
	if ticks < 0 {
		return -r.scale(-ticks)
	}
	return mulDiv(uint64(ticks), r.Num, r.Den)
}

// unscale converts a microsecond distance to ticks
func (r rate) unscale(us int64) int64 {
	if us < 0 {
		return -r.unscale(-us)
	}
	return mulDiv(uint64(us), r.Den, r.Num)
}

// mulDiv returns round(a*b/c) using a 128-bit intermediate, saturating at
// MaxInt64.
func mulDiv(a, b, c uint64) int64 {
	hi, lo := bits.Mul64(a, b)
	lo, carry := bits.Add64(lo, c/2, 0)
	hi += carry
	if hi >= c {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, c)
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// Empty reports a timeline with nothing to play
func (tl *Timeline) Empty() bool {
	return tl == nil || len(tl.Events) == 0
}

// Duration returns End - Start
func (tl *Timeline) Duration() int64 {
	return tl.End - tl.Start
}

func (tl *Timeline) tempoAtTime(t int64) tempoAnchor {
	i := sort.Search(len(tl.tempos), func(i int) bool { return tl.tempos[i].Time > t })
	if i == 0 {
		return tl.tempos[0]
	}
	return tl.tempos[i-1]
}

func (tl *Timeline) tempoAtTick(tick int64) tempoAnchor {
	i := sort.Search(len(tl.tempos), func(i int) bool { return tl.tempos[i].Tick > tick })
	if i == 0 {
		return tl.tempos[0]
	}
	return tl.tempos[i-1]
}

// TempoAt returns the microseconds per quarter note in force at time t
func (tl *Timeline) TempoAt(t int64) uint32 {
	if len(tl.tempos) == 0 {
		return DefaultTempo
	}
	return tl.tempoAtTime(t).Tempo
}

// SignatureAt returns the time signature in force at time t
func (tl *Timeline) SignatureAt(t int64) TimeSignature {
	if len(tl.signatures) == 0 {
		return DefaultSignature
	}
	i := sort.Search(len(tl.signatures), func(i int) bool { return tl.signatures[i].Time > t })
	if i == 0 {
		return tl.signatures[0].Sig
	}
	return tl.signatures[i-1].Sig
}

// TimeAtTick converts an absolute tick to microseconds
func (tl *Timeline) TimeAtTick(tick int64) int64 {
	if len(tl.tempos) == 0 {
		return 0
	}
	a := tl.tempoAtTick(tick)
	return a.Time + a.rate.scale(tick-a.Tick)
}

// TickAtTime converts microseconds to the nearest absolute tick
func (tl *Timeline) TickAtTime(t int64) int64 {
	if len(tl.tempos) == 0 {
		return 0
	}
	a := tl.tempoAtTime(t)
	return a.Tick + a.rate.unscale(t-a.Time)
}

// BPM converts a tempo in microseconds per quarter note to beats per minute
func BPM(tempo uint32) float64 {
	if tempo == 0 {
		return 0
	}
	return 60_000_000 / float64(tempo)
}

// Beat is one beat line for rendering
type Beat struct {
	Time     int64
	Measure  int  // 1-based measure number
	Downbeat bool // first beat of the measure
}

// Beats returns the beat lines with from <= Time <= to. SMPTE files carry no
// metrical grid and yield none.
func (tl *Timeline) Beats(from, to int64) []Beat {
	if len(tl.signatures) == 0 || tl.Division.IsSMPTE() || to < from {
		return nil
	}
	if from < 0 {
		from = 0
	}
	fromTick := tl.TickAtTime(from)
	ppq := tl.Division.TicksPerQuarterNote()

	var out []Beat
	measure := 0
	for i, s := range tl.signatures {
		beatTicks := ppq * 4 / int64(s.Sig.BeatUnit())
		if beatTicks <= 0 {
			continue
		}
		measureTicks := beatTicks * int64(s.Sig.Numerator)
		segEnd := int64(math.MaxInt64)
		if i+1 < len(tl.signatures) {
			segEnd = tl.signatures[i+1].Tick
		}

		if segEnd <= fromTick {
			measure += int((segEnd - s.Tick + measureTicks - 1) / measureTicks)
			continue
		}

		k := int64(0)
		if fromTick > s.Tick {
			k = (fromTick - s.Tick + beatTicks - 1) / beatTicks
		}
		for tick := s.Tick + k*beatTicks; tick < segEnd; tick += beatTicks {
			t := tl.TimeAtTick(tick)
			if t > to {
				return out
			}
			if t >= from {
				out = append(out, Beat{
					Time:     t,
					Measure:  measure + int(k/int64(s.Sig.Numerator)) + 1,
					Downbeat: k%int64(s.Sig.Numerator) == 0,
				})
			}
			k++
		}
		measure += int((segEnd - s.Tick + measureTicks - 1) / measureTicks)
	}
	return out
}
