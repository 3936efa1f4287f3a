package game

import (
	"sort"

	"go-keyfall/midi"
)

// NoteView is one note as the display sees it
type NoteView struct {
	Index    int // timeline index of the Note-On
	Key      uint8
	Channel  uint8
	Track    int
	Start    int64
	End      int64 // release time, or the timeline end for unreleased notes
	Expected bool
	Quality  Quality
	Sounding bool
}

// Snapshot is an immutable view of one frame
type Snapshot struct {
	Now      int64
	Start    int64
	End      int64
	Span     int64 // how far ahead Notes reaches
	Progress float64

	Notes    []NoteView
	Sounding []uint8 // keys the sink is playing
	Expected []uint8 // keys that should be pressed now
	Pressed  []uint8 // keys held on the input device
	Beats    []midi.Beat

	BPM       float64
	Signature midi.TimeSignature

	Score    Score
	Mode     Mode
	Options  Options
	Track    string
	Speed    float64
	Fade     float64 // 0 normal, 1 fully faded
	Waiting  bool
	Paused   bool
	Finished bool
}

// Snapshot copies everything a frame needs to draw. It does not mutate the
// game.
func (g *Game) Snapshot() Snapshot {
	p := g.player
	tl := g.tl
	now := p.Now()

	s := Snapshot{
		Now:       now,
		Start:     tl.Start,
		End:       tl.End,
		Span:      p.VisibleSpan(),
		Progress:  p.Progress(),
		Pressed:   g.Pressed(),
		Beats:     tl.Beats(now, now+p.VisibleSpan()),
		BPM:       midi.BPM(p.Tempo()) * g.speed,
		Signature: p.Signature(),
		Score:     g.score,
		Mode:      g.opts.Mode,
		Options:   g.opts,
		Track:     g.ActiveLabel(),
		Speed:     g.speed,
		Fade:      g.learn.fade(),
		Waiting:   g.learn.waiting,
		Paused:    p.Paused(),
		Finished:  g.finished,
	}

	sounding := make(map[uint8]bool)
	for _, idx := range p.Sounding() {
		s.Notes = append(s.Notes, g.noteView(idx, true))
		sounding[tl.Events[idx].Note()] = true
	}
	for i := max(p.RenderStart(), 0); i < p.RenderEnd(); i++ {
		if tl.Events[i].IsNoteOn() {
			s.Notes = append(s.Notes, g.noteView(i, false))
		}
	}
	sort.Slice(s.Notes, func(i, j int) bool { return s.Notes[i].Index < s.Notes[j].Index })

	expected := make(map[uint8]bool)
	for i := max(p.InputStart(), 0); i < p.InputEnd(); i++ {
		ev := &tl.Events[i]
		if ev.IsNoteOn() && g.expected(ev) && g.judged[i] == None {
			expected[ev.Note()] = true
		}
	}
	s.Sounding = keys(sounding)
	s.Expected = keys(expected)
	return s
}

func (g *Game) noteView(idx int, sounding bool) NoteView {
	ev := &g.tl.Events[idx]
	end := g.tl.LastEvent
	if ev.HasSister() {
		end = g.tl.Events[ev.Sister].Time
	}
	return NoteView{
		Index:    idx,
		Key:      ev.Note(),
		Channel:  ev.Channel(),
		Track:    ev.Track,
		Start:    ev.Time,
		End:      end,
		Expected: g.expected(ev),
		Quality:  g.judged[idx],
		Sounding: sounding,
	}
}

func keys(m map[uint8]bool) []uint8 {
	out := make([]uint8, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
