package playback

import (
	"math"
	"sort"

	"go-keyfall/config"
	"go-keyfall/debug"
	"go-keyfall/midi"
)

// Sink receives the channel messages playback produces, in time order
type Sink interface {
	Send(status, data1, data2 byte)
}

// NoData is the cursor value of a player without a timeline to play
const NoData = -1

// Player walks a timeline in real time. All cursors index into
// Timeline.Events and only move forward between Jumps. A Player is not safe
// for concurrent use; one goroutine owns it and drives it once per frame.
type Player struct {
	tl   *midi.Timeline
	sink Sink

	visibleSpan int64
	tolerance   int64 // input window half-width
	speed       float64
	paused      bool

	now int64

	// Cursors
	renderStart int // first event not yet consumed (time > now)
	renderEnd   int // first event past the visible span
	inputStart  int // first event not yet expired (time >= now-tolerance)
	inputEnd    int // first event past the input window (time > now+tolerance)
	learn       int // first event at or after now

	// Lookahead iterators into the timeline's index lists
	controlIdx int
	tempoIdx   int
	sigIdx     int
	tempo      uint32
	signature  midi.TimeSignature

	// timeline index of every sounding Note-On
	sounding map[int]struct{}

	mute      func(ev *midi.Event) bool
	onConsume func(idx int, ev *midi.Event)
	onExpire  func(idx int)
}

// New creates a player positioned at the timeline's lead-in start
func New(tl *midi.Timeline, cfg config.PlaybackConfig, sink Sink) *Player {
	p := &Player{
		tl:          tl,
		sink:        sink,
		visibleSpan: cfg.VisibleSpan(),
		speed:       cfg.Speed,
		tempo:       midi.DefaultTempo,
		signature:   midi.DefaultSignature,
		sounding:    make(map[int]struct{}),
	}
	if p.speed <= 0 {
		p.speed = 1
	}
	if p.sink == nil {
		p.sink = discard{}
	}
	if tl.Empty() {
		p.renderStart, p.renderEnd = NoData, NoData
		p.inputStart, p.inputEnd = NoData, NoData
		p.learn = NoData
		return p
	}
	p.Jump(tl.Start)
	return p
}

type discard struct{}

func (discard) Send(byte, byte, byte) {}

// Timeline returns the timeline being played
func (p *Player) Timeline() *midi.Timeline { return p.tl }

// InputEnabled reports whether live input can be matched at all
func (p *Player) InputEnabled() bool { return !p.tl.Empty() }

func (p *Player) Now() int64 { return p.now }
func (p *Player) RenderStart() int { return p.renderStart }
func (p *Player) RenderEnd() int { return p.renderEnd }
func (p *Player) InputStart() int { return p.inputStart }
func (p *Player) InputEnd() int { return p.inputEnd }
func (p *Player) Learn() int { return p.learn }
func (p *Player) Speed() float64 { return p.speed }
func (p *Player) Paused() bool { return p.paused }
func (p *Player) VisibleSpan() int64 { return p.visibleSpan }
func (p *Player) Tolerance() int64 { return p.tolerance }

// Tempo returns the microseconds per quarter note in force at now
func (p *Player) Tempo() uint32 { return p.tempo }

// Signature returns the time signature in force at now
func (p *Player) Signature() midi.TimeSignature { return p.signature }

// Done reports that playback reached the end of the timeline
func (p *Player) Done() bool {
	return p.tl.Empty() || p.now >= p.tl.End
}

// Progress returns how far now is between Start and End, 0 to 1
func (p *Player) Progress() float64 {
	if p.tl.Empty() || p.tl.Duration() <= 0 {
		return 0
	}
	f := float64(p.now-p.tl.Start) / float64(p.tl.Duration())
	return math.Max(0, math.Min(1, f))
}

// SetSpeed sets the playback rate; 1.0 is the file's own tempo
func (p *Player) SetSpeed(speed float64) {
	if speed <= 0 || math.IsNaN(speed) {
		return
	}
	p.speed = speed
}

func (p *Player) SetPaused(paused bool) { p.paused = paused }

// SetInputWindow sets the half-width of the input matching window. The
// input cursors are rebuilt so the new width applies immediately.
func (p *Player) SetInputWindow(tolerance int64) {
	if tolerance < 0 {
		tolerance = 0
	}
	p.tolerance = tolerance
	if p.tl.Empty() {
		return
	}
	p.inputEnd = p.upperBound(p.now + p.tolerance)
	p.inputStart = max(p.inputStart, p.lowerBound(p.now-p.tolerance))
}

// SetMute installs a predicate for events that must not reach the sink.
// Their bookkeeping still happens.
func (p *Player) SetMute(mute func(ev *midi.Event) bool) { p.mute = mute }

// OnConsume is called for every event render-start passes, after the sink
func (p *Player) OnConsume(fn func(idx int, ev *midi.Event)) { p.onConsume = fn }

// OnExpire is called for every Note-On input-start passes
func (p *Player) OnExpire(fn func(idx int)) { p.onExpire = fn }

// Scale converts elapsed real time to song time at the current speed
func (p *Player) Scale(elapsed int64) int64 {
	return int64(math.Round(float64(elapsed) * p.speed))
}

// Advance moves playback forward by elapsed real microseconds
func (p *Player) Advance(elapsed int64) {
	if p.paused || p.tl.Empty() {
		return
	}
	p.Step(p.now + p.Scale(elapsed))
}

// Step moves now forward to t and advances every cursor. Targets before now
// leave the clock where it is; use Jump to go back.
func (p *Player) Step(t int64) {
	if p.tl.Empty() {
		return
	}
	if t > p.now {
		p.now = t
	}
	p.update()
}

func (p *Player) update() {
	evs := p.tl.Events
	n := len(evs)

	for p.renderStart < n && evs[p.renderStart].Time <= p.now {
		p.consume(p.renderStart)
		p.renderStart++
	}

	if p.renderEnd < p.renderStart {
		p.renderEnd = p.renderStart
	}
	for p.renderEnd < n && evs[p.renderEnd].Time < p.now+p.visibleSpan {
		p.renderEnd++
	}

	// the window is closed at both edges
	for p.inputEnd < n && evs[p.inputEnd].Time <= p.now+p.tolerance {
		p.inputEnd++
	}
	for p.inputStart < n && evs[p.inputStart].Time < p.now-p.tolerance {
		if evs[p.inputStart].IsNoteOn() && p.onExpire != nil {
			p.onExpire(p.inputStart)
		}
		p.inputStart++
	}

	for p.learn < n && evs[p.learn].Time < p.now {
		p.learn++
	}

	for p.controlIdx < len(p.tl.Controls) && p.tl.Controls[p.controlIdx].Index < p.renderStart {
		p.controlIdx++
	}
	for p.tempoIdx < len(p.tl.Tempos) && p.tl.Tempos[p.tempoIdx].Index < p.renderStart {
		if t, ok := evs[p.tl.Tempos[p.tempoIdx].Index].Tempo(); ok {
			p.tempo = t
		}
		p.tempoIdx++
	}
	for p.sigIdx < len(p.tl.Signatures) && p.tl.Signatures[p.sigIdx].Index < p.renderStart {
		if s, ok := evs[p.tl.Signatures[p.sigIdx].Index].TimeSignature(); ok {
			p.signature = s
		}
		p.sigIdx++
	}
}

// consume applies one event: sounding bookkeeping, the sink, then the hook
func (p *Player) consume(idx int) {
	ev := &p.tl.Events[idx]
	switch {
	case ev.IsNoteOn():
		p.sounding[idx] = struct{}{}
	case ev.IsNoteOff() && ev.HasSister():
		delete(p.sounding, int(ev.Sister))
	}
	if ev.Kind == midi.KindChannel && !p.muted(ev) {
		p.sink.Send(ev.Message())
	}
	if p.onConsume != nil {
		p.onConsume(idx, ev)
	}
}

func (p *Player) muted(ev *midi.Event) bool {
	return p.mute != nil && p.mute(ev)
}

// lowerBound returns the first event index with Time >= t
func (p *Player) lowerBound(t int64) int {
	evs := p.tl.Events
	return sort.Search(len(evs), func(i int) bool { return evs[i].Time >= t })
}

// upperBound returns the first event index with Time > t
func (p *Player) upperBound(t int64) int {
	evs := p.tl.Events
	return sort.Search(len(evs), func(i int) bool { return evs[i].Time > t })
}

func lowerBoundPoints(pts []midi.Point, t int64, n int) int {
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Time >= t })
	if i == len(pts) {
		return n
	}
	return pts[i].Index
}

// ExpireUntil calls the expire hook for every Note-On a jump to t would carry
// out of the input window without passing it: those from input-start up to
// t minus the tolerance. Call it before the Jump. Nothing happens when t is
// not ahead of the window.
func (p *Player) ExpireUntil(t int64) {
	if p.tl.Empty() || p.onExpire == nil {
		return
	}
	evs := p.tl.Events
	for i := p.inputStart; i < len(evs) && evs[i].Time < t-p.tolerance; i++ {
		if evs[i].IsNoteOn() {
			p.onExpire(i)
		}
	}
}

// Jump repositions playback at t, clamped to [Start, End]. Notes sounding
// before the jump are released on the sink, the sounding set at t is rebuilt
// from the simultaneous-note counts and skipped program and controller
// state is replayed so the sink matches continuous playback. Jumping to the
// same time twice yields the same state.
func (p *Player) Jump(t int64) {
	if p.tl.Empty() {
		return
	}
	tl := p.tl
	evs := tl.Events
	t = max(tl.Start, min(t, tl.End))

	p.release()
	p.now = t

	start := min(
		lowerBoundPoints(tl.NoteOns, t, len(evs)),
		lowerBoundPoints(tl.NonNotes, t, len(evs)),
	)
	// releases are in neither index; step back over any not yet due
	for start > 0 && evs[start-1].Time >= t {
		start--
	}

	p.renderStart = start
	p.renderEnd = start
	p.learn = start
	p.inputEnd = p.upperBound(t + p.tolerance)
	p.inputStart = p.lowerBound(t - p.tolerance)
	p.rebuildSounding(start)

	p.controlIdx = sort.Search(len(tl.Controls), func(i int) bool { return tl.Controls[i].Index >= start })
	p.tempoIdx = sort.Search(len(tl.Tempos), func(i int) bool { return tl.Tempos[i].Index >= start })
	p.sigIdx = sort.Search(len(tl.Signatures), func(i int) bool { return tl.Signatures[i].Index >= start })

	p.tempo = midi.DefaultTempo
	if p.tempoIdx > 0 {
		if v, ok := evs[tl.Tempos[p.tempoIdx-1].Index].Tempo(); ok {
			p.tempo = v
		}
	}
	p.signature = midi.DefaultSignature
	if p.sigIdx > 0 {
		if s, ok := evs[tl.Signatures[p.sigIdx-1].Index].TimeSignature(); ok {
			p.signature = s
		}
	}

	p.replayControls()

	for p.renderEnd < len(evs) && evs[p.renderEnd].Time < p.now+p.visibleSpan {
		p.renderEnd++
	}

	debug.Log("playback", "jump to %d: render=%d input=[%d,%d) sounding=%d",
		t, p.renderStart, p.inputStart, p.inputEnd, len(p.sounding))
}

// release sends a Note-Off for every sounding note and clears the set
func (p *Player) release() {
	p.noteOffs()
	clear(p.sounding)
}

func (p *Player) noteOffs() {
	for _, idx := range p.Sounding() {
		ev := &p.tl.Events[idx]
		p.sink.Send(0x80|ev.Channel(), ev.Note(), 0)
	}
}

// rebuildSounding collects the notes that are held across index start. The
// count recorded on the preceding event says how many there are, so the
// backward scan stops as soon as all of them are found.
func (p *Player) rebuildSounding(start int) {
	clear(p.sounding)
	if start == 0 {
		return
	}
	evs := p.tl.Events
	want := int(evs[start-1].Simultaneous)
	for i := start - 1; i >= 0 && len(p.sounding) < want; i-- {
		ev := &evs[i]
		if !ev.IsNoteOn() {
			continue
		}
		if !ev.HasSister() || int(ev.Sister) >= start {
			p.sounding[i] = struct{}{}
		}
	}
}

// replayControls sends the latest program per channel and the latest value
// per controller that precede the render cursor, oldest first.
func (p *Player) replayControls() {
	evs := p.tl.Events
	latest := make(map[uint16]int)
	for _, pt := range p.tl.Controls[:p.controlIdx] {
		ev := &evs[pt.Index]
		key := uint16(ev.Status) << 8
		if ev.ChannelKind() == midi.Controller {
			key |= uint16(ev.Data1)
		}
		latest[key] = pt.Index
	}
	order := make([]int, 0, len(latest))
	for _, idx := range latest {
		order = append(order, idx)
	}
	sort.Ints(order)
	for _, idx := range order {
		ev := &evs[idx]
		if !p.muted(ev) {
			p.sink.Send(ev.Message())
		}
	}
}

// Sounding returns the timeline indices of sounding notes in ascending order
func (p *Player) Sounding() []int {
	out := make([]int, 0, len(p.sounding))
	for idx := range p.sounding {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// IsSounding reports whether the Note-On at idx is currently held
func (p *Player) IsSounding(idx int) bool {
	_, ok := p.sounding[idx]
	return ok
}

// Silence sends a Note-Off for every sounding note and All Notes Off on
// every channel. The sounding set is kept, so a paused display stays intact.
func (p *Player) Silence() {
	if !p.tl.Empty() {
		p.noteOffs()
	}
	for ch := byte(0); ch < 16; ch++ {
		p.sink.Send(0xB0|ch, midi.CCAllNotesOff, 0)
	}
}
