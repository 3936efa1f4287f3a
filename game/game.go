package game

import (
	"errors"
	"fmt"

	"go-keyfall/config"
	"go-keyfall/debug"
	"go-keyfall/midi"
	"go-keyfall/playback"
	"go-keyfall/util"
)

// ErrUnplayable is returned for files without a usable division, track or note
var ErrUnplayable = errors.New("game: file has nothing to play")

// Mode selects how input is judged
type Mode int

const (
	Practice Mode = iota // no scoring, no input device needed
	Play                 // scored, submitted on completion
	Learn                // scored, with waiting and/or adaptive speed
)

func (m Mode) String() string {
	switch m {
	case Practice:
		return "Practice"
	case Play:
		return "Play"
	case Learn:
		return "Learn"
	}
	return "Unknown"
}

// Options configure a game
type Options struct {
	Mode     Mode
	Waiting  bool // hold playback at each unplayed note (Learn only)
	Adaptive bool // change speed from recent accuracy (Learn only)
	Pair     int  // index into Pairs(), AllTracks for every note
}

// AllTracks selects every note instead of a single (track, channel) pair
const AllTracks = -1

// Pair is one (track, channel) combination that carries notes
type Pair struct {
	Track   int
	Channel uint8
	Label   string
}

// Input is one raw message from the input device
type Input struct {
	Status, Data1, Data2 byte
}

// Game scores live input against a playing timeline. Like the player it
// drives, it is owned by a single goroutine and advanced once per frame.
type Game struct {
	cfg    *config.Config
	file   *midi.File
	tl     *midi.Timeline
	player *playback.Player
	opts   Options

	pairs  []Pair
	active int

	judged  []Quality // per timeline index
	score   Score
	pressed map[uint8]bool
	speed   float64

	learn learner

	finished   bool
	onComplete func(Score)
}

// New prepares a game over a loaded file. The file must be valid and carry
// a timeline.
func New(f *midi.File, cfg *config.Config, sink playback.Sink, opts Options) (*Game, error) {
	if f == nil || !f.IsValid() || f.Timeline.Empty() {
		return nil, ErrUnplayable
	}
	if opts.Mode == Learn && !opts.Waiting && !opts.Adaptive {
		opts.Waiting = true
	}
	if opts.Mode != Learn {
		opts.Waiting, opts.Adaptive = false, false
	}

	g := &Game{
		cfg:     cfg,
		file:    f,
		tl:      f.Timeline,
		opts:    opts,
		pairs:   pairsOf(f),
		judged:  make([]Quality, len(f.Timeline.Events)),
		score:   NewScore(),
		pressed: make(map[uint8]bool),
		speed:   cfg.Playback.Speed,
		learn:   newLearner(cfg.Learning),
	}
	if g.speed <= 0 {
		g.speed = 1
	}
	if opts.Pair < AllTracks || opts.Pair >= len(g.pairs) {
		return nil, fmt.Errorf("game: no track pair %d (have %d)", opts.Pair, len(g.pairs))
	}
	g.active = opts.Pair

	g.player = playback.New(g.tl, cfg.Playback, sink)
	g.player.SetMute(g.muted)
	g.player.OnExpire(g.expire)
	g.SetSpeed(g.speed)
	g.Restart()
	return g, nil
}

// pairsOf lists the note-bearing (track, channel) pairs in declared order
func pairsOf(f *midi.File) []Pair {
	var pairs []Pair
	for _, t := range f.Tracks {
		for _, ch := range t.Channels() {
			name := t.Name
			if name == "" {
				name = fmt.Sprintf("Track %d", t.Index+1)
			}
			label := fmt.Sprintf("%s, %s (ch %d)", name, midi.ChannelInstrument(ch, t.Programs[ch]), ch+1)
			pairs = append(pairs, Pair{Track: t.Index, Channel: uint8(ch), Label: label})
		}
	}
	return pairs
}

func (g *Game) Player() *playback.Player { return g.player }
func (g *Game) File() *midi.File { return g.file }
func (g *Game) Score() Score { return g.score }
func (g *Game) Mode() Mode { return g.opts.Mode }
func (g *Game) Options() Options { return g.opts }
func (g *Game) Pairs() []Pair { return g.pairs }
func (g *Game) Active() int { return g.active }
func (g *Game) Finished() bool { return g.finished }
func (g *Game) Speed() float64 { return g.speed }

// Judged returns the judgement of the Note-On at timeline index idx
func (g *Game) Judged(idx int) Quality { return g.judged[idx] }

// OnComplete is called once when a Play mode attempt reaches the end
func (g *Game) OnComplete(fn func(Score)) { g.onComplete = fn }

// ActiveLabel names the current selection
func (g *Game) ActiveLabel() string {
	if g.active == AllTracks {
		return "All tracks"
	}
	return g.pairs[g.active].Label
}

func (g *Game) scoring() bool {
	return g.opts.Mode != Practice
}

// expected reports whether ev is a note the player is asked to play
func (g *Game) expected(ev *midi.Event) bool {
	if !ev.IsNote() {
		return false
	}
	if g.active == AllTracks {
		return true
	}
	p := g.pairs[g.active]
	return ev.Track == p.Track && ev.Channel() == p.Channel
}

// muted keeps the active pair off the sink; the player plays it instead
func (g *Game) muted(ev *midi.Event) bool {
	return g.active != AllTracks && g.expected(ev)
}

// SetSpeed changes the playback rate and rescales the input window
func (g *Game) SetSpeed(speed float64) {
	speed = util.Clamp(speed, g.cfg.Learning.MinSpeed, 2.0)
	g.speed = speed
	g.player.SetSpeed(speed)
	g.player.SetInputWindow(int64(float64(g.cfg.Scoring.Ok()) * speed))
}

// SetPaused pauses playback and silences the sink
func (g *Game) SetPaused(paused bool) {
	g.player.SetPaused(paused)
	if paused {
		g.player.Silence()
	}
}

// Restart resets the attempt and jumps back to the lead-in
func (g *Game) Restart() {
	g.score = NewScore()
	clear(g.judged)
	g.finished = false
	g.learn.restart(g)
	g.player.Jump(g.tl.Start)
	debug.Log("game", "restart: mode=%s active=%q speed=%.2f", g.opts.Mode, g.ActiveLabel(), g.speed)
}

// NextTrack moves the active selection to the next pair, wrapping from the
// last pair back to all tracks, and restarts.
func (g *Game) NextTrack() {
	g.active++
	if g.active >= len(g.pairs) {
		g.active = AllTracks
	}
	g.Restart()
}

// SeekBy jumps by delta song microseconds. In Play mode the attempt only
// moves forward: backward seeks are ignored and the notes skipped over count
// as missed. Otherwise judgements from the new position onward are cleared so
// those notes can be played again.
func (g *Game) SeekBy(delta int64) {
	if g.learn.transitioning() {
		return
	}
	target := g.player.Now() + delta
	if g.opts.Mode == Play {
		if delta < 0 {
			debug.Log("game", "play mode: seek by %dus ignored", delta)
			return
		}
		g.player.ExpireUntil(target)
		g.player.Jump(target)
		return
	}

	g.player.Jump(target)
	now := g.player.Now()
	for i := range g.judged {
		if g.tl.Events[i].Time >= now {
			g.judged[i] = None
		}
	}
	g.learn.seek(g, now)
}

// Tick advances the game by elapsed real microseconds. Inputs are consumed
// first, then the learning transition, the adaptive marker check and the
// waiting hold, and finally the playback cursors.
func (g *Game) Tick(elapsed int64, inputs []Input) {
	for _, in := range inputs {
		g.input(in)
	}
	if g.finished {
		return
	}

	if g.learn.transitioning() {
		g.learn.progress(g, elapsed)
		return
	}
	if g.player.Paused() {
		return
	}

	proposed := g.player.Now() + g.player.Scale(elapsed)
	if g.opts.Adaptive && g.learn.checkMarker(g, proposed) {
		return
	}
	if g.opts.Waiting {
		proposed = g.hold(proposed)
	}
	g.player.Step(proposed)

	if g.player.Done() {
		g.finish()
	}
}

func (g *Game) finish() {
	g.finished = true
	g.player.Silence()
	debug.Log("game", "finished: points=%d great=%d good=%d ok=%d missed=%d incorrect=%d",
		g.score.Points, g.score.Counts[Great], g.score.Counts[Good], g.score.Counts[Ok],
		g.score.Counts[Missed], g.score.Counts[Incorrect])
	if g.opts.Mode == Play && g.onComplete != nil {
		g.onComplete(g.score)
	}
}

// input handles one raw message: held keys are tracked in every mode, note
// starts are judged when scoring.
func (g *Game) input(in Input) {
	ev := midi.Event{Kind: midi.KindChannel, Status: in.Status, Data1: in.Data1 & 0x7F, Data2: in.Data2 & 0x7F}
	switch {
	case ev.IsNoteOn():
		g.pressed[ev.Note()] = true
	case ev.IsNoteOff():
		delete(g.pressed, ev.Note())
		return
	default:
		return
	}

	if !g.scoring() || g.finished || g.player.Paused() || g.learn.transitioning() || !g.player.InputEnabled() {
		return
	}
	g.press(ev.Note())
}

// press matches a key against the unjudged expected notes inside the input
// window, taking the closest one in time
func (g *Game) press(key uint8) {
	now := g.player.Now()
	best := -1
	var bestErr int64
	for i := g.player.InputStart(); i < g.player.InputEnd(); i++ {
		ev := &g.tl.Events[i]
		if !ev.IsNoteOn() || ev.Note() != key || !g.expected(ev) || g.judged[i] != None {
			continue
		}
		err := util.Abs(ev.Time - now)
		if best < 0 || err < bestErr {
			best, bestErr = i, err
		}
	}

	if best < 0 {
		g.score.Apply(Incorrect, g.cfg.Scoring)
		g.learn.record(entry{bad: true, index: -1, time: now})
		debug.Log("input", "incorrect key %s at %d", midi.NoteName(key), now)
		return
	}

	q := Classify(g.tl.Events[best].Time-now, g.speed, g.cfg.Scoring)
	g.judged[best] = q
	g.score.Apply(q, g.cfg.Scoring)
	g.learn.record(entry{bad: !q.IsGood(), index: best, time: g.tl.Events[best].Time})
	debug.Log("input", "%s %s err=%dus", q, midi.NoteName(key), g.tl.Events[best].Time-now)
}

// expire judges an expected note the input window left behind
func (g *Game) expire(idx int) {
	if !g.scoring() || g.judged[idx] != None {
		return
	}
	ev := &g.tl.Events[idx]
	if !g.expected(ev) {
		return
	}
	g.judged[idx] = Missed
	g.score.Apply(Missed, g.cfg.Scoring)
	g.learn.record(entry{bad: true, index: idx, time: ev.Time})
}

// hold returns the time playback may advance to in waiting mode: the first
// unplayed expected note at or before proposed stops the clock.
func (g *Game) hold(proposed int64) int64 {
	g.learn.waiting = false
	evs := g.tl.Events
	for i := max(g.player.Learn(), 0); i < len(evs) && evs[i].Time <= proposed; i++ {
		ev := &evs[i]
		if ev.IsNoteOn() && g.expected(ev) && g.judged[i] == None {
			g.learn.waiting = true
			return max(ev.Time, g.player.Now())
		}
	}
	return proposed
}

// Pressed returns the keys held on the input device
func (g *Game) Pressed() []uint8 {
	return util.SortedKeys(g.pressed)
}
