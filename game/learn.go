package game

import (
	"sort"

	"go-keyfall/config"
	"go-keyfall/debug"
)

type phase int

const (
	phaseNone phase = iota
	phaseFadeOut
	phaseFadeIn
)

// learner holds the learning mode state: the adaptive accuracy window, the
// evaluation markers and the fade transition between attempts.
type learner struct {
	cfg    config.LearningConfig
	window *window

	// judgements before minTime belong to an earlier attempt
	minTime    int64
	markers    []int64
	nextMarker int

	phase    phase
	elapsed  int64 // real time spent in the current phase
	target   int64 // jump target applied between the phases
	newSpeed float64
	speedUp  bool

	waiting bool
}

func newLearner(cfg config.LearningConfig) learner {
	return learner{cfg: cfg, window: newWindow(cfg.WindowSize)}
}

func (l *learner) transitioning() bool {
	return l.phase != phaseNone
}

func (l *learner) record(e entry) {
	l.window.push(e)
}

// restart places markers for the active selection and clears the window
func (l *learner) restart(g *Game) {
	l.markers = l.markers[:0]
	count := 0
	for _, p := range g.tl.NoteOns {
		if !g.expected(&g.tl.Events[p.Index]) {
			continue
		}
		if count%l.cfg.SegmentNotes == 0 {
			t := max(p.Time-l.cfg.MarkerLead(), g.tl.Start)
			if len(l.markers) == 0 || t > l.markers[len(l.markers)-1] {
				l.markers = append(l.markers, t)
			}
		}
		count++
	}
	l.window.reset()
	l.minTime = g.tl.Start
	l.nextMarker = 0
	l.phase = phaseNone
	l.elapsed = 0
	l.waiting = false
}

// seek starts a fresh evaluation at now
func (l *learner) seek(g *Game, now int64) {
	l.window.reset()
	l.minTime = now
	l.nextMarker = l.markerAfter(now)
	l.waiting = false
}

// markerAfter returns the index of the first marker later than t
func (l *learner) markerAfter(t int64) int {
	return sort.Search(len(l.markers), func(i int) bool { return l.markers[i] > t })
}

// fraction returns the bad share of the current evaluation window
func (l *learner) fraction() (float64, int) {
	return l.window.badFraction(l.minTime)
}

// checkMarker evaluates the window when playback is about to cross the next
// marker. It reports whether a transition started, in which case playback
// must not advance this tick.
func (l *learner) checkMarker(g *Game, proposed int64) bool {
	if l.nextMarker >= len(l.markers) || l.markers[l.nextMarker] > proposed {
		return false
	}
	marker := l.markers[l.nextMarker]
	frac, n := l.fraction()
	pct := frac * 100

	switch {
	case n > 0 && pct <= float64(l.cfg.SpeedUpPercent) && g.speed < 1:
		speed := min(1.0, g.speed*l.cfg.SpeedUpFactor)
		l.begin(g, marker, speed, true)
		debug.Log("learn", "%.0f%% bad over %d notes: speeding up to %.2f", pct, n, speed)
		return true
	case n > 0 && pct > float64(l.cfg.SlowDownPercent):
		speed := max(l.cfg.MinSpeed, g.speed*l.cfg.SlowDownFactor)
		l.begin(g, l.minTime, speed, false)
		debug.Log("learn", "%.0f%% bad over %d notes: slowing down to %.2f", pct, n, speed)
		return true
	}

	l.minTime = marker
	l.nextMarker++
	return false
}

// begin starts the fade out. Playback freezes until the fade in completes.
func (l *learner) begin(g *Game, target int64, speed float64, speedUp bool) {
	l.phase = phaseFadeOut
	l.elapsed = 0
	l.target = target
	l.newSpeed = speed
	l.speedUp = speedUp
	g.player.Silence()
}

// progress runs the transition clock. Between the phases playback jumps to
// the target, notes jumped over are missed, judgements from the target on are
// cleared and the new speed is set.
func (l *learner) progress(g *Game, elapsed int64) {
	l.elapsed += elapsed
	fade := l.cfg.Fade()

	if l.phase == phaseFadeOut && l.elapsed >= fade {
		// a speed-up skips ahead to its marker
		g.player.ExpireUntil(l.target)
		g.player.Jump(l.target)
		for i := range g.judged {
			if g.tl.Events[i].Time >= l.target {
				g.judged[i] = None
			}
		}
		g.SetSpeed(l.newSpeed)
		l.window.reset()
		l.minTime = l.target
		l.nextMarker = l.markerAfter(l.target)
		l.phase = phaseFadeIn
		l.elapsed = 0
		return
	}
	if l.phase == phaseFadeIn && l.elapsed >= fade {
		l.phase = phaseNone
		l.elapsed = 0
	}
}

// fade returns how dark the display should be, 0 to 1
func (l *learner) fade() float64 {
	fade := l.cfg.Fade()
	if fade <= 0 {
		return 0
	}
	f := float64(l.elapsed) / float64(fade)
	switch l.phase {
	case phaseFadeOut:
		return min(1, f)
	case phaseFadeIn:
		return max(0, 1-f)
	}
	return 0
}
