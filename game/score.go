package game

import (
	"go-keyfall/config"
	"go-keyfall/util"
)

// Quality is the judgement given to one expected note or one input
type Quality uint8

const (
	None Quality = iota // not judged yet
	Great
	Good
	Ok
	Missed
	Incorrect
)

func (q Quality) String() string {
	switch q {
	case Great:
		return "Great"
	case Good:
		return "Good"
	case Ok:
		return "Ok"
	case Missed:
		return "Missed"
	case Incorrect:
		return "Incorrect"
	}
	return "-"
}

// IsGood reports a hit that earns points
func (q Quality) IsGood() bool {
	return q == Great || q == Good || q == Ok
}

// Classify judges a timing error (expected minus observed time, in song
// microseconds) at the given speed. Thresholds shrink with speed because song
// time runs slower than real time below 1.0.
func Classify(err int64, speed float64, cfg config.ScoringConfig) Quality {
	e := float64(util.Abs(err))
	switch {
	case e <= float64(cfg.Great())*speed:
		return Great
	case e <= float64(cfg.Good())*speed:
		return Good
	case e <= float64(cfg.Ok())*speed:
		return Ok
	}
	return Missed
}

// Score is the running result of one attempt
type Score struct {
	Points      int
	Multiplier  int // tenths, 10 = x1.0
	Streak      int // positive for good hits in a row, negative for bad
	BestStreak  int
	WorstStreak int // longest bad streak, as a positive count
	Counts      [Incorrect + 1]int
}

// NewScore returns a zeroed score at multiplier x1.0
func NewScore() Score {
	return Score{Multiplier: 10}
}

// Count returns how many judgements of quality q were made
func (s Score) Count(q Quality) int {
	return s.Counts[q]
}

// Notes returns the number of judged expected notes
func (s Score) Notes() int {
	return s.Counts[Great] + s.Counts[Good] + s.Counts[Ok] + s.Counts[Missed]
}

// Accuracy returns good hits over judged notes, 0 to 1
func (s Score) Accuracy() float64 {
	n := s.Notes() + s.Counts[Incorrect]
	if n == 0 {
		return 0
	}
	return float64(s.Counts[Great]+s.Counts[Good]+s.Counts[Ok]) / float64(n)
}

// Apply records one judgement
func (s *Score) Apply(q Quality, cfg config.ScoringConfig) {
	if q == None {
		return
	}
	s.Counts[q]++

	if q.IsGood() {
		base := cfg.OkPoints
		switch q {
		case Great:
			base = cfg.GreatPoints
		case Good:
			base = cfg.GoodPoints
		}
		s.Points += base * s.Multiplier / 10
		s.Multiplier = min(s.Multiplier+1, cfg.MaxMultiplier)
		if s.Streak < 0 {
			s.Streak = 1
		} else {
			s.Streak++
		}
		s.BestStreak = max(s.BestStreak, s.Streak)
		return
	}

	s.Points = max(0, s.Points-cfg.Penalty)
	s.Multiplier = 10
	if s.Streak > 0 {
		s.Streak = -1
	} else {
		s.Streak--
	}
	s.WorstStreak = max(s.WorstStreak, -s.Streak)
}
