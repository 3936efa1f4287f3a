package widgets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-keyfall/game"
	"go-keyfall/midi"
	"go-keyfall/theme"
)

func TestKeyRange(t *testing.T) {
	tests := []struct {
		lo, hi uint8
		width  int
		wantLo uint8
		wantHi uint8
	}{
		{60, 64, 0, 60, 71},
		{21, 108, 0, 12, 119},
		{21, 108, 40, 44, 83},
		{120, 127, 0, 120, 127},
		{64, 60, 0, 60, 71},
	}
	for _, tt := range tests {
		lo, hi := KeyRange(tt.lo, tt.hi, tt.width)
		assert.Equal(t, tt.wantLo, lo, "%d-%d/%d", tt.lo, tt.hi, tt.width)
		assert.Equal(t, tt.wantHi, hi, "%d-%d/%d", tt.lo, tt.hi, tt.width)
	}
}

func TestIsBlack(t *testing.T) {
	var black []uint8
	for n := uint8(60); n < 72; n++ {
		if IsBlack(n) {
			black = append(black, n)
		}
	}
	assert.Equal(t, []uint8{61, 63, 66, 68, 70}, black)
}

func TestRollCells(t *testing.T) {
	s := game.Snapshot{
		Now:  0,
		Span: 1_000_000,
		Notes: []game.NoteView{
			{Key: 60, Start: 0, End: 500_000, Expected: true, Sounding: true},
			{Key: 62, Start: 600_000, End: 2_000_000},
			{Key: 90, Start: 0, End: 500_000},  // out of range
			{Key: 61, Start: -500_000, End: 0}, // already over
		},
		Beats: []midi.Beat{{Time: 250_000, Measure: 1}},
	}
	cells := RollCells(s, 60, 62, 4)
	require.Len(t, cells, 4)

	kinds := make([][]Kind, len(cells))
	for i, row := range cells {
		for _, c := range row {
			kinds[i] = append(kinds[i], c.Kind)
		}
	}
	assert.Equal(t, [][]Kind{
		{KindEmpty, KindEmpty, KindBackground},
		{KindEmpty, KindEmpty, KindBackground},
		{KindExpected, KindBeat, KindBeat},
		{KindExpected, KindEmpty, KindEmpty},
	}, kinds)

	assert.True(t, cells[3][0].Head)
	assert.False(t, cells[2][0].Head)
	assert.True(t, cells[3][0].Sounding)
	assert.True(t, cells[1][2].Head)
	assert.False(t, cells[0][2].Head, "the tail runs past the top")
}

func TestRollCellsJudged(t *testing.T) {
	s := game.Snapshot{
		Span:  1_000_000,
		Notes: []game.NoteView{{Key: 60, Start: 100_000, End: 200_000, Expected: true, Quality: game.Good}},
		Beats: []midi.Beat{{Time: 0, Downbeat: true}},
	}
	cells := RollCells(s, 60, 61, 10)
	assert.Equal(t, KindJudged, cells[8][0].Kind)
	assert.Equal(t, game.Good, cells[8][0].Quality)
	assert.Equal(t, KindMeasure, cells[9][1].Kind)

	assert.Nil(t, RollCells(s, 60, 61, 0))
}

func TestKeysAndLabels(t *testing.T) {
	s := game.Snapshot{Pressed: []uint8{60}, Expected: []uint8{62}, Sounding: []uint8{64}}
	keys := Keys(s, 60, 71)
	require.Len(t, keys, 12)
	assert.True(t, keys[0].Pressed)
	assert.True(t, keys[2].Expected)
	assert.True(t, keys[4].Sounding)
	assert.True(t, keys[1].Black)

	assert.Equal(t, "C4"+strings.Repeat(" ", 10), Labels(keys))
	assert.Equal(t, " ", Labels(Keys(s, 71, 71)))
}

func TestRenderDoesNotPanic(t *testing.T) {
	th := theme.New(theme.Plasma())
	s := game.Snapshot{
		Span:     1_000_000,
		End:      10_000_000,
		Progress: 0.5,
		Mode:     game.Learn,
		Options:  game.Options{Mode: game.Learn, Waiting: true},
		Notes:    []game.NoteView{{Key: 60, Start: 0, End: 500_000, Expected: true}},
		Score:    game.NewScore(),
		Speed:    0.75,
		Track:    "All tracks",
	}
	assert.NotPanics(t, func() {
		RenderRoll(RollCells(s, 60, 71, 8), th)
		RenderKeyboard(Keys(s, 60, 71), th)
		Header(s, "song.mid", th)
		ScoreLine(s, th)
		Progress(s, 60, th)
		Leaderboard(nil, 0, th)
		RenderKeyHelp(Bindings)
		Legend(th)
	})
	assert.Contains(t, Header(s, "song.mid", th), "Learn (wait)")
	assert.Contains(t, Header(s, "song.mid", th), "speed 75%")
}
