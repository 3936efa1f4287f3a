package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-keyfall/game"
	"go-keyfall/theme"
)

// Kind says what occupies one cell of the roll
type Kind uint8

const (
	KindEmpty      Kind = iota
	KindBeat            // beat line through an empty lane
	KindMeasure         // downbeat line through an empty lane
	KindBackground      // accompaniment note, not asked of the player
	KindExpected        // note to play, not judged yet
	KindJudged          // note with a judgement
)

// Cell is one character of the roll
type Cell struct {
	Kind     Kind
	Head     bool // the note starts in this row
	Sounding bool
	Quality  game.Quality
}

// KeyRange widens [lo, hi] to whole octaves. When that is more than width
// keys, it takes width keys centred on the notes instead.
func KeyRange(lo, hi uint8, width int) (uint8, uint8) {
	if lo > hi {
		lo, hi = hi, lo
	}
	l := int(lo) - int(lo)%12
	h := min(127, int(hi)+11-int(hi)%12)
	if width > 0 && h-l+1 > width {
		l = max(0, (int(lo)+int(hi))/2-width/2)
		h = l + width - 1
		if h > 127 {
			h = 127
			l = max(0, h-width+1)
		}
	}
	return uint8(l), uint8(h)
}

// RollCells lays out the snapshot as a grid of height rows by one column per
// key in [lo, hi]. Row 0 is the far end of the visible span, the last row is
// now.
func RollCells(s game.Snapshot, lo, hi uint8, height int) [][]Cell {
	if height <= 0 || hi < lo || s.Span <= 0 {
		return nil
	}
	width := int(hi-lo) + 1
	cells := make([][]Cell, height)
	for i := range cells {
		cells[i] = make([]Cell, width)
	}

	// rowOf maps a time to its row, clamped to the grid
	rowOf := func(t int64) int {
		if t < s.Now {
			return height - 1
		}
		r := height - 1 - int((t-s.Now)*int64(height)/s.Span)
		return max(0, r)
	}

	for _, b := range s.Beats {
		if b.Time < s.Now || b.Time >= s.Now+s.Span {
			continue
		}
		kind := KindBeat
		if b.Downbeat {
			kind = KindMeasure
		}
		row := cells[rowOf(b.Time)]
		for c := range row {
			row[c].Kind = kind
		}
	}

	for _, n := range s.Notes {
		if n.Key < lo || n.Key > hi || n.End <= s.Now || n.Start >= s.Now+s.Span {
			continue
		}
		kind := KindBackground
		switch {
		case n.Quality != game.None:
			kind = KindJudged
		case n.Expected:
			kind = KindExpected
		}
		col := int(n.Key - lo)
		top := rowOf(min(n.End, s.Now+s.Span) - 1)
		bottom := rowOf(n.Start)
		for r := top; r <= bottom; r++ {
			cells[r][col] = Cell{
				Kind:     kind,
				Head:     r == bottom && n.Start >= s.Now,
				Sounding: n.Sounding,
				Quality:  n.Quality,
			}
		}
	}
	return cells
}

// RenderRoll draws the cells with the theme's colors
func RenderRoll(cells [][]Cell, th *theme.Theme) string {
	beat := lipgloss.NewStyle().Foreground(th.Surface())
	measure := lipgloss.NewStyle().Foreground(th.Muted())
	background := lipgloss.NewStyle().Foreground(th.Muted())
	expected := lipgloss.NewStyle().Foreground(th.Accent())
	sounding := lipgloss.NewStyle().Foreground(th.Active())

	lines := make([]string, len(cells))
	for i, row := range cells {
		var line strings.Builder
		for _, c := range row {
			switch c.Kind {
			case KindEmpty:
				line.WriteRune(th.Symbols.Empty)
			case KindBeat:
				line.WriteString(beat.Render(string(th.Symbols.Beat)))
			case KindMeasure:
				line.WriteString(measure.Render(string(th.Symbols.Measure)))
			default:
				sym := string(th.Symbols.NoteBody)
				if c.Head {
					sym = string(th.Symbols.NoteHead)
				}
				style := background
				switch {
				case c.Kind == KindJudged:
					style = lipgloss.NewStyle().Foreground(th.Quality(c.Quality))
				case c.Kind == KindExpected:
					style = expected
				case c.Sounding:
					style = sounding
				}
				line.WriteString(style.Render(sym))
			}
		}
		lines[i] = line.String()
	}
	return strings.Join(lines, "\n")
}
