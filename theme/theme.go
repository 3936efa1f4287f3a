package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-keyfall/game"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols

	// fade darkens every color, 0 normal, 1 black
	fade float64
}

type Symbols struct {
	// Falling notes
	NoteHead rune // █ note start row
	NoteBody rune // ▓ note continues
	Empty    rune // blank lane

	// Grid lines in empty lanes
	Beat    rune // · beat
	Measure rune // ─ first beat of a measure

	// Keyboard
	WhiteKey rune // ▔
	BlackKey rune // ▀
	Pressed  rune // ▲ held on the input device
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			NoteHead: '█',
			NoteBody: '▓',
			Empty:    ' ',

			Beat:    '·',
			Measure: '─',

			WhiteKey: '▔',
			BlackKey: '▀',
			Pressed:  '▲',
		},
	}
}

// WithFade returns a copy that renders every color darkened by f
func (t *Theme) WithFade(f float64) *Theme {
	c := *t
	c.fade = max(0, min(1, f))
	return &c
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

func (t *Theme) BG() lipgloss.Color { return t.Color(RoleBG) }
func (t *Theme) Surface() lipgloss.Color { return t.Color(RoleSurface) }
func (t *Theme) FG() lipgloss.Color { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// QualityRole places a judgement on the palette: hits toward yellow, misses
// toward the dark end
func QualityRole(q game.Quality) float64 {
	switch q {
	case game.Great:
		return RoleSuccess
	case game.Good:
		return RoleWarning
	case game.Ok:
		return RoleActive
	case game.Missed:
		return RoleSurface
	case game.Incorrect:
		return RoleMuted
	}
	return RoleAccent
}

func (t *Theme) Quality(q game.Quality) lipgloss.Color {
	return t.Color(QualityRole(q))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.RGB(norm))
}

// RGB returns the raw color for a normalized value with the fade applied
func (t *Theme) RGB(norm float64) RGB {
	c := t.Palette.Lookup(norm)
	if t.fade > 0 {
		c = c.Dim(1 - t.fade)
	}
	return c
}

// Hex converts a color for lipgloss
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
