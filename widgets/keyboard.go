package widgets

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-keyfall/game"
	"go-keyfall/midi"
	"go-keyfall/theme"
)

// Key is the state of one key under the roll
type Key struct {
	Note     uint8
	Black    bool
	Pressed  bool
	Expected bool
	Sounding bool
}

// IsBlack reports a black piano key
func IsBlack(note uint8) bool {
	switch note % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// Keys returns the keyboard state for [lo, hi]
func Keys(s game.Snapshot, lo, hi uint8) []Key {
	if hi < lo {
		return nil
	}
	keys := make([]Key, 0, int(hi-lo)+1)
	for n := int(lo); n <= int(hi); n++ {
		note := uint8(n)
		keys = append(keys, Key{
			Note:     note,
			Black:    IsBlack(note),
			Pressed:  slices.Contains(s.Pressed, note),
			Expected: slices.Contains(s.Expected, note),
			Sounding: slices.Contains(s.Sounding, note),
		})
	}
	return keys
}

// RenderKeyboard draws one row of keys and a row of octave labels below
func RenderKeyboard(keys []Key, th *theme.Theme) string {
	white := lipgloss.NewStyle().Foreground(th.FG())
	black := lipgloss.NewStyle().Foreground(th.Muted())
	pressed := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	expected := lipgloss.NewStyle().Foreground(th.Warning())
	sounding := lipgloss.NewStyle().Foreground(th.Active())
	label := lipgloss.NewStyle().Foreground(th.Muted())

	var row strings.Builder
	for _, k := range keys {
		sym := string(th.Symbols.WhiteKey)
		style := white
		if k.Black {
			sym = string(th.Symbols.BlackKey)
			style = black
		}
		switch {
		case k.Pressed:
			sym = string(th.Symbols.Pressed)
			style = pressed
		case k.Expected:
			style = expected
		case k.Sounding:
			style = sounding
		}
		row.WriteString(style.Render(sym))
	}

	return row.String() + "\n" + label.Render(Labels(keys))
}

// Labels puts the note name under every C that has room for it
func Labels(keys []Key) string {
	line := []rune(strings.Repeat(" ", len(keys)))
	for i, k := range keys {
		if k.Note%12 != 0 {
			continue
		}
		name := []rune(midi.NoteName(k.Note))
		if i+len(name) > len(line) {
			break
		}
		copy(line[i:], name)
	}
	return string(line)
}
