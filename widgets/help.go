package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-keyfall/game"
	"go-keyfall/theme"
)

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// Bindings are the keys the player understands
var Bindings = []KeySection{
	{Title: "Transport", Keys: []KeyBinding{
		{"space", "pause / resume"},
		{"← →", "seek 5 seconds"},
		{"r", "restart"},
	}},
	{Title: "Practice", Keys: []KeyBinding{
		{"+ -", "speed up / slow down"},
		{"n", "next track (all tracks, then each part)"},
	}},
	{Title: "", Keys: []KeyBinding{
		{"?", "toggle this help"},
		{"q", "quit"},
	}},
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// Swatch renders a single colored block
func Swatch(c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render("■")
}

// Legend explains the note colors
func Legend(th *theme.Theme) string {
	lines := []string{
		fmt.Sprintf("  %s %s", Swatch(th.Accent()), "to play"),
		fmt.Sprintf("  %s %s", Swatch(th.Muted()), "accompaniment"),
	}
	for _, q := range []game.Quality{game.Great, game.Good, game.Ok, game.Missed} {
		lines = append(lines, fmt.Sprintf("  %s %s", Swatch(th.Quality(q)), q))
	}
	return strings.Join(lines, "\n")
}
