package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"go-keyfall/game"
	"go-keyfall/leaderboard"
	"go-keyfall/theme"
)

// Header is the top line: title, mode, selection and transport
func Header(s game.Snapshot, title string, th *theme.Theme) string {
	accent := lipgloss.NewStyle().Foreground(th.Accent())
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	state := "▶"
	switch {
	case s.Finished:
		state = "■"
	case s.Paused:
		state = "❚❚"
	case s.Waiting:
		state = "…"
	}

	mode := s.Mode.String()
	if s.Mode == game.Learn {
		var subs []string
		if s.Options.Waiting {
			subs = append(subs, "wait")
		}
		if s.Options.Adaptive {
			subs = append(subs, "adaptive")
		}
		mode += " (" + strings.Join(subs, ", ") + ")"
	}

	return accent.Render(fmt.Sprintf("keyfall  %s %s  %s", state, mode, title)) +
		dim.Render(fmt.Sprintf("  %s  ♩=%.0f %d/%d  speed %d%%",
			s.Track, s.BPM, s.Signature.Numerator, s.Signature.BeatUnit(), int(s.Speed*100+0.5)))
}

// ScoreLine shows the running score; Practice mode has none
func ScoreLine(s game.Snapshot, th *theme.Theme) string {
	if s.Mode == game.Practice {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render("practice: not scored")
	}
	sc := s.Score
	fg := lipgloss.NewStyle().Foreground(th.FG())
	parts := []string{
		fg.Render(fmt.Sprintf("%s pts  x%d.%d  streak %d", humanize.Comma(int64(sc.Points)), sc.Multiplier/10, sc.Multiplier%10, sc.Streak)),
	}
	for _, q := range []game.Quality{game.Great, game.Good, game.Ok, game.Missed, game.Incorrect} {
		style := lipgloss.NewStyle().Foreground(th.Quality(q))
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", q, sc.Count(q))))
	}
	if n := sc.Notes() + sc.Count(game.Incorrect); n > 0 {
		parts = append(parts, fg.Render(fmt.Sprintf("acc %.0f%%", sc.Accuracy()*100)))
	}
	return strings.Join(parts, "  ")
}

// Progress draws a bar of width cells with the song position
func Progress(s game.Snapshot, width int, th *theme.Theme) string {
	if width < 12 {
		return ""
	}
	clock := fmt.Sprintf(" %s / %s", clockTime(s.Now-s.Start), clockTime(s.End-s.Start))
	bar := width - len(clock)
	if bar < 1 {
		return clock
	}
	done := int(s.Progress * float64(bar))
	done = max(0, min(bar, done))
	filled := lipgloss.NewStyle().Foreground(th.Accent()).Render(strings.Repeat("━", done))
	rest := lipgloss.NewStyle().Foreground(th.Surface()).Render(strings.Repeat("━", bar-done))
	return filled + rest + lipgloss.NewStyle().Foreground(th.Muted()).Render(clock)
}

func clockTime(us int64) string {
	d := time.Duration(max(0, us)) * time.Microsecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// Leaderboard lists a song's table, marking the entry at rank (1-based)
func Leaderboard(entries []leaderboard.Entry, rank int, th *theme.Theme) string {
	fg := lipgloss.NewStyle().Foreground(th.FG())
	mine := lipgloss.NewStyle().Foreground(th.Success()).Bold(true)
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	if len(entries) == 0 {
		return dim.Render("no scores yet")
	}
	lines := []string{dim.Render(fmt.Sprintf("%3s  %-16s %9s %6s %6s  %s", "#", "player", "points", "acc", "speed", "when"))}
	for i, e := range entries {
		style := fg
		if i+1 == rank {
			style = mine
		}
		lines = append(lines, style.Render(fmt.Sprintf("%3d  %-16s %9s %5.0f%% %5.0f%%  %s",
			i+1, truncate(e.Player, 16), humanize.Comma(int64(e.Points)), e.Accuracy*100, e.Speed*100, humanize.Time(e.Date))))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
