package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-keyfall/config"
	"go-keyfall/debug"
	"go-keyfall/device"
	"go-keyfall/game"
	"go-keyfall/leaderboard"
	"go-keyfall/theme"
	"go-keyfall/widgets"
)

const (
	FrameRate = 60

	// maxFrame caps the time one frame may advance the song, so a stalled
	// terminal does not skip over notes
	maxFrame = 250 * time.Millisecond

	seekStep  = 5 * time.Second
	speedStep = 0.05

	submitTimeout = 5 * time.Second
)

// Options wire a Model to its devices and storage. Input, Watcher and Store
// may be nil.
type Options struct {
	Title   string
	Song    string // leaderboard key
	Config  *config.Config
	Theme   *theme.Theme
	Input   *device.Input
	Watcher *device.Watcher
	Store   leaderboard.Store
}

// results is shared between copies of the Model
type results struct {
	submitted bool
	rank      int
	top       []leaderboard.Entry
	err       error
}

type Model struct {
	Game *game.Game
	opts Options

	lo, hi    uint8 // keyboard range
	width     int
	height    int
	last      time.Time
	buf       []device.InputEvent
	inputs    []game.Input
	completed chan game.Score
	results   *results
	save      func(func())
	status    string
	showHelp  bool
	quitting  bool
}

// FrameMsg advances the game by the wall time since the previous frame
type FrameMsg time.Time

// ScoresMsg carries the outcome of a leaderboard submission
type ScoresMsg struct {
	Rank int
	Top  []leaderboard.Entry
	Err  error
}

type PortMsg device.PortEvent

func NewModel(g *game.Game, opts Options) Model {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Theme == nil {
		opts.Theme = theme.New(theme.Plasma())
	}
	lo, hi := noteRange(g)

	m := Model{
		Game:      g,
		opts:      opts,
		lo:        lo,
		hi:        hi,
		width:     80,
		height:    24,
		buf:       make([]device.InputEvent, 0, 64),
		completed: make(chan game.Score, 1),
		results:   &results{},
		save:      debounce.New(500 * time.Millisecond),
	}
	g.OnComplete(func(s game.Score) {
		select {
		case m.completed <- s:
		default:
		}
	})
	return m
}

// noteRange spans every key the file plays
func noteRange(g *game.Game) (uint8, uint8) {
	lo, hi := uint8(127), uint8(0)
	for _, t := range g.File().Tracks {
		if t.Notes == 0 {
			continue
		}
		lo = min(lo, t.MinNote)
		hi = max(hi, t.MaxNote)
	}
	if lo > hi {
		return 60, 72
	}
	return lo, hi
}

func Frame() tea.Cmd {
	return tea.Tick(time.Second/FrameRate, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

func ListenForPorts(w *device.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortMsg(ev)
	}
}

// Submit records an entry and fetches the table it landed in
func Submit(store leaderboard.Store, song string, e leaderboard.Entry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		rank, err := store.Insert(ctx, song, e)
		if err != nil {
			return ScoresMsg{Err: err}
		}
		top, err := store.Top(ctx, song)
		return ScoresMsg{Rank: rank, Top: top, Err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(Frame(), ListenForPorts(m.opts.Watcher))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		return m.key(msg.String())

	case FrameMsg:
		return m.frame(time.Time(msg))

	case ScoresMsg:
		m.results.rank, m.results.top, m.results.err = msg.Rank, msg.Top, msg.Err
		if msg.Err != nil {
			debug.Warn("score", "submit failed: %v", msg.Err)
			m.status = "could not save score: " + msg.Err.Error()
		}

	case PortMsg:
		kind := "output"
		if msg.Input {
			kind = "input"
		}
		state := "disconnected"
		if msg.Connected {
			state = "connected"
		}
		m.status = fmt.Sprintf("%s %s: %s", kind, state, msg.Name)
		debug.Log("ports", "%s", m.status)
		return m, ListenForPorts(m.opts.Watcher)
	}

	return m, nil
}

func (m Model) frame(t time.Time) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	elapsed := time.Duration(0)
	if !m.last.IsZero() {
		elapsed = min(maxFrame, t.Sub(m.last))
	}
	m.last = t

	m.inputs = m.inputs[:0]
	if m.opts.Input != nil {
		m.buf = m.opts.Input.Drain(m.buf[:0])
		for _, ev := range m.buf {
			m.inputs = append(m.inputs, game.Input{Status: ev.Status, Data1: ev.Data1, Data2: ev.Data2})
		}
	}
	m.Game.Tick(elapsed.Microseconds(), m.inputs)

	cmds := []tea.Cmd{Frame()}
	select {
	case score := <-m.completed:
		if cmd := m.submit(score); cmd != nil {
			cmds = append(cmds, cmd)
		}
	default:
	}
	return m, tea.Batch(cmds...)
}

func (m Model) submit(score game.Score) tea.Cmd {
	if m.opts.Store == nil || m.results.submitted {
		return nil
	}
	m.results.submitted = true
	e := leaderboard.NewEntry(m.opts.Config.Player.Name, score, m.Game.Speed(), m.Game.ActiveLabel(), time.Now())
	debug.Log("score", "submitting %d points for %q", e.Points, m.opts.Title)
	return Submit(m.opts.Store, m.opts.Song, e)
}

func (m Model) key(k string) (tea.Model, tea.Cmd) {
	g := m.Game
	switch k {
	case "q", "ctrl+c":
		m.quitting = true
		g.SetPaused(true)
		return m, tea.Quit

	case " ":
		g.SetPaused(!g.Player().Paused())

	case "left":
		g.SeekBy(-seekStep.Microseconds())

	case "right":
		g.SeekBy(seekStep.Microseconds())

	case "+", "=":
		m.setSpeed(g.Speed() + speedStep)

	case "-", "_":
		m.setSpeed(g.Speed() - speedStep)

	case "n":
		g.NextTrack()
		m.status = "playing " + g.ActiveLabel()

	case "r":
		g.Restart()
		*m.results = results{}
		m.status = ""

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

// setSpeed changes the game speed and remembers it for the next run
func (m Model) setSpeed(speed float64) {
	m.Game.SetSpeed(speed)
	c := *m.opts.Config
	c.Playback.Speed = m.Game.Speed()
	m.save(func() {
		if err := c.Save(); err != nil {
			debug.Warn("config", "save failed: %v", err)
		}
	})
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.Game.Snapshot()
	th := m.opts.Theme.WithFade(s.Fade)
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	header := widgets.Header(s, m.opts.Title, th)
	score := widgets.ScoreLine(s, th)
	progress := widgets.Progress(s, m.width, th)
	help := dim.Render("space:pause  ←→:seek  +/-:speed  n:track  r:restart  ?:help  q:quit")

	var body string
	switch {
	case m.showHelp:
		body = widgets.RenderKeyHelp(widgets.Bindings) + "\n\n" + widgets.Legend(th)
	case s.Finished:
		body = m.resultsView(s, th)
	default:
		lo, hi := widgets.KeyRange(m.lo, m.hi, m.width)
		// header, score, progress, keyboard (2), status, help and spacing
		rows := max(4, m.height-9)
		body = widgets.RenderRoll(widgets.RollCells(s, lo, hi, rows), th) + "\n" +
			widgets.RenderKeyboard(widgets.Keys(s, lo, hi), th)
	}

	var out strings.Builder
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(score)
	out.WriteString("\n")
	out.WriteString(progress)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n")
	if m.status != "" {
		out.WriteString(dim.Render(m.status))
	}
	out.WriteString("\n")
	out.WriteString(help)
	return out.String()
}

func (m Model) resultsView(s game.Snapshot, th *theme.Theme) string {
	title := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dim := lipgloss.NewStyle().Foreground(th.Muted())

	lines := []string{title.Render("Finished")}
	sc := s.Score
	if s.Mode != game.Practice {
		lines = append(lines, fmt.Sprintf("best streak %d  worst streak %d  accuracy %.0f%%",
			sc.BestStreak, sc.WorstStreak, sc.Accuracy()*100))
	}
	switch {
	case s.Mode != game.Play:
		lines = append(lines, dim.Render("only Play mode goes on the leaderboard"))
	case m.opts.Store == nil:
		lines = append(lines, dim.Render("no leaderboard configured"))
	case m.results.top == nil && m.results.err == nil:
		lines = append(lines, dim.Render("saving score…"))
	case m.results.top != nil:
		lines = append(lines, "", widgets.Leaderboard(m.results.top, m.results.rank, th))
		if m.results.rank == 0 {
			lines = append(lines, dim.Render("not in the top ten this time"))
		}
	}
	lines = append(lines, "", dim.Render("r:play again  q:quit"))
	return strings.Join(lines, "\n")
}
