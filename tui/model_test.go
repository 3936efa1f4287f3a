package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-keyfall/config"
	"go-keyfall/device"
	"go-keyfall/game"
	"go-keyfall/leaderboard"
	"go-keyfall/midi"
	"go-keyfall/midi/smftest"
)

// newModel builds a four-note song on two tracks, 120 bpm, from 0.5s to 2.25s
func newModel(t *testing.T, mode game.Mode, store leaderboard.Store) Model {
	t.Helper()
	var lead, bass []smftest.Event
	lead = append(lead, smftest.Name("Lead"))
	bass = append(bass, smftest.Name("Bass"))
	for i := uint32(0); i < 4; i++ {
		on := 480 * (i + 1)
		lead = append(lead, smftest.Note(on, on+240, 0, uint8(60+i))...)
		bass = append(bass, smftest.Note(on, on+240, 1, 36)...)
	}
	data := smftest.Bytes(t, 480,
		smftest.Track(smftest.Tempo(0, 120)),
		smftest.Track(lead...),
		smftest.Track(bass...),
	)
	cfg := config.DefaultConfig()
	f, err := midi.Load(data, cfg.Playback)
	require.NoError(t, err)

	g, err := game.New(f, cfg, device.NullSink{}, game.Options{Mode: mode, Pair: game.AllTracks})
	require.NoError(t, err)

	m := NewModel(g, Options{Title: "test song", Song: leaderboard.SongKey(data), Config: cfg, Store: store})
	m.save = func(f func()) { f() }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func key(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	switch k {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	}
	return update(t, m, msg)
}

// scoresFrom runs cmd and any batch it returns, collecting score results
func scoresFrom(cmd tea.Cmd) []ScoresMsg {
	if cmd == nil {
		return nil
	}
	var out []ScoresMsg
	switch msg := cmd().(type) {
	case ScoresMsg:
		out = append(out, msg)
	case tea.BatchMsg:
		for _, c := range msg {
			out = append(out, scoresFrom(c)...)
		}
	}
	return out
}

// playThrough advances frames a quarter second apart until the game ends
func playThrough(t *testing.T, m Model) (Model, []ScoresMsg) {
	t.Helper()
	now := time.Now()
	var scores []ScoresMsg
	for i := 0; i < 100 && !m.Game.Finished(); i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, FrameMsg(now))
		now = now.Add(maxFrame)
		if m.Game.Finished() {
			scores = scoresFrom(cmd)
		}
	}
	require.True(t, m.Game.Finished())
	return m, scores
}

func TestNoteRange(t *testing.T) {
	m := newModel(t, game.Practice, nil)
	assert.Equal(t, uint8(36), m.lo)
	assert.Equal(t, uint8(63), m.hi)
}

func TestFrameAdvancesClamped(t *testing.T) {
	m := newModel(t, game.Practice, nil)
	start := m.Game.Player().Now()
	now := time.Now()

	m, _ = update(t, m, FrameMsg(now))
	assert.Equal(t, start, m.Game.Player().Now(), "first frame only sets the clock")

	m, _ = update(t, m, FrameMsg(now.Add(100*time.Millisecond)))
	assert.Equal(t, start+100_000, m.Game.Player().Now())

	m, _ = update(t, m, FrameMsg(now.Add(10*time.Second)))
	assert.Equal(t, start+100_000+maxFrame.Microseconds(), m.Game.Player().Now())
}

func TestPlaySubmitsOnce(t *testing.T) {
	store := leaderboard.NewFileStore(t.TempDir())
	m := newModel(t, game.Play, store)

	m, scores := playThrough(t, m)
	require.Len(t, scores, 1)
	require.NoError(t, scores[0].Err)
	assert.Equal(t, 1, scores[0].Rank)
	require.Len(t, scores[0].Top, 1)
	assert.Equal(t, "player", scores[0].Top[0].Player)
	assert.Equal(t, 8, scores[0].Top[0].Missed)

	m, _ = update(t, m, scores[0])
	assert.Contains(t, m.View(), "Finished")

	// later frames do not submit again
	_, cmd := update(t, m, FrameMsg(time.Now()))
	assert.Empty(t, scoresFrom(cmd))
}

func TestPracticeNeverSubmits(t *testing.T) {
	store := leaderboard.NewFileStore(t.TempDir())
	m := newModel(t, game.Practice, store)

	m, scores := playThrough(t, m)
	assert.Empty(t, scores)
	assert.Contains(t, m.View(), "only Play mode")
}

func TestKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	m := newModel(t, game.Practice, nil)

	m, _ = key(t, m, " ")
	assert.True(t, m.Game.Player().Paused())
	m, _ = key(t, m, " ")
	assert.False(t, m.Game.Player().Paused())

	m, _ = key(t, m, "n")
	assert.Equal(t, 0, m.Game.Active())
	assert.Contains(t, m.status, m.Game.ActiveLabel())

	before := m.Game.Speed()
	m, _ = key(t, m, "-")
	assert.InDelta(t, before-speedStep, m.Game.Speed(), 1e-9)
	saved, err := config.Load()
	require.NoError(t, err)
	assert.InDelta(t, before-speedStep, saved.Playback.Speed, 1e-9)

	m, _ = key(t, m, "?")
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Transport")

	_, cmd := key(t, m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestSeekKeys(t *testing.T) {
	m := newModel(t, game.Practice, nil)
	start := m.Game.Player().Now()

	m, _ = key(t, m, "right")
	assert.Equal(t, start+seekStep.Microseconds(), m.Game.Player().Now())
	m, _ = key(t, m, "left")
	assert.Equal(t, start, m.Game.Player().Now())
}

func TestPortMessage(t *testing.T) {
	m := newModel(t, game.Practice, nil)
	m, cmd := update(t, m, PortMsg{Name: "Piano", Input: true, Connected: true})
	assert.Nil(t, cmd, "no watcher to listen on")
	assert.Equal(t, "input connected: Piano", m.status)
}

func TestViewRendersRoll(t *testing.T) {
	m := newModel(t, game.Practice, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})
	out := m.View()
	assert.Contains(t, out, "test song")
	assert.Contains(t, out, "C3")
}
