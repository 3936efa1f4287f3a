package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-keyfall/config"
	"go-keyfall/midi"
	"go-keyfall/midi/smftest"

	"gitlab.com/gomidi/midi/v2/smf"
)

type message [3]byte

type recorder struct {
	msgs []message
}

func (r *recorder) Send(status, data1, data2 byte) {
	r.msgs = append(r.msgs, message{status, data1, data2})
}

func (r *recorder) reset() { r.msgs = nil }

func timeline(t *testing.T, tracks ...[]smftest.Event) *midi.Timeline {
	t.Helper()
	smfTracks := make([]smf.Track, 0, len(tracks))
	for _, tr := range tracks {
		smfTracks = append(smfTracks, smftest.Track(tr...))
	}
	f, err := midi.Load(smftest.Bytes(t, 480, smfTracks...), config.DefaultConfig().Playback)
	require.NoError(t, err)
	require.True(t, f.IsValid())
	return f.Timeline
}

func newPlayer(tl *midi.Timeline) (*Player, *recorder) {
	rec := &recorder{}
	return New(tl, config.DefaultConfig().Playback, rec), rec
}

// state captures everything Jump is supposed to determine
type state struct {
	Now                    int64
	RenderStart, RenderEnd int
	InputStart, InputEnd   int
	Learn                  int
	Sounding               []int
	Tempo                  uint32
	Signature              midi.TimeSignature
}

func capture(p *Player) state {
	return state{
		Now:         p.Now(),
		RenderStart: p.RenderStart(),
		RenderEnd:   p.RenderEnd(),
		InputStart:  p.InputStart(),
		InputEnd:    p.InputEnd(),
		Learn:       p.Learn(),
		Sounding:    p.Sounding(),
		Tempo:       p.Tempo(),
		Signature:   p.Signature(),
	}
}

func song(t *testing.T) *midi.Timeline {
	return timeline(t,
		[]smftest.Event{smftest.Tempo(0, 120), smftest.Meter(0, 3, 4), smftest.Tempo(1920, 60), smftest.Meter(2880, 4, 4)},
		smftest.Join(
			[]smftest.Event{smftest.Program(0, 0, 5), smftest.CC(0, 0, 7, 90)},
			smftest.Note(0, 960, 0, 60),
			smftest.Note(240, 480, 0, 64),
			smftest.Note(480, 2400, 0, 67),
			[]smftest.Event{smftest.Program(1000, 0, 7), smftest.CC(1200, 0, 7, 70), smftest.CC(1300, 0, 10, 20)},
			smftest.Note(1920, 2880, 0, 72),
			smftest.Note(2880, 3840, 0, 48),
		),
		smftest.Join(
			smftest.Note(120, 3000, 1, 40),
			[]smftest.Event{smftest.On(1500, 1, 41, 80)}, // never released
		),
	)
}

func TestJumpReconstructsSingleNote(t *testing.T) {
	tl := timeline(t, smftest.Note(100, 200, 0, 60))
	p, _ := newPlayer(tl)

	target := tl.TimeAtTick(150)
	p.Jump(target)
	assert.Equal(t, target, p.Now())
	sounding := p.Sounding()
	require.Len(t, sounding, 1)
	assert.True(t, tl.Events[sounding[0]].IsNoteOn())
	assert.Equal(t, uint8(60), tl.Events[sounding[0]].Note())
}

func TestJumpRoundTripAndClamp(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)

	for _, target := range []int64{tl.Start, -1_000_000, 0, 123_456, 1_500_000, tl.End} {
		p.Jump(target)
		assert.Equal(t, target, p.Now())
	}

	p.Jump(tl.Start - 10_000_000)
	assert.Equal(t, tl.Start, p.Now())
	p.Jump(tl.End + 10_000_000)
	assert.Equal(t, tl.End, p.Now())
	assert.True(t, p.Done())
}

func TestJumpIsIdempotent(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)
	p.SetInputWindow(150_000)

	for _, target := range []int64{250_000, 1_000_000, 2_345_678, 4_000_000} {
		p.Jump(target)
		first := capture(p)
		p.Jump(target)
		assert.Equal(t, first, capture(p), "jump to %d", target)
	}
}

func TestJumpMatchesContinuousPlayback(t *testing.T) {
	tl := song(t)

	for _, target := range []int64{0, 125_000, 250_000, 999_999, 1_000_000, 1_700_000, 2_600_000, 3_100_000, 5_000_000} {
		cont, _ := newPlayer(tl)
		for now := tl.Start; now < target; now += 16_667 {
			cont.Step(now)
		}
		cont.Step(target)

		jumped, _ := newPlayer(tl)
		jumped.Jump(target)
		jumped.Step(target)

		want, got := capture(cont), capture(jumped)
		assert.Equal(t, want.RenderStart, got.RenderStart, "render start at %d", target)
		assert.Equal(t, want.Sounding, got.Sounding, "sounding at %d", target)
		assert.Equal(t, want.Tempo, got.Tempo, "tempo at %d", target)
		assert.Equal(t, want.Signature, got.Signature, "signature at %d", target)
		assert.Equal(t, want.Learn, got.Learn, "learn at %d", target)
		assert.Equal(t, want.RenderEnd, got.RenderEnd, "render end at %d", target)
	}
}

func TestUnmatchedNoteStaysSounding(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)
	p.Jump(tl.LastEvent)

	var keys []uint8
	for _, idx := range p.Sounding() {
		keys = append(keys, tl.Events[idx].Note())
	}
	assert.Contains(t, keys, uint8(41))
}

func TestAdvanceSendsEveryEventOnce(t *testing.T) {
	tl := song(t)
	p, rec := newPlayer(tl)
	rec.reset()

	for !p.Done() {
		p.Advance(16_667)
	}

	ons := 0
	for _, m := range rec.msgs {
		if m[0]&0xF0 == 0x90 && m[2] > 0 {
			ons++
		}
	}
	assert.Equal(t, len(tl.NoteOns), ons)
	assert.Equal(t, len(tl.Events), p.RenderStart())
	assert.Equal(t, []int{indexOfKey(tl, 41)}, p.Sounding())
}

func indexOfKey(tl *midi.Timeline, key uint8) int {
	for i, ev := range tl.Events {
		if ev.IsNoteOn() && ev.Note() == key {
			return i
		}
	}
	return -1
}

func TestJumpReleasesAndReplays(t *testing.T) {
	tl := song(t)
	p, rec := newPlayer(tl)
	p.Step(tl.TimeAtTick(300))
	require.NotEmpty(t, p.Sounding())
	held := len(p.Sounding())

	rec.reset()
	p.Jump(tl.TimeAtTick(1400))

	offs := rec.msgs[:held]
	for _, m := range offs {
		assert.Equal(t, byte(0x80), m[0]&0xF0)
	}
	assert.Equal(t, []message{
		{0xC0, 7, 0},
		{0xB0, 7, 70},
		{0xB0, 10, 20},
	}, rec.msgs[held:])
}

func TestMute(t *testing.T) {
	tl := song(t)
	p, rec := newPlayer(tl)
	p.SetMute(func(ev *midi.Event) bool { return ev.Channel() == 1 })
	rec.reset()

	for !p.Done() {
		p.Advance(50_000)
	}
	require.NotEmpty(t, rec.msgs)
	for _, m := range rec.msgs {
		assert.NotEqual(t, byte(1), m[0]&0x0F)
	}
	assert.Contains(t, p.Sounding(), indexOfKey(tl, 41), "muted notes are still tracked")
}

func TestSpeedAndPause(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)
	start := p.Now()

	p.SetSpeed(0.5)
	p.Advance(1_000_000)
	assert.Equal(t, start+500_000, p.Now())

	p.SetPaused(true)
	p.Advance(1_000_000)
	assert.Equal(t, start+500_000, p.Now())

	p.SetPaused(false)
	p.SetSpeed(0)
	assert.Equal(t, 0.5, p.Speed())
}

func TestStepDoesNotGoBack(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)
	p.Step(1_000_000)
	p.Step(500_000)
	assert.Equal(t, int64(1_000_000), p.Now())
}

func TestExpireHook(t *testing.T) {
	tl := timeline(t, smftest.Note(480, 960, 0, 60))
	p, _ := newPlayer(tl)
	p.SetInputWindow(100_000)

	var expired []int
	p.OnExpire(func(idx int) { expired = append(expired, idx) })

	p.Step(549_999)
	assert.Empty(t, expired)
	assert.Equal(t, 0, p.InputStart())
	assert.Equal(t, 1, p.InputEnd())

	// a note exactly one tolerance behind is still in the window
	p.Step(600_000)
	assert.Empty(t, expired)
	assert.Equal(t, 0, p.InputStart())

	p.Step(600_001)
	assert.Equal(t, []int{0}, expired)
}

func TestExpireUntil(t *testing.T) {
	tl := timeline(t, smftest.Note(480, 960, 0, 60), smftest.Note(960, 1440, 0, 62))
	p, _ := newPlayer(tl)
	p.SetInputWindow(100_000)

	var expired []int
	p.OnExpire(func(idx int) { expired = append(expired, idx) })

	p.ExpireUntil(tl.Start)
	assert.Empty(t, expired, "nothing behind a backward target")

	// the second note stays inside the window at the target
	p.ExpireUntil(1_050_000)
	require.Len(t, expired, 1)
	assert.Equal(t, uint8(60), tl.Events[expired[0]].Note())
	assert.Equal(t, tl.Start, p.Now(), "playback does not move")
}

func TestInputWindowEdgesAfterJump(t *testing.T) {
	tl := timeline(t, smftest.Note(480, 960, 0, 60))
	p, _ := newPlayer(tl)
	p.SetInputWindow(100_000)

	p.Jump(400_000)
	assert.Equal(t, 0, p.InputStart())
	assert.Equal(t, 1, p.InputEnd(), "note exactly one tolerance ahead")

	p.Jump(600_000)
	assert.Equal(t, 0, p.InputStart(), "note exactly one tolerance behind")
	assert.Equal(t, 1, p.InputEnd())

	p.Jump(600_001)
	assert.Equal(t, 1, p.InputStart())

	p.Jump(399_999)
	assert.Equal(t, 0, p.InputEnd())
	p.SetInputWindow(100_001)
	assert.Equal(t, 1, p.InputEnd())
}

func TestConsumeHook(t *testing.T) {
	tl := timeline(t, smftest.Note(0, 480, 0, 60))
	p, _ := newPlayer(tl)

	var seen []int
	p.OnConsume(func(idx int, ev *midi.Event) { seen = append(seen, idx) })
	p.Step(tl.End)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestTempoAndSignatureTracking(t *testing.T) {
	tl := song(t)
	p, _ := newPlayer(tl)

	p.Step(tl.TimeAtTick(100))
	assert.Equal(t, uint32(500000), p.Tempo())
	assert.Equal(t, uint8(3), p.Signature().Numerator)

	p.Step(tl.TimeAtTick(1920))
	assert.Equal(t, uint32(1000000), p.Tempo())

	p.Step(tl.TimeAtTick(2880))
	assert.Equal(t, uint8(4), p.Signature().Numerator)
}

func TestEmptyTimeline(t *testing.T) {
	p, rec := newPlayer(&midi.Timeline{})
	assert.False(t, p.InputEnabled())
	assert.Equal(t, NoData, p.RenderStart())
	assert.Equal(t, NoData, p.RenderEnd())
	assert.Equal(t, NoData, p.InputStart())
	assert.Equal(t, NoData, p.InputEnd())
	assert.Equal(t, NoData, p.Learn())
	assert.True(t, p.Done())

	assert.NotPanics(t, func() {
		p.Advance(1_000_000)
		p.Jump(5_000_000)
		p.SetInputWindow(100)
	})
	assert.Empty(t, rec.msgs)
	assert.Zero(t, p.Progress())
}

func TestSilence(t *testing.T) {
	tl := song(t)
	p, rec := newPlayer(tl)
	p.Step(tl.TimeAtTick(300))
	held := len(p.Sounding())
	rec.reset()

	p.Silence()
	assert.Len(t, rec.msgs, held+16)
	assert.Len(t, p.Sounding(), held)
}
