package leaderboard

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"go-keyfall/game"
)

// MaxEntries is how many results a song keeps
const MaxEntries = 10

var (
	ErrBadSong  = errors.New("leaderboard: malformed song key")
	ErrBadEntry = errors.New("leaderboard: entry needs a player and a non-negative score")
)

// Entry is one finished Play mode attempt
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Player     string    `json:"player"`
	Points     int       `json:"points"`
	Accuracy   float64   `json:"accuracy"`
	Great      int       `json:"great"`
	Good       int       `json:"good"`
	Ok         int       `json:"ok"`
	Missed     int       `json:"missed"`
	Incorrect  int       `json:"incorrect"`
	BestStreak int       `json:"bestStreak"`
	Speed      float64   `json:"speed"`
	Track      string    `json:"track"`
	Date       time.Time `json:"date"`
}

// NewEntry records a final score
func NewEntry(player string, s game.Score, speed float64, track string, date time.Time) Entry {
	return Entry{
		ID:         uuid.New(),
		Player:     player,
		Points:     s.Points,
		Accuracy:   s.Accuracy(),
		Great:      s.Count(game.Great),
		Good:       s.Count(game.Good),
		Ok:         s.Count(game.Ok),
		Missed:     s.Count(game.Missed),
		Incorrect:  s.Count(game.Incorrect),
		BestStreak: s.BestStreak,
		Speed:      speed,
		Track:      track,
		Date:       date.UTC(),
	}
}

func (e *Entry) validate() error {
	if e.Player == "" || e.Points < 0 {
		return ErrBadEntry
	}
	return nil
}

// Store keeps the best entries per song. Insert returns the 1-based rank of
// the new entry, or 0 when it did not make the table.
type Store interface {
	Insert(ctx context.Context, song string, e Entry) (int, error)
	Top(ctx context.Context, song string) ([]Entry, error)
}

// SongKey identifies a song by the SHA-1 of its file bytes
func SongKey(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ValidSong reports whether key looks like a SongKey
func ValidSong(key string) bool {
	if len(key) != sha1.Size*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

// less orders by points, then the earlier date, then ID so ties are stable
func less(a, b Entry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID.String() < b.ID.String()
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}

// rank adds e to entries and returns the kept table, the rank of e and the
// entries that fell off the end
func rank(entries []Entry, e Entry) (kept []Entry, r int, evicted []Entry) {
	all := append(append(make([]Entry, 0, len(entries)+1), entries...), e)
	sortEntries(all)
	if len(all) > MaxEntries {
		evicted = all[MaxEntries:]
		all = all[:MaxEntries]
	}
	for i := range all {
		if all[i].ID == e.ID {
			return all, i + 1, evicted
		}
	}
	return all, 0, evicted
}

// prepare fills in a missing ID and date and checks the entry
func prepare(e *Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	return nil
}
