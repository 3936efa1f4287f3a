package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-keyfall/config"
	"go-keyfall/debug"
)

// FileStore keeps one JSON file per song in a directory
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// DefaultDir returns the scores directory under the config directory
func DefaultDir() (string, error) {
	base, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "scores"), nil
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(song string) string {
	return filepath.Join(s.dir, song+".json")
}

// Songs returns the keys of every song with saved scores
func (s *FileStore) Songs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var songs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if name != entry.Name() && ValidSong(name) {
			songs = append(songs, name)
		}
	}
	sort.Strings(songs)
	return songs, nil
}

func (s *FileStore) Top(ctx context.Context, song string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSong(song) {
		return nil, ErrBadSong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(song)
}

func (s *FileStore) Insert(ctx context.Context, song string, e Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !ValidSong(song) {
		return 0, ErrBadSong
	}
	if err := prepare(&e); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(song)
	if err != nil {
		return 0, err
	}
	kept, r, _ := rank(entries, e)
	if r == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(s.path(song), data, 0644); err != nil {
		return 0, err
	}
	debug.Log("scores", "%s: %s scored %d, rank %d", song[:8], e.Player, e.Points, r)
	return r, nil
}

func (s *FileStore) read(song string) ([]Entry, error) {
	data, err := os.ReadFile(s.path(song))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("scores for %s: %w", song, err)
	}
	sortEntries(entries)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries, nil
}
