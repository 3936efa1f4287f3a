package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// PortsConfig names the MIDI ports to open
type PortsConfig struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// PlaybackConfig controls the timeline bounds and the cursor windows
type PlaybackConfig struct {
	LeadInMs      int     `json:"leadInMs"`
	TrailingMs    int     `json:"trailingMs"`
	VisibleSpanMs int     `json:"visibleSpanMs"`
	Speed         float64 `json:"speed"`
}

// LeadIn returns the lead-in before the first note in microseconds
func (p PlaybackConfig) LeadIn() int64 { return ms(p.LeadInMs) }

// Trailing returns the tail after the last event in microseconds
func (p PlaybackConfig) Trailing() int64 { return ms(p.TrailingMs) }

// VisibleSpan returns how far ahead of now notes are rendered, in microseconds
func (p PlaybackConfig) VisibleSpan() int64 { return ms(p.VisibleSpanMs) }

// ScoringConfig holds hit thresholds (at speed 1.0) and point values
type ScoringConfig struct {
	GreatMs       int `json:"greatMs"`
	GoodMs        int `json:"goodMs"`
	OkMs          int `json:"okMs"`
	GreatPoints   int `json:"greatPoints"`
	GoodPoints    int `json:"goodPoints"`
	OkPoints      int `json:"okPoints"`
	Penalty       int `json:"penalty"`
	MaxMultiplier int `json:"maxMultiplier"` // tenths, 40 = x4.0
}

func (s ScoringConfig) Great() int64 { return ms(s.GreatMs) }
func (s ScoringConfig) Good() int64 { return ms(s.GoodMs) }
func (s ScoringConfig) Ok() int64 { return ms(s.OkMs) }

// LearningConfig tunes the adaptive learning mode
type LearningConfig struct {
	WindowSize      int     `json:"windowSize"`
	SpeedUpPercent  int     `json:"speedUpPercent"`
	SlowDownPercent int     `json:"slowDownPercent"`
	SpeedUpFactor   float64 `json:"speedUpFactor"`
	SlowDownFactor  float64 `json:"slowDownFactor"`
	MinSpeed        float64 `json:"minSpeed"`
	SegmentNotes    int     `json:"segmentNotes"`
	MarkerLeadMs    int     `json:"markerLeadMs"`
	FadeMs          int     `json:"fadeMs"`
}

func (l LearningConfig) MarkerLead() int64 { return ms(l.MarkerLeadMs) }
func (l LearningConfig) Fade() int64 { return ms(l.FadeMs) }

// PlayerConfig stores the name used for leaderboard entries
type PlayerConfig struct {
	Name string `json:"name,omitempty"`
}

// StoreConfig selects the leaderboard backend
type StoreConfig struct {
	Table    string `json:"table,omitempty"` // DynamoDB table, file store when empty
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Listen   string `json:"listen,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Ports    PortsConfig    `json:"ports,omitempty"`
	Playback PlaybackConfig `json:"playback"`
	Scoring  ScoringConfig  `json:"scoring"`
	Learning LearningConfig `json:"learning"`
	Player   PlayerConfig   `json:"player,omitempty"`
	Store    StoreConfig    `json:"store,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			LeadInMs:      3000,
			TrailingMs:    500,
			VisibleSpanMs: 3000,
			Speed:         1.0,
		},
		Scoring: ScoringConfig{
			GreatMs:       40,
			GoodMs:        80,
			OkMs:          150,
			GreatPoints:   50,
			GoodPoints:    30,
			OkPoints:      10,
			Penalty:       10,
			MaxMultiplier: 40,
		},
		Learning: LearningConfig{
			WindowSize:      500,
			SpeedUpPercent:  20,
			SlowDownPercent: 50,
			SpeedUpFactor:   1.25,
			SlowDownFactor:  0.8,
			MinSpeed:        0.25,
			SegmentNotes:    16,
			MarkerLeadMs:    750,
			FadeMs:          400,
		},
		Player: PlayerConfig{Name: "player"},
		Store:  StoreConfig{Listen: ":8080"},
	}
}

func ms(v int) int64 {
	return int64(v) * 1000
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-keyfall"), nil
}

// Path returns the full path to config.json
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// Fields missing from the file keep their default values.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()

	return cfg, nil
}

// sanitize replaces values that would stall or break the engines
func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.Playback.Speed <= 0 {
		c.Playback.Speed = def.Playback.Speed
	}
	if c.Playback.VisibleSpanMs <= 0 {
		c.Playback.VisibleSpanMs = def.Playback.VisibleSpanMs
	}
	if c.Scoring.MaxMultiplier < 10 {
		c.Scoring.MaxMultiplier = 10
	}
	if c.Learning.WindowSize <= 0 {
		c.Learning.WindowSize = def.Learning.WindowSize
	}
	if c.Learning.SegmentNotes <= 0 {
		c.Learning.SegmentNotes = def.Learning.SegmentNotes
	}
	if c.Learning.MinSpeed <= 0 {
		c.Learning.MinSpeed = def.Learning.MinSpeed
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
