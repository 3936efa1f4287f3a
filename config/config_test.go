package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Ports.Input = "Keystation 49"
	cfg.Playback.Speed = 0.5

	require.NoError(t, cfg.SaveFile(path))
	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scoring":{"greatMs":30}}`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Scoring.GreatMs)
	assert.Equal(t, 80, cfg.Scoring.GoodMs)
	assert.Equal(t, 500, cfg.Learning.WindowSize)
}

func TestSanitize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"playback":{"speed":0},"learning":{"segmentNotes":-1}}`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Playback.Speed)
	assert.Equal(t, 16, cfg.Learning.SegmentNotes)
}

func TestMicrosecondAccessors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(3_000_000), cfg.Playback.LeadIn())
	assert.Equal(t, int64(500_000), cfg.Playback.Trailing())
	assert.Equal(t, int64(40_000), cfg.Scoring.Great())
	assert.Equal(t, int64(150_000), cfg.Scoring.Ok())
	assert.Equal(t, int64(750_000), cfg.Learning.MarkerLead())
}

func TestBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}
