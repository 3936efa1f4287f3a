package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesCategory(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("game", "restart at %d", 42)
	Warn("device", "no input")

	out := buf.String()
	assert.Contains(t, out, "restart at 42")
	assert.Contains(t, out, "cat=game")
	assert.Contains(t, out, "no input")
	assert.Contains(t, out, "cat=device")
}

func TestDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()

	Log("game", "dropped")
	assert.False(t, Enabled())
	assert.Empty(t, buf.String())
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for i := 0; i < 7; i++ {
		LogEvery(3, "test-every", "tick")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "count=1")
	assert.Contains(t, lines[1], "count=4")
	assert.Contains(t, lines[2], "count=7")
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	require.NoError(t, Enable(path))
	Log("game", "hello")
	Disable()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug logging started")
	assert.Contains(t, string(data), "hello")
}
