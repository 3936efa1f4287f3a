package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	file    *os.File
	logger  *log.Logger
	mu      sync.Mutex
	enabled bool
)

// DefaultPath returns ~/.config/go-keyfall/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-keyfall", "debug.log")
}

// Enable starts debug logging to path (DefaultPath when empty)
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = newLogger(f)
	enabled = true

	logger.Info("debug logging started", "path", path)
	return nil
}

// EnableWriter sends debug logging to w
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
	enabled = true
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger = nil
	enabled = false
}

// Enabled reports whether Log writes anywhere
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	write(log.DebugLevel, category, fmt.Sprintf(format, args...))
}

// Warn writes a message at warning level
func Warn(category, format string, args ...any) {
	write(log.WarnLevel, category, fmt.Sprintf(format, args...))
}

func write(level log.Level, category, msg string, keyvals ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || logger == nil {
		return
	}
	logger.Log(level, msg, append([]any{"cat", category}, keyvals...)...)
	if file != nil {
		file.Sync() // flush so a crash keeps the tail
	}
}

// counters are keyed by category and format
var counters = make(map[string]int)

// LogEvery logs one call in n, for per-event paths like MIDI input
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + "\x00" + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n <= 1 || count%n == 1 {
		write(log.DebugLevel, category, fmt.Sprintf(format, args...), "count", count)
	}
}
