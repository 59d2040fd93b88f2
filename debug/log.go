package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled atomic.Bool
	logger  = newLogger(io.Discard)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// DefaultPath returns ~/.config/go-synthwave/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-synthwave", "debug.log")
}

// Enable starts debug logging to path (DefaultPath when empty).
// The terminal belongs to the TUI, so logs always go to a file.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled.Load() {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	file = f
	logger.SetOutput(f)
	enabled.Store(true)

	logger.WithField("cat", "debug").Info("=== Debug logging started ===")
	return nil
}

// EnableWriter routes debug logging to w, e.g. stderr for headless commands.
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	enabled.Store(true)
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	enabled.Store(false)
	logger.SetOutput(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
}

// Enabled reports whether logging is on. Hot paths check this before
// building arguments.
func Enabled() bool {
	return enabled.Load()
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.WithField("cat", category).Debugf(format, args...)
}

// Error records a non-fatal failure. Errors are logged even at high
// frequency since they indicate something the user should see.
func Error(category string, err error) {
	if err == nil || !enabled.Load() {
		return
	}
	logger.WithField("cat", category).WithError(err).Error("failed")
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	countersMu sync.Mutex
	counters   = make(map[string]int)
)

func LogEvery(n int, category, format string, args ...any) {
	if !enabled.Load() {
		return
	}
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
