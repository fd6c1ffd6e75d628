// Package logging provides the leveled logger used by tether commands and
// the change detection harness.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", s)
}

// Logger is implemented by every logger in this package.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// writerLogger writes to an io.Writer
type writerLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
	json  bool
	now   func() time.Time
}

// New returns a logger writing entries at or above level to w. Format is
// "text" for `[INFO] message` lines or "json" for one object per line.
func New(w io.Writer, level Level, format string) Logger {
	return &writerLogger{w: w, level: level, json: format == "json", now: time.Now}
}

func (l *writerLogger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *writerLogger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *writerLogger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *writerLogger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *writerLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.json {
		entry, _ := json.Marshal(struct {
			Time    string `json:"time"`
			Level   string `json:"level"`
			Message string `json:"msg"`
		}{l.now().UTC().Format(time.RFC3339), strings.ToLower(level.String()), msg})
		fmt.Fprintf(l.w, "%s\n", entry)
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", level, msg)
}

// BufferedLogger captures log output for later retrieval
type BufferedLogger struct {
	mu    sync.Mutex
	lines []string
}

// NewBufferedLogger creates a new buffered logger
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{lines: make([]string, 0)}
}

func (l *BufferedLogger) Debugf(format string, args ...any) { l.add(LevelDebug, format, args...) }
func (l *BufferedLogger) Infof(format string, args ...any)  { l.add(LevelInfo, format, args...) }
func (l *BufferedLogger) Warnf(format string, args ...any)  { l.add(LevelWarn, format, args...) }
func (l *BufferedLogger) Errorf(format string, args ...any) { l.add(LevelError, format, args...) }

func (l *BufferedLogger) add(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, "["+level.String()+"] "+fmt.Sprintf(format, args...))
}

// String returns all captured output as a single string
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}

// Lines returns all captured log lines
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.lines))
	copy(result, l.lines)
	return result
}

// Reset clears all captured output
func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
}

// nullLogger discards all output
type nullLogger struct{}

func (nullLogger) Debugf(string, ...any) {}
func (nullLogger) Infof(string, ...any)  {}
func (nullLogger) Warnf(string, ...any)  {}
func (nullLogger) Errorf(string, ...any) {}

// NullLogger returns a logger that discards all output
func NullLogger() Logger {
	return nullLogger{}
}
