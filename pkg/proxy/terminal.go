package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of an engine log line.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
)

const ansiReset = "\x1b[0m"

var levelColors = map[Level]string{
	LevelInfo:    "\x1b[36m",
	LevelWarning: "\x1b[33m",
	LevelError:   "\x1b[31m",
	LevelSuccess: "\x1b[32m",
}

// Terminal receives the engine's operator log, one line at a time.
type Terminal interface {
	WriteLine(line string)
}

// FormatLine renders a colored "[timestamp] message" line.
func FormatLine(level Level, t time.Time, message string) string {
	return fmt.Sprintf("%s[%s] %s%s", levelColors[level], t.UTC().Format(time.RFC3339), message, ansiReset)
}

// WriterTerminal writes lines to an io.Writer.
type WriterTerminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTerminal returns a Terminal backed by w.
func NewWriterTerminal(w io.Writer) *WriterTerminal {
	return &WriterTerminal{w: w}
}

// WriteLine implements Terminal.
func (t *WriterTerminal) WriteLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, line+"\n")
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logf writes to the terminal when one is attached and to slog otherwise.
func (e *Engine) logf(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if e.terminal != nil {
		e.terminal.WriteLine(FormatLine(level, e.clock.Now(), msg))
		return
	}
	e.logger.Log(context.Background(), level.slogLevel(), msg)
}
