// Package logger builds the process slog.Logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options defines parameters for logger creation.
type Options struct {
	Level   string    // console level: debug|info|warn|error (default: info)
	Format  string    // console format: text|json (default: text)
	File    string    // optional rotating JSON log file, always at debug level
	Console io.Writer // console destination (default: os.Stderr)
	NoColor bool
}

// New creates the logger and returns a function releasing the log file.
// The close function is never nil.
func New(o Options) (*slog.Logger, func() error) {
	console := o.Console
	if console == nil {
		console = os.Stderr
	}
	level := ParseLevel(o.Level)

	var consoleHandler slog.Handler
	if strings.EqualFold(o.Format, "json") {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	} else {
		consoleHandler = tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    o.NoColor,
		})
	}

	if o.File == "" {
		return slog.New(consoleHandler), func() error { return nil }
	}

	fileWriter := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(NewMultiHandler(consoleHandler, fileHandler)), fileWriter.Close
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans records out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to multiple handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled implements slog.Handler.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler. Every enabled handler gets the record;
// the first error is returned.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithAttrs implements slog.Handler.
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup implements slog.Handler.
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
