// Package logger provides a small structured logging interface over slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const callerSkipFrames = 2 // getCaller -> logging method -> actual caller

// Logger defines the logging interface.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)

	// Named returns a child logger tagged with component=name. Nested names
	// are joined with dots: Named("a").Named("b") logs component=a.b.
	Named(name string) Logger
	// With returns a child logger that always carries fields.
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val any) Field                { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

// Format selects the handler used by Init.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type slogLogger struct {
	logger    *slog.Logger
	component string
}

func (l *slogLogger) Named(name string) Logger {
	if l.component != "" {
		name = l.component + "." + name
	}
	return &slogLogger{logger: l.logger, component: name}
}

func (l *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return &slogLogger{logger: l.logger.With(args...), component: l.component}
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	attrs = append(attrs, slog.String("source", getCaller()))
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

var (
	mu       sync.RWMutex
	global   Logger
	levelVar slog.LevelVar
)

// Init initializes the global logger with a text handler on stdout.
func Init() error {
	return InitWithWriter(os.Stdout, FormatText)
}

// InitWithWriter initializes the global logger writing to w in the given format.
func InitWithWriter(w io.Writer, format Format) error {
	if w == nil {
		return fmt.Errorf("logger: nil writer")
	}
	opts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText, "":
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("logger: unknown format %q", format)
	}

	mu.Lock()
	global = &slogLogger{logger: slog.New(h)}
	mu.Unlock()
	return nil
}

// getCaller returns the caller location as relative/path/file.go:line.
func getCaller() string {
	// one more frame than callerSkipFrames because of the shared log helper
	_, file, line, ok := runtime.Caller(callerSkipFrames + 1)
	if !ok {
		return "unknown:0"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	rel, err := filepath.Rel(cwd, file)
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return fmt.Sprintf("%s:%d", rel, line)
}

// Get returns the global logger. It panics if Init was never called.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger from the global one.
func Named(name string) Logger {
	return Get().Named(name)
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() Logger {
	return &slogLogger{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// Sync flushes buffered log entries. slog does not buffer.
func Sync() error {
	return nil
}

// SetLevel updates the current logging level for the global handler.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		SetLevel(slog.LevelDebug)
	case "", "info":
		SetLevel(slog.LevelInfo)
	case "warn", "warning":
		SetLevel(slog.LevelWarn)
	case "error":
		SetLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}
