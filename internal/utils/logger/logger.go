package logger

import (
	"io"
	"os"
	"strings"

	"fieldsync/internal/config"
	"fieldsync/internal/utils/logger/slogpretty"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tune New beyond the environment preset.
type Options struct {
	// Level overrides the environment's default level when set.
	Level string
	// File adds a rotating log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns the logger preset for env: pretty debug output locally, JSON elsewhere.
func New(env string) *slog.Logger {
	return NewWithOptions(env, Options{})
}

func NewWithOptions(env string, opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, rotatingFile(opts))
	}

	switch env {
	case config.EnvLocal:
		if opts.File == "" {
			return prettyLogger(out, levelOr(opts.Level, slog.LevelDebug))
		}
		// Colour codes do not belong in a log file.
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: levelOr(opts.Level, slog.LevelDebug)}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: levelOr(opts.Level, slog.LevelDebug)}))
	default:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: levelOr(opts.Level, slog.LevelInfo)}))
	}
}

func setupPrettySlog() *slog.Logger {
	return prettyLogger(os.Stdout, slog.LevelDebug)
}

func prettyLogger(out io.Writer, level slog.Level) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: level},
	}
	return slog.New(opts.NewPrettyHandler(out))
}

func rotatingFile(opts Options) io.Writer {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     28,
		Compress:   true,
	}
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func levelOr(s string, def slog.Level) slog.Level {
	if l, ok := ParseLevel(s); ok {
		return l
	}
	return def
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
