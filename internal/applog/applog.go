// Package applog is the single process-wide logger (§5: "no global
// mutable state other than a process-wide logger, append-only,
// thread-safe via internal lock"). It wraps logrus for leveled,
// structured logging and lumberjack for size-based rotation, the teacher
// repo's ambient logging stack.
package applog

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// Level mirrors the five levels named in §6: error, warn, info, debug, trace.
type Level = logrus.Level

// Re-exported levels so callers don't import logrus directly.
const (
	LevelError = logrus.ErrorLevel
	LevelWarn  = logrus.WarnLevel
	LevelInfo  = logrus.InfoLevel
	LevelDebug = logrus.DebugLevel
	LevelTrace = logrus.TraceLevel
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetLevel(LevelInfo)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Options configures the rotated log file.
type Options struct {
	Path       string // empty disables file logging
	Level      Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Configure points the logger at a rotated log file and sets its level.
// Safe to call once at startup; logrus.Logger itself serializes writers
// internally so later concurrent Logf calls need no extra locking.
func Configure(opt Options) error {
	std.SetLevel(opt.Level)
	if opt.Path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   opt.Path,
		MaxSize:    maxOr(opt.MaxSizeMB, 10),
		MaxBackups: maxOr(opt.MaxBackups, 5),
		MaxAge:     maxOr(opt.MaxAgeDays, 28),
		Compress:   true,
	}
	std.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}

func maxOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Entry is a logrus.Entry, returned by WithField(s) for structured logging.
type Entry = logrus.Entry

// WithFields starts a structured log record, e.g.
// applog.WithFields(map[string]any{"op": "mkdir"}).Info("created")
func WithFields(fields map[string]any) *Entry {
	return std.WithFields(logrus.Fields(fields))
}

func Errorf(format string, args ...any) { std.Errorf(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Tracef(format string, args ...any) { std.Tracef(format, args...) }
