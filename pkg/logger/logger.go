// Package logger is a small, standalone logrus wrapper for command-line
// tools (indexctl) that run outside the Application composition root and
// so never get a logger injected into them. infrastructure/logging is the
// service-side wrapper; this one skips its request/trace-context helpers
// since a CLI invocation has neither.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger for CLI use.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format, and destination for a CLI logger.
type Config struct {
	Level      string
	Format     string
	Output     string // "stderr" (default) or "file"
	FilePrefix string // used when Output == "file"; defaults to "indexctl"
}

// New builds a Logger from cfg, falling back to sane defaults for any
// field that doesn't parse (invalid level) or isn't set (empty format).
func New(cfg Config) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "indexctl"
		}
		if err := os.MkdirAll("logs", 0o755); err != nil {
			base.Errorf("failed to create logs directory: %v", err)
			break
		}
		path := filepath.Join("logs", prefix+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			base.Errorf("failed to open log file %s: %v", path, err)
			break
		}
		base.SetOutput(io.MultiWriter(os.Stderr, file))
	default:
		base.SetOutput(os.Stderr)
	}

	return &Logger{Logger: base}
}

// NewDefault builds a Logger at info level, text format, writing to
// stderr — the common case for a one-shot CLI invocation. Callers tag it
// with a command name via WithField rather than baking one in here, since
// logrus.Entry fields don't persist back onto the parent *Logger.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: "text", Output: "stderr"})
}

// WithField returns a new log entry with a field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a new log entry with multiple fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
