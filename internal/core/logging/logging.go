// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // log to a rotating file instead of stderr

	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// ParseLevel maps a level name to a slog level; debug forces LevelDebug.
func ParseLevel(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(name) {
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

// NewHandler builds a handler writing to w in the configured format.
func NewHandler(w io.Writer, cfg Config, level slog.Level) slog.Handler {
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    w != os.Stderr && w != os.Stdout,
	})
}

// Setup installs the default logger. The returned closer releases the log
// file, if any.
func Setup(cfg Config, debug bool) io.Closer {
	level := ParseLevel(cfg.Level, debug)

	if cfg.File != "" {
		w := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		}
		slog.SetDefault(slog.New(NewHandler(w, cfg, level)))
		return w
	}

	if strings.EqualFold(cfg.Format, "json") {
		slog.SetDefault(slog.New(NewHandler(os.Stderr, cfg, level)))
		return io.NopCloser(nil)
	}

	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return io.NopCloser(nil)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
