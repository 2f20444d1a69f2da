// Package logger builds the process logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caihong2050-art/futurize/futurize"
	"github.com/caihong2050-art/futurize/internal/config"
)

// ParseLevel maps a configured level name to a slog level. Unknown names
// map to info and report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup writes to stderr; see SetupWriter.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	return SetupWriter(os.Stderr, cfg)
}

// SetupWriter creates a JSON or text logger writing to w, installs it as the
// slog default and as the futurize package logger, and returns it.
func SetupWriter(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	slog.SetDefault(logger)
	futurize.SetLogger(logger)
	return logger, nil
}
