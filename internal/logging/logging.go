package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"courtside/gateway/internal/config"
)

// Cleanup closes any log file New opened.
type Cleanup func() error

var noopCleanup Cleanup = func() error { return nil }

// New builds the service logger from config: text or json format, stdout
// always, plus an append-mode file when one is configured.
func New(cfg config.LoggingConfig) (*slog.Logger, Cleanup, error) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: true,
	}

	out := io.Writer(os.Stdout)
	cleanup := noopCleanup
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, file)
		cleanup = file.Close
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), cleanup, nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
