package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/soundlink/soundlink/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the process-wide slog default logger from config. With
// LOG_FILE set, output goes to a size-rotated file instead of stderr.
func Setup(cfg *config.LoggingConfig) {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
