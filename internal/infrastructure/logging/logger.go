package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ferralux/myhome-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger. The embedded methods take alternating
// key/value args, which is also the shape of the small Logger
// interfaces the gateway client and the orchestrator accept, so a
// *Logger wires into them directly.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the daemon's logger from the logging section of
// config.yaml: JSON or text format, level filtering, stdout or stderr,
// with service and version attached to every record.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "myhome-core"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel maps a config string to a slog.Level. Unrecognised input
// falls back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger carrying extra default attributes:
//
//	busLog := logger.With("gateway", gw.MAC)
//	busLog.Info("connected") // includes gateway=...
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default is the bootstrap logger used before config.Load succeeds:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
