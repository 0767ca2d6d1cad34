package shared

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func InitLogger(format, level string) *slog.Logger {
	return InitLoggerTo(os.Stdout, format, level)
}

// InitLoggerTo builds a logger writing to w. The orchestrator uses this with
// an io.MultiWriter so a per-run log file sees the same lines as stdout.
func InitLoggerTo(w io.Writer, format, level string) *slog.Logger {
	var h slog.Handler
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
