package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
)

// SetupLogger installs the process-wide slog logger. format is "json" for
// machine-readable output or "text" for a colored console.
func SetupLogger(level, format string) {
	slog.SetDefault(NewLogger(os.Stdout, level, format))
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text", "console":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(lvl),
			clog.WithTimeFmt("15:04:05"),
			clog.WithSource(false),
			clog.WithAttrHook(clog.GoerrHook),
		)
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	return slog.New(handler)
}

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
