// Package obslog configures the process-wide structured logger.
package obslog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures a global slog logger. JSON if DAGSCHED_JSON_LOG=1/true,
// otherwise text. component identifies which caller-facing operation
// (aco_run, ga_run, island_run, ...) owns this logger.
func Init(component string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("DAGSCHED_JSON_LOG"))
	jsonMode := mode == "1" || mode == "true" || mode == "json"

	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if jsonMode {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("component", component)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", jsonMode)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("DAGSCHED_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
