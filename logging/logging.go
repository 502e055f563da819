package logging

import (
	"io"
	"log/slog"
	"strings"
)

// SubSystem tags every record with the component that emitted it
type SubSystem string

const (
	Training   SubSystem = "training"
	Experiment SubSystem = "experiment"
	Storage    SubSystem = "storage"
	Registry   SubSystem = "registry"
	Server     SubSystem = "server"
	CLI        SubSystem = "cli"
)

// Setup installs the process-wide default logger.
// json selects the JSON handler (servers); otherwise text is used (interactive runs).
func Setup(w io.Writer, level string, json bool) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a configuration string to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
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

// Warn logs msg at warn level, tagged with subSystem
func Warn(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Warn(msg, withSubsystem...)
}

// Info logs msg at info level, tagged with subSystem
func Info(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Info(msg, withSubsystem...)
}

// Error logs msg at error level, tagged with subSystem
func Error(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Error(msg, withSubsystem...)
}

// Debug logs msg at debug level, tagged with subSystem
func Debug(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Debug(msg, withSubsystem...)
}
