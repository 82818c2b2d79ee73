package ports

import (
	"errors"
	"fmt"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug covers per-packet and per-frame task activity.
	LevelDebug LogLevel = iota
	// LevelInfo covers session progress: open, seek, stop.
	LevelInfo
	// LevelWarn covers recoverable stream faults such as a failed
	// decoder or a corrupt packet.
	LevelWarn
	// LevelError covers failures that end playback.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ErrUnknownLogLevel is returned by LookupLogLevel for unrecognized names.
var ErrUnknownLogLevel = errors.New("ports: unknown log level")

// LookupLogLevel resolves a level name. Names are case-insensitive and
// "warning" is accepted for warn.
func LookupLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "quiet":
		return LevelQuiet, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}
}

// ParseLogLevel parses a string into a LogLevel, falling back to
// LevelInfo for unrecognized names.
func ParseLogLevel(s string) LogLevel {
	level, _ := LookupLogLevel(s)
	return level
}

// Logger abstracts logging operations with multi-language support.
// Implementations must be safe for concurrent use by the demux, decode
// and presenter tasks.
type Logger interface {
	// Debug logs a debug message with optional format arguments.
	// The msg parameter is the message key that can be translated.
	Debug(msg string, args ...interface{})

	// Info logs an informational message with optional format arguments.
	Info(msg string, args ...interface{})

	// Warn logs a warning message with optional format arguments.
	Warn(msg string, args ...interface{})

	// Error logs an error message with optional format arguments.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the
	// component name, e.g. "demux" or "presenter".
	WithComponent(component string) Logger
}
