package logger

import "github.com/user/avplay/pkg/ports"

// NoopLogger discards all messages. Used by tests and quiet mode.
type NoopLogger struct{}

// NewNoop creates a new no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(msg string, args ...interface{}) {}
func (NoopLogger) Info(msg string, args ...interface{})  {}
func (NoopLogger) Warn(msg string, args ...interface{})  {}
func (NoopLogger) Error(msg string, args ...interface{}) {}

// WithComponent returns the same no-op logger.
func (l NoopLogger) WithComponent(component string) ports.Logger {
	return l
}

var _ ports.Logger = NoopLogger{}
