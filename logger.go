package apismith

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger receives debug output as a message plus alternating key/value pairs.
// Any Logger also satisfies smash.Logger.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// DebugConfig selects which events are logged when Enabled is set.
type DebugConfig struct {
	Enabled       bool
	LogRequests   bool
	LogRetries    bool
	LogRateLimit  bool
	LogCache      bool
	LogTransforms bool
	RequestIDGen  func() string
}

// DefaultDebugConfig logs everything once enabled.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:       false,
		LogRequests:   true,
		LogRetries:    true,
		LogRateLimit:  true,
		LogCache:      true,
		LogTransforms: true,
		RequestIDGen:  generateRequestID,
	}
}

// SimpleLogger writes text records through log/slog.
type SimpleLogger struct {
	logger *slog.Logger
}

// NewSimpleLogger logs to stderr at debug level.
func NewSimpleLogger() *SimpleLogger {
	return NewSimpleLoggerTo(os.Stderr)
}

// NewSimpleLoggerTo logs to w at debug level.
func NewSimpleLoggerTo(w io.Writer) *SimpleLogger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &SimpleLogger{logger: slog.New(h).With("component", "apismith")}
}

// NewSlogLogger adapts an existing *slog.Logger.
func NewSlogLogger(l *slog.Logger) *SimpleLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SimpleLogger{logger: l}
}

func (l *SimpleLogger) Debug(msg string, keyvals ...interface{}) { l.logger.Debug(msg, keyvals...) }
func (l *SimpleLogger) Info(msg string, keyvals ...interface{})  { l.logger.Info(msg, keyvals...) }
func (l *SimpleLogger) Warn(msg string, keyvals ...interface{})  { l.logger.Warn(msg, keyvals...) }
func (l *SimpleLogger) Error(msg string, keyvals ...interface{}) { l.logger.Error(msg, keyvals...) }

func generateRequestID() string {
	return "req_" + uuid.NewString()
}

func (c *Client) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}
