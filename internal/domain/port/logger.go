package port

// Logger is an interface for logging
type Logger interface {
	// Debug logs a debug message
	Debug(format string, args ...interface{})

	// Info logs an informational message
	Info(format string, args ...interface{})

	// Warn logs a warning message
	Warn(format string, args ...interface{})

	// Error logs an error message
	Error(format string, args ...interface{})

	// With returns a logger that attaches the given key/value pairs to every entry
	With(keysAndValues ...interface{}) Logger

	// SetLevel changes the logging level
	SetLevel(level string)

	// Close flushes and closes the logger
	Close() error
}
