package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// ParseLevel converts a string to a zap level
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options controls how a Logger is built
type Options struct {
	// Level is the minimum level (debug, info, warn, error)
	Level string
	// Format is console or json
	Format string
	// File additionally writes to a rotated log file when set
	File string
}

// Logger is an implementation of port.Logger
type Logger struct {
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
	closer io.Closer
}

// NewLogger creates a new Logger instance writing to writer
func NewLogger(writer io.Writer, level string) *Logger {
	atomic := zap.NewAtomicLevelAt(ParseLevel(level))
	core := zapcore.NewCore(newEncoder("console"), zapcore.AddSync(writer), atomic)
	return &Logger{
		sugar: zap.New(core).Sugar(),
		level: atomic,
	}
}

// New builds a Logger that writes to stderr and, when configured, to a file
func New(opts Options) (*Logger, error) {
	atomic := zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	encoder := newEncoder(opts.Format)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomic),
	}

	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		closer = rotator
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(rotator), atomic))
	}

	return &Logger{
		sugar:  zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
		level:  atomic,
		closer: closer,
	}, nil
}

// NewNop returns a Logger that discards everything
func NewNop() *Logger {
	return &Logger{
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevel(),
	}
}

func newEncoder(format string) zapcore.Encoder {
	if strings.ToLower(format) == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	return zapcore.NewConsoleEncoder(cfg)
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level string) {
	l.level.SetLevel(ParseLevel(level))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying the given key/value pairs. The child
// shares the level of its parent.
func (l *Logger) With(keysAndValues ...interface{}) port.Logger {
	return &Logger{
		sugar: l.sugar.With(keysAndValues...),
		level: l.level,
	}
}

// Close flushes buffered entries and closes the log file if one is open
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Ensure Logger implements port.Logger
var _ port.Logger = (*Logger)(nil)
