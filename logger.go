package main

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel is the verbosity threshold for LeveledLogger, ordered least to
// most verbose so a filter check is a single integer comparison.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel maps the CLI's --log-level spelling (spec.md §6) onto a
// LogLevel. WARNING is accepted as a synonym for the internal Warn level.
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO":
		return LogLevelInfo, nil
	case "WARNING", "WARN":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want DEBUG, INFO, WARNING, or ERROR)", s)
	}
}

// LeveledLogger wraps a standard logger with log level filtering. Built the
// way the teacher's service wraps *log.Logger for its own diagnostics,
// generalized to optionally duplicate output to a log file via
// io.MultiWriter instead of a single stderr/stdout sink.
type LeveledLogger struct {
	logger   *log.Logger
	logLevel LogLevel
}

// NewLeveledLogger creates a leveled logger writing to stderr and, when
// logFilePath is non-empty, additionally appending to that file.
func NewLeveledLogger(level LogLevel, logFilePath string) (*LeveledLogger, error) {
	writer := io.Writer(os.Stderr)

	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %q: %w", logFilePath, err)
		}
		writer = io.MultiWriter(os.Stderr, f)
	}

	flags := log.LstdFlags
	if os.Getenv("INVOCATION_ID") != "" {
		flags = 0
	}

	return &LeveledLogger{
		logger:   log.New(writer, "", flags),
		logLevel: level,
	}, nil
}

// Debug logs a message at DEBUG level.
func (l *LeveledLogger) Debug(format string, v ...interface{}) {
	if l.logLevel >= LogLevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs a message at INFO level.
func (l *LeveledLogger) Info(format string, v ...interface{}) {
	if l.logLevel >= LogLevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs a message at WARN level.
func (l *LeveledLogger) Warn(format string, v ...interface{}) {
	if l.logLevel >= LogLevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs a message at ERROR level.
func (l *LeveledLogger) Error(format string, v ...interface{}) {
	if l.logLevel >= LogLevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// Printf provides compatibility with the plain *log.Logger callers expect
// (canbus.Logger / obd.Logger) — logs at INFO level.
func (l *LeveledLogger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

// Fatalf logs unconditionally and exits, for startup failures (spec.md §7
// item 4).
func (l *LeveledLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf("[FATAL] "+format, v...)
}

// DebugCAN hex-dumps a CAN frame at DEBUG level only, matching the
// teacher's DebugCAN helper.
func (l *LeveledLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {
	if l.logLevel >= LogLevelDebug {
		dataStr := ""
		for i := uint8(0); i < length && i < 8; i++ {
			dataStr += fmt.Sprintf("%02X ", data[i])
		}
		l.logger.Printf("[DEBUG] CAN %s: ID=0x%03X Len=%d Data=[%s]", direction, id, length, dataStr)
	}
}

// Ensure LeveledLogger satisfies the canbus.Logger and obd.Logger
// interfaces at compile time.
var _ interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Error(format string, v ...interface{})
} = (*LeveledLogger)(nil)
