package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel controls which messages are written to the log file.
type LogLevel int

// Log levels, from most to least verbose.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the short label used in log lines.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu       sync.Mutex
	file     *os.File
	minLevel LogLevel
)

// Init opens the log file at path and starts accepting messages at or above
// level. The parent directory is created if needed. Before Init (or after
// Close) all logging calls are no-ops, so packages can log unconditionally.
func Init(path string, level LogLevel) error {
	mu.Lock()
	defer mu.Unlock()
	return initLocked(path, level)
}

// Reinit closes the current log file and reopens logging with the new
// settings. Used when the configuration changes at runtime.
func Reinit(path string, level LogLevel) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	return initLocked(path, level)
}

func initLocked(path string, level LogLevel) error {
	if path == "" {
		minLevel = level
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	file = f
	minLevel = level
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// Debug logs a debug-level message.
func Debug(format string, args ...interface{}) {
	write(LevelDebug, format, args...)
}

// Info logs an info-level message.
func Info(format string, args ...interface{}) {
	write(LevelInfo, format, args...)
}

// Warning logs a warning-level message.
func Warning(format string, args ...interface{}) {
	write(LevelWarning, format, args...)
}

// Error logs an error-level message.
func Error(format string, args ...interface{}) {
	write(LevelError, format, args...)
}

// ErrorWithErr logs an error-level message with the error appended.
func ErrorWithErr(err error, format string, args ...interface{}) {
	write(LevelError, format+" error=%v", append(args, err)...)
}

func write(level LogLevel, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if file == nil || level < minLevel {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(file, "%s [%s] %s\n", timestamp, level, fmt.Sprintf(format, args...))
}
