package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level represents the severity of a log message
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

var levelColors = [...]string{
	"\033[36m", // Cyan
	"\033[32m", // Green
	"\033[33m", // Yellow
	"\033[31m", // Red
	"",
}

const resetColor = "\033[0m"

// Logger provides leveled logging with per-module tags
type Logger struct {
	mu       sync.Mutex
	level    Level
	useColor bool
	out      *log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the global logger (call once at startup)
func Init(level Level, output io.Writer, useColor bool) {
	once.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a new Logger instance
func New(level Level, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		level:    level,
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) log(level Level, module string, format string, args ...interface{}) {
	l.mu.Lock()
	current := l.level
	l.mu.Unlock()

	if level < current || level >= SILENT {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if l.useColor {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, module)
	}

	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(module string, format string, args ...interface{}) {
	l.log(DEBUG, module, format, args...)
}

// Info logs an info message
func (l *Logger) Info(module string, format string, args ...interface{}) {
	l.log(INFO, module, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(module string, format string, args ...interface{}) {
	l.log(WARN, module, format, args...)
}

// Error logs an error message
func (l *Logger) Error(module string, format string, args ...interface{}) {
	l.log(ERROR, module, format, args...)
}

// Global logger functions (use default logger)

// Debug logs a debug message using the global logger
func Debug(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(module, format, args...)
	}
}

// Info logs an info message using the global logger
func Info(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(module, format, args...)
	}
}

// Warn logs a warning message using the global logger
func Warn(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(module, format, args...)
	}
}

// Error logs an error message using the global logger
func Error(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(module, format, args...)
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

// String returns the string representation of a log level
func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}
