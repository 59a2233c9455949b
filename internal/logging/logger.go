package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is a log severity level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func levelToString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled text logger over the standard library logger.
type Logger struct {
	logger *log.Logger
	level  Level
	mu     sync.RWMutex
	fields map[string]interface{}
}

// NewLogger creates a text logger writing to stderr.
func NewLogger(prefix string, level string) *Logger {
	return NewLoggerWithWriter(os.Stderr, prefix, level)
}

// NewLoggerWithWriter creates a text logger writing to w.
func NewLoggerWithWriter(w io.Writer, prefix string, level string) *Logger {
	return &Logger{
		logger: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
		level:  parseLevel(level),
		fields: make(map[string]interface{}),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) shouldLog(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

// log renders the message plus any key-value args and fixed fields.
func (l *Logger) log(level Level, message string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	var sb strings.Builder
	sb.WriteString("[" + levelToString(level) + "] ")
	sb.WriteString(message)

	l.mu.RLock()
	for k, v := range l.fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	l.mu.RUnlock()

	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			sb.WriteString(fmt.Sprintf(" %s=%v", key, args[i+1]))
		}
	}
	if len(args)%2 == 1 {
		sb.WriteString(fmt.Sprintf(" extra=%v", args[len(args)-1]))
	}

	l.logger.Print(sb.String())
}

func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(DebugLevel, message, args...)
}

func (l *Logger) Info(message string, args ...interface{}) {
	l.log(InfoLevel, message, args...)
}

func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(WarnLevel, message, args...)
}

func (l *Logger) Error(message string, args ...interface{}) {
	l.log(ErrorLevel, message, args...)
}

func (l *Logger) Fatal(message string, args ...interface{}) {
	l.log(ErrorLevel, message, args...)
	os.Exit(1)
}

// WithField returns a logger that includes key=value on every line.
func (l *Logger) WithField(key string, value interface{}) ContextLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &Logger{
		logger: l.logger,
		level:  l.level,
		fields: fields,
	}
}

// WithFields returns a logger that includes all given fields on every line.
func (l *Logger) WithFields(fields map[string]interface{}) ContextLogger {
	logger := ContextLogger(l)
	for k, v := range fields {
		logger = logger.WithField(k, v)
	}
	return logger
}
