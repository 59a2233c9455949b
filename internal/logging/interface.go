package logging

// LoggerInterface is the common interface for all loggers.
type LoggerInterface interface {
	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warn(message string, args ...interface{})
	Error(message string, args ...interface{})
	Fatal(message string, args ...interface{})

	SetLevel(level Level)
	GetLevel() Level
}

// ContextLogger extends LoggerInterface with fixed-field scoping.
type ContextLogger interface {
	LoggerInterface
	WithField(key string, value interface{}) ContextLogger
	WithFields(fields map[string]interface{}) ContextLogger
}

// Ensure our loggers implement the interfaces.
var (
	_ ContextLogger = (*Logger)(nil)
	_ ContextLogger = (*StructuredLogger)(nil)
)
