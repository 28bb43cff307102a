package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger wraps zap.Logger to provide a consistent interface
type Logger struct {
	zap   *zap.Logger
	level LogLevel
}

// NewLogger creates a new Zap-based logger
func NewLogger(level LogLevel, component string) *Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(logLevelToZap(level))
	config.Development = false
	config.Encoding = "json"

	config.InitialFields = map[string]interface{}{
		"component": component,
		"service":   "hookbot",
	}

	zapLogger, err := config.Build()
	if err != nil {
		// Fallback to development logger if production config fails
		zapLogger, _ = zap.NewDevelopment()
	}

	return &Logger{
		zap:   zapLogger,
		level: level,
	}
}

// NewFromZap wraps an existing zap logger, such as one on a zaptest/observer core
func NewFromZap(z *zap.Logger, level LogLevel) *Logger {
	return &Logger{zap: z, level: level}
}

// GetLogLevel parses a log level string
func GetLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func logLevelToZap(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// splitArgs separates structured zap fields from printf arguments so both
// styles can be mixed in a single call.
func splitArgs(args []interface{}) ([]zap.Field, []interface{}) {
	var fields []zap.Field
	var rest []interface{}
	for _, arg := range args {
		if f, ok := arg.(zap.Field); ok {
			fields = append(fields, f)
			continue
		}
		rest = append(rest, arg)
	}
	return fields, rest
}

func (l *Logger) log(level zapcore.Level, message string, args []interface{}) {
	fields, rest := splitArgs(args)
	z := l.zap
	if len(fields) > 0 {
		z = z.With(fields...)
	}
	if len(rest) == 0 {
		if ce := z.Check(level, message); ce != nil {
			ce.Write()
		}
		return
	}
	z.Sugar().Logf(level, message, rest...)
}

// Debug logs debug messages
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(zapcore.DebugLevel, message, args)
}

// Info logs info messages
func (l *Logger) Info(message string, args ...interface{}) {
	l.log(zapcore.InfoLevel, message, args)
}

// Warn logs warning messages
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(zapcore.WarnLevel, message, args)
}

// Error logs error messages
func (l *Logger) Error(message string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, message, args)
}

// Room-scoped helpers keep the delivery target on every line
func (l *Logger) RoomInfo(roomID, message string, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.String("room_id", roomID)}, fields...)
	l.zap.Info(message, allFields...)
}

func (l *Logger) RoomWarn(roomID, message string, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.String("room_id", roomID)}, fields...)
	l.zap.Warn(message, allFields...)
}

func (l *Logger) RoomError(roomID, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("room_id", roomID),
		zap.Error(err),
	}, fields...)
	l.zap.Error(message, allFields...)
}

// EventError logs with the GitLab hook name attached
func (l *Logger) EventError(eventType, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event_type", eventType),
		zap.Error(err),
	}, fields...)
	l.zap.Error(message, allFields...)
}

// Zap exposes the underlying logger for libraries that want one
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.zap.Sync()
}

// Global logger instance
var defaultLogger *Logger

// InitLogger initializes the global logger
func InitLogger(level string, component string) {
	logLevel := GetLogLevel(level)
	defaultLogger = NewLogger(logLevel, component)
}

// SetLogger replaces the global logger
func SetLogger(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func Debug(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(message, args...)
	}
}

func Info(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(message, args...)
	}
}

func Warn(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(message, args...)
	}
}

func Error(message string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(message, args...)
	}
}

func RoomInfo(roomID, message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.RoomInfo(roomID, message, fields...)
	}
}

func RoomWarn(roomID, message string, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.RoomWarn(roomID, message, fields...)
	}
}

func RoomError(roomID, message string, err error, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.RoomError(roomID, message, err, fields...)
	}
}

func EventError(eventType, message string, err error, fields ...zap.Field) {
	if defaultLogger != nil {
		defaultLogger.EventError(eventType, message, err, fields...)
	}
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	return defaultLogger
}

func init() {
	if defaultLogger == nil {
		level := os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}
		InitLogger(level, "HOOKBOT")
	}
}
