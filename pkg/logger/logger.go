package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel maps a config string to a LogLevel, defaulting to INFO
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger provides structured logging without exposing tokens, credentials
// or signed URLs. Output is JSON lines on stdout.
type Logger struct {
	z         *zap.Logger
	level     zap.AtomicLevel
	component string
}

// New creates a new logger instance
func New() *Logger {
	return NewWithComponent("app")
}

// NewWithComponent creates a new logger instance with a specific component name
func NewWithComponent(component string) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), level)
	return newLogger(core, level, component)
}

// NewWithCore builds a logger on top of an existing zap core. The level
// applies in addition to whatever the core already filters.
func NewWithCore(core zapcore.Core, component string) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return newLogger(core, level, component)
}

func newLogger(core zapcore.Core, level zap.AtomicLevel, component string) *Logger {
	filtered := &levelCore{Core: core, level: level}
	z := zap.New(filtered, zap.AddCaller(), zap.AddCallerSkip(2)).With(zap.String("component", component))
	return &Logger{z: z, level: level, component: component}
}

// levelCore gates an inner core with an adjustable level
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

// Component returns a child logger sharing output and level
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		z:         l.z.With(zap.String("subcomponent", name)),
		level:     l.level,
		component: l.component,
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Level returns the current minimum log level
func (l *Logger) Level() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}, err error, operation string) {
	ce := l.z.Check(level.zapLevel(), message)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+2)
	if operation != "" {
		zf = append(zf, zap.String("operation", operation))
	}
	for k, v := range sanitizeFields(fields) {
		zf = append(zf, zap.Any(k, v))
	}
	if err != nil {
		zf = append(zf, zap.String("error", sanitizeError(err).Error()))
	}
	ce.Write(zf...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(LevelDebug, message, nil, nil, "")
}

// DebugWithFields logs a debug message with additional fields
func (l *Logger) DebugWithFields(message string, fields map[string]interface{}) {
	l.log(LevelDebug, message, fields, nil, "")
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(LevelInfo, message, nil, nil, "")
}

// InfoWithFields logs an info message with additional fields
func (l *Logger) InfoWithFields(message string, fields map[string]interface{}) {
	l.log(LevelInfo, message, fields, nil, "")
}

// InfoWithOperation logs an info message with operation context
func (l *Logger) InfoWithOperation(operation, message string) {
	l.log(LevelInfo, message, nil, nil, operation)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(LevelWarn, message, nil, nil, "")
}

// WarnWithFields logs a warning message with additional fields
func (l *Logger) WarnWithFields(message string, fields map[string]interface{}) {
	l.log(LevelWarn, message, fields, nil, "")
}

// WarnWithError logs a warning message with an error
func (l *Logger) WarnWithError(message string, err error) {
	l.log(LevelWarn, message, nil, err, "")
}

// Error logs an error message
func (l *Logger) Error(message string) {
	l.log(LevelError, message, nil, nil, "")
}

// ErrorWithFields logs an error message with additional fields
func (l *Logger) ErrorWithFields(message string, fields map[string]interface{}) {
	l.log(LevelError, message, fields, nil, "")
}

// ErrorWithError logs an error message with an error
func (l *Logger) ErrorWithError(message string, err error) {
	l.log(LevelError, message, nil, err, "")
}

// ErrorWithOperation logs an error message with operation context
func (l *Logger) ErrorWithOperation(operation, message string, err error) {
	l.log(LevelError, message, nil, err, operation)
}

// LogOperation logs the start and completion of an operation
func (l *Logger) LogOperation(operation string, fn func() error) error {
	l.log(LevelDebug, "Operation started", nil, nil, operation)

	start := time.Now()
	err := fn()
	fields := map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if err != nil {
		l.log(LevelError, "Operation failed", fields, err, operation)
	} else {
		l.log(LevelInfo, "Operation completed", fields, nil, operation)
	}
	return err
}

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
	"cookie",
	"access_key",
	"accesskey",
	"api_key",
	"presigned_url",
}

// sanitizeFields masks values whose key or content looks sensitive
func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok {
			sanitized[k] = sanitizeStringValue(str)
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// sanitizeStringValue masks potentially sensitive string values
func sanitizeStringValue(value string) string {
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer [REDACTED]"
	}
	if strings.HasPrefix(value, "AKIA") && len(value) == 20 {
		return "[AWS_ACCESS_KEY]"
	}
	if looksLikeJWT(value) {
		return "[JWT]"
	}
	if len(value) > 40 && isBase64Like(value) {
		return "[MASKED_SECRET]"
	}
	if (strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")) && strings.Contains(value, "?") {
		base, _, _ := strings.Cut(value, "?")
		return base + "?[QUERY_PARAMS_REDACTED]"
	}
	return value
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && strings.HasPrefix(s, "eyJ") && len(s) > 30
}

func isBase64Like(s string) bool {
	if len(s) < 10 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// sanitizeError removes tokens, keys and local paths from error messages
func sanitizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "AKIA") {
		msg = strings.ReplaceAll(msg, "AKIA", "[AWS_ACCESS_KEY]")
	}
	if i := strings.Index(msg, "Bearer "); i >= 0 {
		msg = msg[:i] + "Bearer [REDACTED]"
	}
	if strings.Contains(msg, "/home/") || strings.Contains(msg, `C:\Users\`) {
		msg = "Error with file operation (path redacted)"
	}
	if strings.Contains(msg, "X-Amz-Signature") || (strings.Contains(msg, "amazonaws.com") && strings.Contains(msg, "?")) {
		msg = "Object storage request error (URL details redacted)"
	}
	return fmt.Errorf("%s", msg)
}
