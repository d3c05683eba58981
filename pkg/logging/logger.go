package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

// String returns string representation of log level
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a configuration value such as "debug" or "WARN" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level, nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return WarnLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey struct{}

var requestIDKey = contextKey{}

// WithRequestID returns a context carrying the request id picked up by every log entry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// StructuredLogger writes one JSON document per log entry
type StructuredLogger struct {
	level    LogLevel
	output   io.Writer
	mu       sync.Mutex
	service  string
	version  string
	hostname string
	exit     func(int)
}

// LogEntry is the serialized shape of a log line
type LogEntry struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      string                 `json:"level"`
	Service    string                 `json:"service"`
	Version    string                 `json:"version"`
	Hostname   string                 `json:"hostname"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	File       string                 `json:"file,omitempty"`
	Line       int                    `json:"line,omitempty"`
	Function   string                 `json:"function,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
}

// NewStructuredLogger creates a logger writing to stdout
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	hostname, _ := os.Hostname()

	return &StructuredLogger{
		level:    level,
		output:   os.Stdout,
		service:  service,
		version:  version,
		hostname: hostname,
		exit:     os.Exit,
	}
}

// NewNopLogger returns a logger that discards everything, for tests and tools.
func NewNopLogger() *StructuredLogger {
	l := NewStructuredLogger("nop", "0", FatalLevel+1)
	l.output = io.Discard
	return l
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, DebugLevel, message, fields, nil)
}

func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, InfoLevel, message, fields, nil)
}

func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, WarnLevel, message, fields, nil)
}

// Error logs at ERROR with the caller location and the error text
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs at FATAL with a stack trace and exits the process
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, FatalLevel, message, fields, err)
	l.exit(1)
}

func (l *StructuredLogger) log(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	l.mu.Lock()
	minLevel := l.level
	l.mu.Unlock()
	if level < minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Hostname:  l.hostname,
		Message:   message,
		Fields:    fields,
		RequestID: RequestIDFromContext(ctx),
	}

	if level >= ErrorLevel {
		// skip log and the exported wrapper
		if pc, file, line, ok := runtime.Caller(2); ok {
			entry.File = file
			entry.Line = line
			if fn := runtime.FuncForPC(pc); fn != nil {
				entry.Function = fn.Name()
			}
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if level == FatalLevel {
			entry.StackTrace = captureStackTrace()
		}
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "%s [%s] %s: %v (log marshal failed: %v)\n",
			entry.Timestamp.Format(time.RFC3339), entry.Level, message, fields, marshalErr)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(append(data, '\n'))
}

func captureStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// WithFields creates a child logger that adds fields to every entry
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{
		logger: l,
		fields: fields,
	}
}

// ContextLogger wraps StructuredLogger with fixed fields
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, DebugLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, InfoLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, WarnLevel, message, c.merge(fields), nil)
}

func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.log(ctx, ErrorLevel, message, c.merge(fields), err)
}

// merge overlays call-site fields on the fixed ones
func (c *ContextLogger) merge(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
