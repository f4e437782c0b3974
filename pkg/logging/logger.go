package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents different logging levels
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of Level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration value to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Entry represents a structured log entry
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service,omitempty"`
	Component string         `json:"component,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
}

// Logger provides structured logging capabilities
type Logger struct {
	level   Level
	format  string // "json" or "text"
	output  io.Writer
	mu      sync.RWMutex
	service string
}

// New creates a logger writing text lines at INFO to stdout
func New() *Logger {
	return &Logger{
		level:   INFO,
		format:  "text",
		output:  os.Stdout,
		service: "cantine-trainer",
	}
}

// NewFromConfig creates a logger from the level and format strings of the trainer configuration.
func NewFromConfig(level, format string, output io.Writer) *Logger {
	l := New()
	l.SetLevel(ParseLevel(level))
	l.SetFormat(format)
	if output != nil {
		l.SetOutput(output)
	}
	return l
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormat sets the logging format ("json" or "text")
func (l *Logger) SetFormat(format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = strings.ToLower(format)
}

// SetOutput sets the logging output destination
func (l *Logger) SetOutput(output io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
}

// Output returns the current destination, for callers that print raw text
// alongside log lines (the classification report).
func (l *Logger) Output() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.output
}

// Format returns "json" or "text"
func (l *Logger) Format() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Error(err))
	}
	l.log(ERROR, msg, fields...)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...Field) *FieldLogger {
	return &FieldLogger{
		logger: l,
		fields: fields,
	}
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.mu.RLock()
	if level < l.level {
		l.mu.RUnlock()
		return
	}
	format := l.format
	l.mu.RUnlock()

	entry := l.createEntry(level, msg, fields...)

	var line string
	if format == "json" {
		if b, err := json.Marshal(entry); err == nil {
			line = string(b)
		} else {
			line = fmt.Sprintf("Failed to marshal log entry: %v", err)
		}
	} else {
		line = formatText(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.output, line)
}

func (l *Logger) createEntry(level Level, msg string, fields ...Field) *Entry {
	entry := &Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Service:   l.service,
		Fields:    make(map[string]any),
	}

	if _, file, line, ok := runtime.Caller(3); ok {
		entry.File = filepath.Base(file)
		entry.Line = line
	}

	for _, field := range fields {
		field.Apply(entry)
	}

	return entry
}

// formatText renders an entry as a single line; field keys are sorted so
// output is stable between runs.
func formatText(entry *Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)

	if entry.Component != "" {
		fmt.Fprintf(&b, " component=%s", entry.Component)
	}
	if entry.RunID != "" {
		fmt.Fprintf(&b, " run_id=%s", entry.RunID)
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%q", entry.Error)
	}

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := entry.Fields[k].(type) {
		case string:
			fmt.Fprintf(&b, " %s=%s", k, v)
		case float64:
			fmt.Fprintf(&b, " %s=%.3f", k, v)
		default:
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}

	if entry.File != "" && entry.Line != 0 {
		fmt.Fprintf(&b, " (%s:%d)", entry.File, entry.Line)
	}

	return b.String()
}

// Field represents a log field
type Field interface {
	Apply(entry *Entry)
}

type stringField struct {
	key   string
	value string
}

func (f stringField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type intField struct {
	key   string
	value int
}

func (f intField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type floatField struct {
	key   string
	value float64
}

func (f floatField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type boolField struct {
	key   string
	value bool
}

func (f boolField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type errorField struct {
	err error
}

func (f errorField) Apply(entry *Entry) { entry.Error = f.err.Error() }

type componentField string

func (f componentField) Apply(entry *Entry) { entry.Component = string(f) }

type runIDField string

func (f runIDField) Apply(entry *Entry) { entry.RunID = string(f) }

// String creates a string field
func String(key, value string) Field {
	return stringField{key: key, value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return intField{key: key, value: value}
}

// Float creates a float field
func Float(key string, value float64) Field {
	return floatField{key: key, value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return boolField{key: key, value: value}
}

// Error creates an error field
func Error(err error) Field {
	return errorField{err: err}
}

// Component creates a component field
func Component(component string) Field {
	return componentField(component)
}

// RunID creates a training run id field
func RunID(id string) Field {
	return runIDField(id)
}

// FieldLogger carries a fixed set of fields into every call
type FieldLogger struct {
	logger *Logger
	fields []Field
}

func (fl *FieldLogger) merge(fields []Field) []Field {
	all := make([]Field, 0, len(fl.fields)+len(fields))
	all = append(all, fl.fields...)
	return append(all, fields...)
}

// Debug logs a debug message with fields
func (fl *FieldLogger) Debug(msg string, fields ...Field) {
	fl.logger.log(DEBUG, msg, fl.merge(fields)...)
}

// Info logs an info message with fields
func (fl *FieldLogger) Info(msg string, fields ...Field) {
	fl.logger.log(INFO, msg, fl.merge(fields)...)
}

// Warn logs a warning message with fields
func (fl *FieldLogger) Warn(msg string, fields ...Field) {
	fl.logger.log(WARN, msg, fl.merge(fields)...)
}

// Error logs an error message with fields
func (fl *FieldLogger) Error(msg string, err error, fields ...Field) {
	all := fl.merge(fields)
	if err != nil {
		all = append(all, Error(err))
	}
	fl.logger.log(ERROR, msg, all...)
}

// WithFields returns a child logger carrying both field sets
func (fl *FieldLogger) WithFields(fields ...Field) *FieldLogger {
	return &FieldLogger{logger: fl.logger, fields: fl.merge(fields)}
}

// Output returns the underlying destination
func (fl *FieldLogger) Output() io.Writer {
	return fl.logger.Output()
}

// Format returns the underlying format
func (fl *FieldLogger) Format() string {
	return fl.logger.Format()
}

// Interface is the subset of logging used by library packages, satisfied by
// both *Logger and *FieldLogger.
type Interface interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
}

var (
	_ Interface = (*Logger)(nil)
	_ Interface = (*FieldLogger)(nil)
)
