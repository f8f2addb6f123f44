package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	apperrors "github.com/followread/backend/internal/errors"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to
// info rather than erroring so a bad LOG_LEVEL never stops the server.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes one JSON object per line. Entries at error level carry
// the caller and a stack trace; all entries carry the request id when
// the context has one.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	level     Level
	component string
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	Error     *errorDetails          `json:"error,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

type errorDetails struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Category   string `json:"category,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`
}

func New(output io.Writer, level Level, component string) *Logger {
	return &Logger{output: output, level: level, component: component}
}

var defaultLogger = New(os.Stdout, LevelInfo, "")

func SetDefault(l *Logger) { defaultLogger = l }

func Default() *Logger { return defaultLogger }

// WithComponent returns a logger tagging every entry with the component
// name. The output writer and level are shared with the parent.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{output: l.output, level: l.level, component: component}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelDebug, msg, nil, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelInfo, msg, nil, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelWarn, msg, nil, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.write(ctx, LevelError, msg, err, fields)
}

// Error logs through the default logger
func Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	defaultLogger.Error(ctx, msg, err, fields...)
}

func (l *Logger) write(ctx context.Context, level Level, msg string, err error, fields []map[string]interface{}) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		RequestID: apperrors.GetRequestID(ctx),
		Component: l.component,
	}
	if len(fields) > 0 {
		e.Fields = fields[0]
	}

	if level >= LevelError {
		// skip write and the public wrapper
		if _, file, line, ok := runtime.Caller(2); ok {
			e.Caller = fmt.Sprintf("%s:%d", shortPath(file), line)
		}
	}

	if err != nil {
		e.Error = &errorDetails{Message: err.Error()}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			e.Error.Code = appErr.Code
			e.Error.Category = string(appErr.Category)
		}
		if level >= LevelError {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			e.Error.StackTrace = string(buf[:n])
		}
	}

	data, _ := json.Marshal(e)

	l.mu.Lock()
	l.output.Write(data)
	l.output.Write([]byte("\n"))
	l.mu.Unlock()
}

// shortPath keeps the last two path elements of a source file
func shortPath(file string) string {
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return file
}
