package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Log levels accepted by Config.Level.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type traceIDKey string

// ContextKeyTraceID is the context key carrying the request/job trace id.
const ContextKeyTraceID traceIDKey = "trace_id"

// Logger is the logging surface shared by every component.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})

	DebugContext(ctx context.Context, format string, args ...interface{})
	InfoContext(ctx context.Context, format string, args ...interface{})
	WarnContext(ctx context.Context, format string, args ...interface{})
	ErrorContext(ctx context.Context, format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	GetOutput() io.Writer
}

// Config controls logger construction.
type Config struct {
	Level       string
	ServiceName string
	// FilePath enables an additional file sink when non-empty.
	FilePath      string
	ConsoleOutput bool
	JSONFormat    bool
}

// DefaultConfig returns console JSON logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:         LevelInfo,
		ServiceName:   "video-share-service",
		ConsoleOutput: true,
		JSONFormat:    true,
	}
}

type logrusLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogger builds a logrus-backed Logger.
func NewLogger(cfg Config) (Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.JSONFormat {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	var writers []io.Writer
	if cfg.ConsoleOutput {
		writers = append(writers, os.Stdout)
	}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	return &logrusLogger{
		logger: l,
		fields: logrus.Fields{"service": cfg.ServiceName},
	}, nil
}

// NewWithWriter builds a JSON logger writing to w. Used by tests and tooling.
func NewWithWriter(w io.Writer, level string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	if lv, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lv)
	}
	return &logrusLogger{logger: l, fields: logrus.Fields{}}
}

// Nop returns a Logger that drops everything.
func Nop() Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// GenerateTraceID returns a new random trace id.
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores traceID on ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, traceID)
}

// GetTraceID reads the trace id from ctx, or "".
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ContextKeyTraceID).(string); ok {
		return traceID
	}
	return ""
}

func (l *logrusLogger) contextFields(ctx context.Context) logrus.Fields {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	return fields
}

func (l *logrusLogger) GetOutput() io.Writer {
	return l.logger.Out
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &logrusLogger{logger: l.logger, fields: merged}
}

func (l *logrusLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *logrusLogger) Warn(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *logrusLogger) Fatal(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

func (l *logrusLogger) DebugContext(ctx context.Context, format string, args ...interface{}) {
	l.logger.WithFields(l.contextFields(ctx)).Debugf(format, args...)
}

func (l *logrusLogger) InfoContext(ctx context.Context, format string, args ...interface{}) {
	l.logger.WithFields(l.contextFields(ctx)).Infof(format, args...)
}

func (l *logrusLogger) WarnContext(ctx context.Context, format string, args ...interface{}) {
	l.logger.WithFields(l.contextFields(ctx)).Warnf(format, args...)
}

func (l *logrusLogger) ErrorContext(ctx context.Context, format string, args ...interface{}) {
	l.logger.WithFields(l.contextFields(ctx)).Errorf(format, args...)
}
