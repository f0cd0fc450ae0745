package engram

import (
	"context"

	"github.com/sirupsen/logrus"
)

// contextKey namespaces values stored on a context.Context.
type contextKey string

// TraceIDKey is the context key under which a request/event trace id is
// stored, mirrored into every log line emitted through that context.
const TraceIDKey contextKey = "trace_id"

// Logger wraps logrus with a fixed service name and trace-id propagation,
// in the shape of a Logger{*logrus.Logger, service string} wrapper.
type Logger struct {
	*logrus.Logger
	service string
}

// NewLogger constructs a Logger for service, at the given level
// ("debug"|"info"|"warn"|"error") and format ("json"|"text").
func NewLogger(service, level, format string) *Logger {
	l := logrus.New()
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Logger{Logger: l, service: service}
}

// WithContext returns a log entry pre-populated with the service name and,
// if present, the context's trace id.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithField("service", l.service)
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// ContextWithTraceID returns a child context carrying traceID for later
// retrieval by WithContext.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
