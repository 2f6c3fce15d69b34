package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// idKey indexes the correlation IDs a context may carry. The order is the
// order fields appear in a log entry.
type idKey int

const (
	runKey idKey = iota
	stageKey
	requestKey
)

var idFields = [...]string{
	runKey:     "run.id",
	stageKey:   "run.stage",
	requestKey: "request.id",
}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ContextFields returns the trace and correlation fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	for k, name := range idFields {
		if v := idFromContext(ctx, idKey(k)); v != "" {
			fields = append(fields, zap.String(name, v))
		}
	}
	return fields
}

func checkID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("empty")
	case !utf8.ValidString(id):
		return fmt.Errorf("invalid UTF-8")
	case len(id) > maxIDLen:
		return fmt.Errorf("longer than %d bytes", maxIDLen)
	case id == "." || id == "..":
		return fmt.Errorf("%q is a path element", id)
	case !idPattern.MatchString(id):
		return fmt.Errorf("%q has characters outside [a-zA-Z0-9_.-]", id)
	}
	return nil
}

// ValidID reports whether id is accepted by WithRunID, WithStage and
// WithRequestID. Callers holding untrusted IDs check first.
func ValidID(id string) bool {
	return checkID(id) == nil
}

func withID(ctx context.Context, k idKey, id string) context.Context {
	if err := checkID(id); err != nil {
		panic(fmt.Sprintf("logging: %s: %v", idFields[k], err))
	}
	return context.WithValue(ctx, k, id)
}

func idFromContext(ctx context.Context, k idKey) string {
	s, _ := ctx.Value(k).(string)
	return s
}

// WithRunID tags ctx with a pipeline run ID. It panics on an invalid ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withID(ctx, runKey, runID)
}

// RunIDFromContext returns the run ID, or "".
func RunIDFromContext(ctx context.Context) string { return idFromContext(ctx, runKey) }

// WithStage tags ctx with the current stage name. It panics on an invalid
// name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withID(ctx, stageKey, stage)
}

// StageFromContext returns the stage name, or "".
func StageFromContext(ctx context.Context) string { return idFromContext(ctx, stageKey) }

// WithRequestID tags ctx with an HTTP request ID. It panics on an invalid
// ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withID(ctx, requestKey, requestID)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string { return idFromContext(ctx, requestKey) }

type loggerKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
