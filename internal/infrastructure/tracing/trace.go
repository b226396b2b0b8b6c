package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// Propagation headers
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer records finished spans as structured log lines
type Tracer struct {
	service string
	logger  *zap.Logger
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{service: service, logger: logger}
}

// StartSpan creates a span that continues the trace found in ctx, or starts one
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.Default().GenerateWithPrefix("trace"))
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.Default().GenerateWithPrefix("span")),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
	if s.StatusCode < 500 {
		s.StatusCode = 500
	}
}

// SetStatus sets the status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit logs a finished span. Failed spans log at Warn, the rest at Debug.
func (t *Tracer) Submit(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.Int("status", span.StatusCode),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil || span.StatusCode >= 500 {
		if span.Error != nil {
			fields = append(fields, zap.Error(span.Error))
		}
		t.logger.Warn("Span failed", fields...)
		return
	}
	t.logger.Debug("Span completed", fields...)
}

// Context keys for trace propagation
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// Field returns the trace id of ctx as a log field
func Field(ctx context.Context) zap.Field {
	return zap.String("trace_id", string(GetTraceID(ctx)))
}

// withRemote seeds ctx with a trace context received from a peer
func withRemote(ctx context.Context, traceID, spanID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, TraceID(traceID))
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, SpanID(spanID))
	}
	return ctx
}
