package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	tenantIDKey
	sweepIDKey
)

// correlation lists the context values Enrich copies onto a logger
var correlation = []struct {
	key   ctxKey
	field string
}{
	{requestIDKey, "request_id"},
	{tenantIDKey, "tenant_id"},
	{sweepIDKey, "sweep_id"},
}

// WithContext stores log on ctx
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored on ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

func withValue(ctx context.Context, log *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	log = log.With(zap.String(field, value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, log), log
}

// WithRequestID records the request ID on ctx and on the returned logger
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withValue(ctx, log, requestIDKey, "request_id", requestID)
}

// WithTenantID records the tenant on ctx and on the returned logger
func WithTenantID(ctx context.Context, log *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	return withValue(ctx, log, tenantIDKey, "tenant_id", tenantID)
}

// WithSweepID tags a reconcile sweep so every tenant pass it runs logs the same ID
func WithSweepID(ctx context.Context, log *zap.Logger, sweepID string) (context.Context, *zap.Logger) {
	return withValue(ctx, log, sweepIDKey, "sweep_id", sweepID)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// GetRequestID returns the request ID stored by WithRequestID
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// GetTenantID returns the tenant stored by WithTenantID
func GetTenantID(ctx context.Context) string { return stringValue(ctx, tenantIDKey) }

// GetSweepID returns the sweep stored by WithSweepID
func GetSweepID(ctx context.Context) string { return stringValue(ctx, sweepIDKey) }

// GetTraceID returns the hex trace ID of the active span, if any
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the hex span ID of the active span, if any
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

// WithTraceContext adds trace_id and span_id when ctx carries a valid span
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// Enrich returns log with trace IDs and any correlation values found on ctx.
// A nil log is replaced by a no-op logger.
func Enrich(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	log = WithTraceContext(ctx, log)
	for _, c := range correlation {
		if v := stringValue(ctx, c.key); v != "" {
			log = log.With(zap.String(c.field, v))
		}
	}
	return log
}
