// Package telemetry wires OpenTelemetry tracing, metrics and log export for the
// reconciliation service.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource
const ServiceVersion = "1.0.0"

// ShutdownTimeout bounds how long a provider may spend flushing on shutdown
const ShutdownTimeout = 10 * time.Second

// ExporterConfig is the OTLP collector connection shared by every signal
type ExporterConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// lifecycle is embedded by each signal provider. A nil shutdown means the
// signal is disabled and the global no-op implementation stays installed.
type lifecycle struct {
	signal   string
	log      *zap.Logger
	shutdown func(context.Context) error
	flush    func(context.Context) error
}

func (l *lifecycle) start(signal string, log *zap.Logger, shutdown, flush func(context.Context) error) {
	l.signal, l.log, l.shutdown, l.flush = signal, log, shutdown, flush
}

// IsEnabled reports whether the signal is exported
func (l *lifecycle) IsEnabled() bool {
	return l.shutdown != nil
}

// ForceFlush exports everything buffered so far; a no-op when disabled
func (l *lifecycle) ForceFlush(ctx context.Context) error {
	if l.flush == nil {
		return nil
	}
	return l.flush(ctx)
}

// Shutdown flushes and stops the exporter within ShutdownTimeout. Calling it
// on a disabled provider, or twice, is harmless.
func (l *lifecycle) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}
	stop := l.shutdown
	l.shutdown, l.flush = nil, nil

	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		return fmt.Errorf("shutdown %s provider: %w", l.signal, err)
	}
	l.log.Info("OpenTelemetry provider stopped", zap.String("signal", l.signal))
	return nil
}

// newResource describes this service to every exporter
func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	return res, nil
}
