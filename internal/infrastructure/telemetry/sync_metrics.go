package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records reconciliation, push and sweep measurements.
// It is the production recorder for the reconciler, the completion pusher and
// the reconcile scheduler.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	ordersTotal             *Counter
	technicianFailuresTotal *Counter
	pushesTotal             *Counter
	sweepsSkippedTotal      *Counter
	sweepFailedTenants      *Counter

	passDuration  *Histogram
	sweepDuration *Histogram
	sweepTenants  *Gauge
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// SyncDurationBuckets are bucket boundaries for reconciliation passes and sweeps (seconds).
var SyncDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	// Reconciliation counters
	sm.ordersTotal, err = NewCounter(
		cfg.Meter,
		"fieldops_reconcile_orders_total",
		"Service orders processed by reconciliation passes, by outcome",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.technicianFailuresTotal, err = NewCounter(
		cfg.Meter,
		"fieldops_reconcile_technician_failures_total",
		"Technician listings that failed during a reconciliation pass",
		"{technicians}",
	)
	if err != nil {
		return nil, err
	}

	// Outbound counters
	sm.pushesTotal, err = NewCounter(
		cfg.Meter,
		"fieldops_completion_push_total",
		"Completion pushes to the external ticketing system, by outcome",
		"{pushes}",
	)
	if err != nil {
		return nil, err
	}

	// Scheduler metrics
	sm.sweepsSkippedTotal, err = NewCounter(
		cfg.Meter,
		"fieldops_sweep_skipped_total",
		"Sweeps skipped because another sweep was running",
		"{sweeps}",
	)
	if err != nil {
		return nil, err
	}

	sm.sweepFailedTenants, err = NewCounter(
		cfg.Meter,
		"fieldops_sweep_failed_tenants_total",
		"Tenants whose reconciliation failed during a sweep",
		"{tenants}",
	)
	if err != nil {
		return nil, err
	}

	sm.sweepTenants, err = NewGauge(
		cfg.Meter,
		"fieldops_sweep_tenants",
		"Tenants visited by the most recent sweep",
		"{tenants}",
	)
	if err != nil {
		return nil, err
	}

	sm.passDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "fieldops_reconcile_pass_duration_seconds",
		Description: "Duration of one tenant reconciliation pass",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "fieldops_sweep_duration_seconds",
		Description: "Duration of a full sweep over active tenants",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Reconciliation
// =============================================================================

// RecordOrders adds n orders with the given outcome. Zero counts are dropped.
func (sm *SyncMetrics) RecordOrders(ctx context.Context, tenantID uuid.UUID, outcome string, n int) {
	if n <= 0 {
		return
	}
	sm.ordersTotal.Add(ctx, int64(n),
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
}

// RecordPassDuration records the duration of one tenant pass.
func (sm *SyncMetrics) RecordPassDuration(ctx context.Context, tenantID uuid.UUID, d time.Duration, success bool) {
	sm.passDuration.RecordDuration(ctx, d,
		AttrTenantID.String(tenantID.String()),
		AttrSuccess.Bool(success),
	)
}

// RecordTechnicianFailure counts one failed technician listing.
func (sm *SyncMetrics) RecordTechnicianFailure(ctx context.Context, tenantID uuid.UUID, kind string) {
	sm.technicianFailuresTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrErrorKind.String(kind),
	)
}

// RecordPush counts one completion push attempt.
func (sm *SyncMetrics) RecordPush(ctx context.Context, tenantID uuid.UUID, outcome string) {
	sm.pushesTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
}

// =============================================================================
// Sweeps
// =============================================================================

// RecordSweep records a finished sweep.
func (sm *SyncMetrics) RecordSweep(ctx context.Context, trigger string, d time.Duration, tenants, failedTenants int) {
	attrs := []attribute.KeyValue{AttrTrigger.String(trigger)}
	sm.sweepDuration.RecordDuration(ctx, d, attrs...)
	sm.sweepTenants.Record(ctx, int64(tenants), attrs...)
	if failedTenants > 0 {
		sm.sweepFailedTenants.Add(ctx, int64(failedTenants), attrs...)
	}
	sm.logger.Debug("Sweep recorded",
		zap.String("trigger", trigger),
		zap.Duration("duration", d),
		zap.Int("tenants", tenants),
		zap.Int("failed_tenants", failedTenants),
	)
}

// RecordSweepSkipped counts a sweep that did not run.
func (sm *SyncMetrics) RecordSweepSkipped(ctx context.Context, reason string) {
	sm.sweepsSkippedTotal.Inc(ctx, AttrReason.String(reason))
}

// =============================================================================
// Errors
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
