package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order outcomes of a reconciliation pass reported to the SyncRecorder
const (
	OrderOutcomeCreated          = "created"
	OrderOutcomeUpdated          = "updated"
	OrderOutcomeUnchanged        = "unchanged"
	OrderOutcomeSkippedCompleted = "skipped_completed"
	OrderOutcomeSkippedInvalid   = "skipped_invalid"
)

// Push outcomes reported to the SyncRecorder
const (
	PushOutcomeSuccess = "success"
	PushOutcomeFailure = "failure"
	PushOutcomeSkipped = "skipped"
)

// SyncRecorder receives reconciliation and push measurements.
// telemetry.SyncMetrics is the production implementation.
type SyncRecorder interface {
	RecordOrders(ctx context.Context, tenantID uuid.UUID, outcome string, n int)
	RecordPassDuration(ctx context.Context, tenantID uuid.UUID, d time.Duration, success bool)
	RecordTechnicianFailure(ctx context.Context, tenantID uuid.UUID, kind string)
	RecordPush(ctx context.Context, tenantID uuid.UUID, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOrders(context.Context, uuid.UUID, string, int)               {}
func (nopRecorder) RecordPassDuration(context.Context, uuid.UUID, time.Duration, bool) {}
func (nopRecorder) RecordTechnicianFailure(context.Context, uuid.UUID, string)         {}
func (nopRecorder) RecordPush(context.Context, uuid.UUID, string)                      {}
