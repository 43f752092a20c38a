package integration

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PushResult reports the outcome of an outbound completion push.
// It is informational; the local completion stands regardless.
type PushResult struct {
	Skipped bool   `json:"skipped"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Outcome returns the recorder outcome label of the result
func (r PushResult) Outcome() string {
	switch {
	case r.Skipped:
		return PushOutcomeSkipped
	case r.Success:
		return PushOutcomeSuccess
	default:
		return PushOutcomeFailure
	}
}

// CompletionPusher mirrors local completions of external orders back to the
// external system. Only the order's sync bookkeeping is ever written.
type CompletionPusher struct {
	orders   fieldservice.ServiceOrderRepository
	configs  fieldservice.IntegrationConfigRepository
	mappings fieldservice.TechnicianMappingRepository
	clients  integration.ClientFactory
	recorder SyncRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewCompletionPusher creates a CompletionPusher
func NewCompletionPusher(
	orders fieldservice.ServiceOrderRepository,
	configs fieldservice.IntegrationConfigRepository,
	mappings fieldservice.TechnicianMappingRepository,
	clients integration.ClientFactory,
	recorder SyncRecorder,
	logger *zap.Logger,
) *CompletionPusher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionPusher{
		orders:   orders,
		configs:  configs,
		mappings: mappings,
		clients:  clients,
		recorder: recorder,
		logger:   logger.Named("completion_pusher"),
		now:      time.Now,
	}
}

// Push sends the completion of order to the external system and records the
// outcome on the order.
func (p *CompletionPusher) Push(ctx context.Context, order *fieldservice.ServiceOrder, note, materials string) PushResult {
	if !order.IsExternal() {
		return PushResult{Skipped: true}
	}

	ctx, span := telemetry.StartSpan(ctx, "completion_pusher.push",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, order.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, order.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExternalID, order.ExternalIDValue()),
	)
	defer span.End()

	log := p.logger.With(
		zap.String("tenant_id", order.TenantID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("external_id", order.ExternalIDValue()),
	)

	result := p.push(ctx, order, note, materials, log)
	telemetry.SetAttribute(span, telemetry.SpanAttrPushOutcome, result.Outcome())
	if result.Success {
		telemetry.SetOK(span)
	} else {
		telemetry.RecordError(span, errors.New(result.Error))
	}
	p.recorder.RecordPush(ctx, order.TenantID, result.Outcome())
	return result
}

func (p *CompletionPusher) push(ctx context.Context, order *fieldservice.ServiceOrder, note, materials string, log *zap.Logger) PushResult {
	mapping, err := p.mappings.FindByTechnician(ctx, order.TenantID, order.TechnicianID)
	if errors.Is(err, fieldservice.ErrMappingMissing) {
		return p.fail(ctx, order, fieldservice.SyncErrorMappingMissing, log)
	}
	if err != nil {
		return p.fail(ctx, order, err.Error(), log)
	}

	cfg, err := p.configs.FindByTenant(ctx, order.TenantID)
	if errors.Is(err, fieldservice.ErrConfigMissing) || (err == nil && !cfg.IsUsable()) {
		return p.fail(ctx, order, fieldservice.SyncErrorConfigMissing, log)
	}
	if err != nil {
		return p.fail(ctx, order, err.Error(), log)
	}

	client, err := p.clients.ForConfig(cfg)
	if err != nil {
		return p.fail(ctx, order, err.Error(), log)
	}

	completedAt := p.now()
	if order.CompletedAt != nil {
		completedAt = *order.CompletedAt
	}
	err = client.PushCompletion(ctx, integration.CompletionPush{
		TicketID:             order.ExternalIDValue(),
		TechnicianExternalID: mapping.ExternalTechnicianID,
		Note:                 note,
		MaterialsUsed:        materials,
		CompletedAt:          completedAt,
	})
	if err != nil {
		return p.fail(ctx, order, err.Error(), log)
	}

	order.MarkSynchronized(p.now())
	if err := p.orders.UpdateSyncState(ctx, order); err != nil {
		log.Error("Failed to record successful push", zap.Error(err))
	}
	log.Info("Completion pushed to external system")
	return PushResult{Success: true}
}

func (p *CompletionPusher) fail(ctx context.Context, order *fieldservice.ServiceOrder, msg string, log *zap.Logger) PushResult {
	order.RecordSyncFailure(msg)
	if err := p.orders.UpdateSyncState(ctx, order); err != nil {
		log.Error("Failed to record push failure", zap.String("sync_error", msg), zap.Error(err))
	}
	log.Warn("Completion push failed", zap.String("sync_error", msg), zap.Int("sync_attempts", order.SyncAttempts))
	return PushResult{Error: msg}
}
