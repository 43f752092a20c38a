package fieldservice

import (
	"context"
	"time"

	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSyncFailureLimit caps the operator worklist when no limit is given
const DefaultSyncFailureLimit = 100

// CompletionPusher mirrors a local completion to the external system
type CompletionPusher interface {
	Push(ctx context.Context, order *fieldservice.ServiceOrder, note, materials string) appintegration.PushResult
}

// ServiceOrderService handles service order operations exposed to technicians
// and operators
type ServiceOrderService struct {
	orders fieldservice.ServiceOrderRepository
	pusher CompletionPusher
	logger *zap.Logger
	now    func() time.Time
}

// NewServiceOrderService creates a new ServiceOrderService
func NewServiceOrderService(orders fieldservice.ServiceOrderRepository, pusher CompletionPusher, logger *zap.Logger) *ServiceOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceOrderService{
		orders: orders,
		pusher: pusher,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrder returns a single order of the tenant
func (s *ServiceOrderService) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*ServiceOrderResponse, error) {
	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToServiceOrderResponse(order)
	return &resp, nil
}

// CompleteOrder closes the order locally and then mirrors the completion to
// the external system. The local completion is committed before the push and
// is never rolled back by a push failure.
func (s *ServiceOrderService) CompleteOrder(ctx context.Context, tenantID, orderID uuid.UUID, input CompleteOrderInput) (*CompleteOrderResponse, error) {
	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Complete(input.Note, input.MaterialsUsed, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	logger.Enrich(ctx, s.logger).Info("Service order completed",
		zap.String("order_id", order.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("external", order.IsExternal()),
	)

	result := s.push(ctx, order)
	return &CompleteOrderResponse{
		Order: ToServiceOrderResponse(order),
		Push:  result,
	}, nil
}

// RetrySync re-runs the outbound push for a completed external order
func (s *ServiceOrderService) RetrySync(ctx context.Context, tenantID, orderID uuid.UUID) (*CompleteOrderResponse, error) {
	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsExternal() {
		return nil, fieldservice.ErrNotExternalOrder
	}
	if !order.IsCompleted() {
		return nil, fieldservice.ErrOrderNotCompleted
	}

	result := s.push(ctx, order)
	return &CompleteOrderResponse{
		Order: ToServiceOrderResponse(order),
		Push:  result,
	}, nil
}

// ListSyncFailures returns the orders whose last push failed, oldest first
func (s *ServiceOrderService) ListSyncFailures(ctx context.Context, tenantID uuid.UUID, limit int) ([]ServiceOrderResponse, error) {
	if limit <= 0 {
		limit = DefaultSyncFailureLimit
	}
	orders, err := s.orders.ListSyncFailures(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return ToServiceOrderResponses(orders), nil
}

func (s *ServiceOrderService) push(ctx context.Context, order *fieldservice.ServiceOrder) PushSummary {
	if s.pusher == nil {
		return PushSummary{Skipped: true}
	}
	r := s.pusher.Push(ctx, order, order.CompletionNote, order.MaterialsUsed)
	return PushSummary{Skipped: r.Skipped, Success: r.Success, Error: r.Error}
}
