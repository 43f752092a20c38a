package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reasons a pass did nothing
const (
	NoOpNotConfigured = "integration_not_configured"
	NoOpInactive      = "integration_inactive"
	NoOpNoMappings    = "no_technician_mappings"
)

// DefaultTechnicianConcurrency bounds concurrent technician fetches of a pass
const DefaultTechnicianConcurrency = 4

// PassCounts are the per-order outcomes of a pass
type PassCounts struct {
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	Unchanged        int `json:"unchanged"`
	SkippedCompleted int `json:"skipped_completed"`
	SkippedInvalid   int `json:"skipped_invalid"`
}

// Add accumulates o into c
func (c *PassCounts) Add(o PassCounts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Unchanged += o.Unchanged
	c.SkippedCompleted += o.SkippedCompleted
	c.SkippedInvalid += o.SkippedInvalid
}

// PassResult summarizes one reconciliation pass for a tenant
type PassResult struct {
	TenantID uuid.UUID `json:"tenant_id"`
	PassCounts
	Technicians       int `json:"technicians"`
	FailedTechnicians int `json:"failed_technicians"`
	// LastSyncStamped is true when every technician succeeded and LastSyncAt was written
	LastSyncStamped bool `json:"last_sync_stamped"`
	// NoOpReason is set when the pass did not contact the external system
	NoOpReason string        `json:"no_op_reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded reports whether every technician was reconciled
func (r *PassResult) Succeeded() bool {
	return r.FailedTechnicians == 0
}

// ReconcilerConfig configures a Reconciler
type ReconcilerConfig struct {
	// TechnicianConcurrency bounds concurrent technician fetches. Zero uses the default.
	TechnicianConcurrency int
	// FetchCustomers enriches tickets with the external customer record
	FetchCustomers bool
}

// Reconciler pulls a tenant's open external tickets and converges the local
// service orders onto them. Completed local orders are never modified.
type Reconciler struct {
	configs  fieldservice.IntegrationConfigRepository
	mappings fieldservice.TechnicianMappingRepository
	clients  integration.ClientFactory
	txScope  TransactionScope
	recorder SyncRecorder
	logger   *zap.Logger
	cfg      ReconcilerConfig
	now      func() time.Time
}

// ReconcilerOption configures optional Reconciler collaborators
type ReconcilerOption func(*Reconciler)

// WithSyncRecorder sets the metrics recorder
func WithSyncRecorder(rec SyncRecorder) ReconcilerOption {
	return func(r *Reconciler) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a Reconciler
func NewReconciler(
	configs fieldservice.IntegrationConfigRepository,
	mappings fieldservice.TechnicianMappingRepository,
	clients integration.ClientFactory,
	txScope TransactionScope,
	cfg ReconcilerConfig,
	logger *zap.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	if cfg.TechnicianConcurrency <= 0 {
		cfg.TechnicianConcurrency = DefaultTechnicianConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		configs:  configs,
		mappings: mappings,
		clients:  clients,
		txScope:  txScope,
		recorder: nopRecorder{},
		logger:   logger.Named("reconciler"),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// technicianFetch is the outcome of the fetch phase for one technician
type technicianFetch struct {
	mapping   fieldservice.TechnicianMapping
	tickets   []integration.ExternalTicket
	customers map[string]*integration.ExternalCustomer
	err       error
	// truncated is set when only part of the technician's tickets were listed
	truncated error
}

// ReconcileTenant runs one pass for a tenant. Per-technician failures are
// isolated and reported in the result; the returned error is reserved for
// failures that abort the whole pass.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID uuid.UUID) (*PassResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciler.reconcile_tenant",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()

	result := &PassResult{TenantID: tenantID, StartedAt: r.now()}
	log := r.logger.With(zap.String("tenant_id", tenantID.String()))

	cfg, err := r.configs.FindByTenant(ctx, tenantID)
	if errors.Is(err, fieldservice.ErrConfigMissing) {
		result.NoOpReason = NoOpNotConfigured
		log.Debug("Tenant has no integration config, skipping")
		return r.finish(ctx, result), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load integration config: %w", err)
	}
	if !cfg.IsUsable() {
		result.NoOpReason = NoOpInactive
		log.Debug("Tenant integration inactive, skipping")
		return r.finish(ctx, result), nil
	}

	mappings, err := r.mappings.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load technician mappings: %w", err)
	}
	if len(mappings) == 0 {
		result.NoOpReason = NoOpNoMappings
		log.Info("No technician mappings for tenant, nothing to reconcile")
		return r.finish(ctx, result), nil
	}
	result.Technicians = len(mappings)
	telemetry.SetAttribute(span, telemetry.SpanAttrTechnicianCount, len(mappings))

	client, err := r.clients.ForConfig(cfg)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("build ticketing client: %w", err)
	}

	fetches := r.fetch(ctx, client, mappings)
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// A deadline that expired mid-fetch only fails the technicians still
	// waiting on the ETS; the tickets already fetched are written.
	applyCtx := ctx
	if ctx.Err() != nil {
		applyCtx = context.WithoutCancel(ctx)
	}
	if err := r.apply(applyCtx, tenantID, fetches, result, log); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("apply reconciliation: %w", err)
	}

	r.finish(ctx, result)
	telemetry.SetAttribute(span, telemetry.SpanAttrCreated, result.Created)
	telemetry.SetAttribute(span, telemetry.SpanAttrUpdated, result.Updated)
	log.Info("Reconciliation pass finished",
		zap.Int("technicians", result.Technicians),
		zap.Int("failed_technicians", result.FailedTechnicians),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped_completed", result.SkippedCompleted),
		zap.Duration("duration", result.Duration),
	)
	telemetry.SetOK(span)
	return result, nil
}

// fetch lists every technician's tickets concurrently. It never holds a
// database transaction.
func (r *Reconciler) fetch(ctx context.Context, client integration.TicketingSystem, mappings []fieldservice.TechnicianMapping) []technicianFetch {
	fetches := make([]technicianFetch, len(mappings))
	customers := newCustomerCache(client)

	var g errgroup.Group
	g.SetLimit(r.cfg.TechnicianConcurrency)
	for i, m := range mappings {
		fetches[i].mapping = m
		g.Go(func() error {
			tickets, err := client.ListTicketsForTechnician(ctx, m.ExternalTechnicianID)
			switch {
			case errors.Is(err, integration.ErrListingTruncated):
				fetches[i].truncated = err
			case err != nil:
				fetches[i].err = err
				return nil
			}
			fetches[i].tickets = tickets
			if r.cfg.FetchCustomers {
				fetches[i].customers = customers.lookupAll(ctx, tickets)
			}
			return nil
		})
	}
	_ = g.Wait()
	return fetches
}

// apply writes the fetched tickets inside one tenant transaction, each
// technician in its own savepoint.
func (r *Reconciler) apply(ctx context.Context, tenantID uuid.UUID, fetches []technicianFetch, result *PassResult, log *zap.Logger) error {
	return r.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, f := range fetches {
			techLog := log.With(
				zap.Int64("technician_id", f.mapping.TechnicianID),
				zap.String("external_technician_id", f.mapping.ExternalTechnicianID),
			)
			if f.err != nil {
				r.technicianFailed(ctx, tenantID, result, f.err, techLog, "Fetching technician tickets failed")
				continue
			}

			var counts PassCounts
			err := repos.Savepoint(func(sp TransactionalRepositories) error {
				counts = PassCounts{}
				return r.applyTickets(ctx, sp.ServiceOrders(), tenantID, f, &counts, techLog)
			})
			if err != nil {
				r.technicianFailed(ctx, tenantID, result, err, techLog, "Applying technician tickets failed")
				continue
			}
			result.Add(counts)
			if f.truncated != nil {
				r.technicianFailed(ctx, tenantID, result, f.truncated, techLog, "Technician listing truncated, pass incomplete")
			}
		}

		if !result.Succeeded() {
			log.Warn("Pass incomplete, last sync time not updated",
				zap.Int("failed_technicians", result.FailedTechnicians))
			return nil
		}
		if err := repos.IntegrationConfigs().UpdateLastSyncAt(ctx, tenantID, r.now()); err != nil {
			return fmt.Errorf("stamp last sync: %w", err)
		}
		result.LastSyncStamped = true
		return nil
	})
}

func (r *Reconciler) applyTickets(ctx context.Context, orders fieldservice.ServiceOrderRepository, tenantID uuid.UUID, f technicianFetch, counts *PassCounts, log *zap.Logger) error {
	for _, ticket := range f.tickets {
		draft := ToLocalRecord(ticket, f.customers[ticket.CustomerExternalID], tenantID, f.mapping.TechnicianID)
		if err := draft.Validate(); err != nil {
			counts.SkippedInvalid++
			log.Warn("Skipping invalid external ticket", zap.String("external_id", ticket.ID), zap.Error(err))
			continue
		}

		existing, err := orders.FindByExternalID(ctx, tenantID, draft.ExternalID)
		switch {
		case errors.Is(err, fieldservice.ErrServiceOrderNotFound):
			order, err := fieldservice.NewServiceOrderFromDraft(draft)
			if err != nil {
				return err
			}
			if err := orders.Create(ctx, order); err != nil {
				return fmt.Errorf("create order for ticket %s: %w", draft.ExternalID, err)
			}
			counts.Created++
		case err != nil:
			return fmt.Errorf("find order for ticket %s: %w", draft.ExternalID, err)
		case existing.IsCompleted():
			counts.SkippedCompleted++
		default:
			changed, err := existing.ApplyExternalUpdate(draft)
			if err != nil {
				return err
			}
			if !changed {
				counts.Unchanged++
				continue
			}
			if err := orders.Save(ctx, existing); err != nil {
				return fmt.Errorf("update order for ticket %s: %w", draft.ExternalID, err)
			}
			counts.Updated++
		}
	}
	return nil
}

func (r *Reconciler) technicianFailed(ctx context.Context, tenantID uuid.UUID, result *PassResult, err error, log *zap.Logger, msg string) {
	result.FailedTechnicians++
	kind := "internal"
	if k, ok := integration.KindOf(err); ok {
		kind = string(k)
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = string(integration.ErrorKindTimeout)
	} else if errors.Is(err, integration.ErrListingTruncated) {
		kind = "truncated"
	}
	r.recorder.RecordTechnicianFailure(ctx, tenantID, kind)
	log.Warn(msg, zap.String("error_kind", kind), zap.Error(err))
}

func (r *Reconciler) finish(ctx context.Context, result *PassResult) *PassResult {
	result.Duration = r.now().Sub(result.StartedAt)
	if result.NoOpReason != "" {
		return result
	}
	r.recorder.RecordOrders(ctx, result.TenantID, OrderOutcomeCreated, result.Created)
	r.recorder.RecordOrders(ctx, result.TenantID, OrderOutcomeUpdated, result.Updated)
	r.recorder.RecordOrders(ctx, result.TenantID, OrderOutcomeUnchanged, result.Unchanged)
	r.recorder.RecordOrders(ctx, result.TenantID, OrderOutcomeSkippedCompleted, result.SkippedCompleted)
	r.recorder.RecordOrders(ctx, result.TenantID, OrderOutcomeSkippedInvalid, result.SkippedInvalid)
	r.recorder.RecordPassDuration(ctx, result.TenantID, result.Duration, result.Succeeded())
	return result
}

// ---------------------------------------------------------------------------
// Customer lookups
// ---------------------------------------------------------------------------

// customerCache deduplicates customer lookups across technicians within a pass
type customerCache struct {
	client integration.TicketingSystem
	mu     sync.Mutex
	byID   map[string]*integration.ExternalCustomer
}

func newCustomerCache(client integration.TicketingSystem) *customerCache {
	return &customerCache{client: client, byID: make(map[string]*integration.ExternalCustomer)}
}

func (c *customerCache) lookupAll(ctx context.Context, tickets []integration.ExternalTicket) map[string]*integration.ExternalCustomer {
	out := make(map[string]*integration.ExternalCustomer)
	for _, t := range tickets {
		id := t.CustomerExternalID
		if id == "" {
			continue
		}
		if _, done := out[id]; done {
			continue
		}
		out[id] = c.lookup(ctx, id)
	}
	return out
}

func (c *customerCache) lookup(ctx context.Context, id string) *integration.ExternalCustomer {
	c.mu.Lock()
	if customer, ok := c.byID[id]; ok {
		c.mu.Unlock()
		return customer
	}
	c.mu.Unlock()

	// Failures are cached as nil too; the ticket's own fields are the fallback
	customer := c.client.FetchCustomer(ctx, id)

	c.mu.Lock()
	c.byID[id] = customer
	c.mu.Unlock()
	return customer
}
