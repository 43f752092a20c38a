package integration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]fieldservice.ServiceOrder
	saves     int
	syncSaves int
	failOn    string // external id whose create/save fails
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]fieldservice.ServiceOrder)}
}

func (r *memOrderRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*fieldservice.ServiceOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, fieldservice.ErrServiceOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID string) (*fieldservice.ServiceOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.ExternalIDValue() == externalID {
			found := o
			return &found, nil
		}
	}
	return nil, fieldservice.ErrServiceOrderNotFound
}

func (r *memOrderRepo) Create(_ context.Context, order *fieldservice.ServiceOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && order.ExternalIDValue() == r.failOn {
		return errWrite
	}
	r.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) Save(_ context.Context, order *fieldservice.ServiceOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && order.ExternalIDValue() == r.failOn {
		return errWrite
	}
	r.saves++
	r.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) UpdateSyncState(_ context.Context, order *fieldservice.ServiceOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return fieldservice.ErrServiceOrderNotFound
	}
	stored.SyncError = order.SyncError
	stored.SyncAttempts = order.SyncAttempts
	stored.SyncedAt = order.SyncedAt
	r.orders[order.ID] = stored
	r.syncSaves++
	return nil
}

func (r *memOrderRepo) ListSyncFailures(_ context.Context, tenantID uuid.UUID, limit int) ([]fieldservice.ServiceOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fieldservice.ServiceOrder
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.SyncError != nil {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrderRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *memOrderRepo) byExternalID(externalID string) *fieldservice.ServiceOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ExternalIDValue() == externalID {
			found := o
			return &found
		}
	}
	return nil
}

type memConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]fieldservice.IntegrationConfig
	stamps  int
}

func newMemConfigRepo(cfgs ...*fieldservice.IntegrationConfig) *memConfigRepo {
	r := &memConfigRepo{configs: make(map[uuid.UUID]fieldservice.IntegrationConfig)}
	for _, c := range cfgs {
		r.configs[c.TenantID] = *c
	}
	return r
}

func (r *memConfigRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*fieldservice.IntegrationConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[tenantID]
	if !ok {
		return nil, fieldservice.ErrConfigMissing
	}
	return &c, nil
}

func (r *memConfigRepo) FindActive(_ context.Context) ([]fieldservice.IntegrationConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fieldservice.IntegrationConfig
	for _, c := range r.configs {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID.String() < out[j].TenantID.String() })
	return out, nil
}

func (r *memConfigRepo) UpdateLastSyncAt(_ context.Context, tenantID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[tenantID]
	if !ok {
		return fieldservice.ErrConfigMissing
	}
	c.MarkSynced(at)
	r.configs[tenantID] = c
	r.stamps++
	return nil
}

func (r *memConfigRepo) Save(_ context.Context, cfg *fieldservice.IntegrationConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.TenantID] = *cfg
	return nil
}

type memMappingRepo struct {
	mappings []fieldservice.TechnicianMapping
}

func (r *memMappingRepo) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]fieldservice.TechnicianMapping, error) {
	var out []fieldservice.TechnicianMapping
	for _, m := range r.mappings {
		if m.TenantID == tenantID && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMappingRepo) FindByTechnician(_ context.Context, tenantID uuid.UUID, technicianID int64) (*fieldservice.TechnicianMapping, error) {
	for _, m := range r.mappings {
		if m.TenantID == tenantID && m.TechnicianID == technicianID && m.Active {
			found := m
			return &found, nil
		}
	}
	return nil, fieldservice.ErrMappingMissing
}

func (r *memMappingRepo) Save(_ context.Context, mapping *fieldservice.TechnicianMapping) error {
	r.mappings = append(r.mappings, *mapping)
	return nil
}

// ---------------------------------------------------------------------------
// Fake ticketing system
// ---------------------------------------------------------------------------

type fakeTicketing struct {
	mu        sync.Mutex
	tickets   map[string][]integration.ExternalTicket // by external technician id
	failures  map[string]error
	hang      map[string]bool // technicians whose listing blocks until ctx is done
	customers map[string]*integration.ExternalCustomer
	pushErr   error
	pushes    []integration.CompletionPush
	reachable bool
	listCalls int
}

func newFakeTicketing() *fakeTicketing {
	return &fakeTicketing{
		tickets:   make(map[string][]integration.ExternalTicket),
		failures:  make(map[string]error),
		hang:      make(map[string]bool),
		customers: make(map[string]*integration.ExternalCustomer),
		reachable: true,
	}
}

func (f *fakeTicketing) ListTicketsForTechnician(ctx context.Context, externalTechnicianID string) ([]integration.ExternalTicket, error) {
	f.mu.Lock()
	f.listCalls++
	if f.hang[externalTechnicianID] {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	tickets := append([]integration.ExternalTicket{}, f.tickets[externalTechnicianID]...)
	if err := f.failures[externalTechnicianID]; err != nil {
		if errors.Is(err, integration.ErrListingTruncated) {
			return tickets, err
		}
		return nil, err
	}
	return tickets, nil
}

func (f *fakeTicketing) FetchTicket(_ context.Context, id string) (*integration.ExternalTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.tickets {
		for _, t := range list {
			if t.ID == id {
				found := t
				return &found, nil
			}
		}
	}
	return nil, integration.ErrTicketNotFound
}

func (f *fakeTicketing) FetchCustomer(_ context.Context, id string) *integration.ExternalCustomer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[id]
}

func (f *fakeTicketing) PushCompletion(_ context.Context, push integration.CompletionPush) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, push)
	return f.pushErr
}

func (f *fakeTicketing) TestConnection(context.Context) bool {
	return f.reachable
}

type fakeFactory struct {
	client integration.TicketingSystem
	err    error
	calls  int
}

func (f *fakeFactory) ForConfig(cfg *fieldservice.IntegrationConfig) (integration.TicketingSystem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if !cfg.IsUsable() {
		return nil, integration.ErrClientNotConfigured
	}
	return f.client, nil
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

type capturingRecorder struct {
	mu        sync.Mutex
	orders    map[string]int
	passes    []bool
	techFails []string
	pushes    []string
}

func newCapturingRecorder() *capturingRecorder {
	return &capturingRecorder{orders: make(map[string]int)}
}

func (c *capturingRecorder) RecordOrders(_ context.Context, _ uuid.UUID, outcome string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[outcome] += n
}

func (c *capturingRecorder) RecordPassDuration(_ context.Context, _ uuid.UUID, _ time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = append(c.passes, success)
}

func (c *capturingRecorder) RecordTechnicianFailure(_ context.Context, _ uuid.UUID, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.techFails = append(c.techFails, kind)
}

func (c *capturingRecorder) RecordPush(_ context.Context, _ uuid.UUID, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, outcome)
}
