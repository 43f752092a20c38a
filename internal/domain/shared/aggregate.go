// Package shared holds the building blocks every bounded context of the
// service reuses: the tenant-scoped aggregate header, domain errors and the
// idempotency store contract.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is the header embedded by tenant-owned aggregate roots. Version
// starts at 1 and guards optimistic-lock updates in the repositories.
type Aggregate struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAggregate returns a fresh header owned by tenantID
func NewAggregate(tenantID uuid.UUID) Aggregate {
	now := time.Now()
	return Aggregate{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a change that does not need a version bump, such as sync
// bookkeeping.
func (a *Aggregate) Touch() {
	a.UpdatedAt = time.Now()
}

// IncrementVersion records a business change
func (a *Aggregate) IncrementVersion() {
	a.Version++
	a.Touch()
}
