package fieldservice

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// OrderStatus is the local lifecycle status of a service order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid returns true if the status is one of the known values
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// OrderPriority is the local priority of a service order
type OrderPriority string

const (
	OrderPriorityUrgent OrderPriority = "urgent"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityMedium OrderPriority = "medium"
	OrderPriorityLow    OrderPriority = "low"
)

// IsValid returns true if the priority is one of the known values
func (p OrderPriority) IsValid() bool {
	switch p {
	case OrderPriorityUrgent, OrderPriorityHigh, OrderPriorityMedium, OrderPriorityLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderPriority
func (p OrderPriority) String() string {
	return string(p)
}

// OrderOrigin tells where a service order was first created
type OrderOrigin string

const (
	OrderOriginLocal    OrderOrigin = "local"
	OrderOriginExternal OrderOrigin = "external"
)

// IsValid returns true if the origin is one of the known values
func (o OrderOrigin) IsValid() bool {
	return o == OrderOriginLocal || o == OrderOriginExternal
}

// String returns the string representation of OrderOrigin
func (o OrderOrigin) String() string {
	return string(o)
}

// CustomerSnapshot is the customer data captured when the order was last
// synchronized. It is not joined live against any customer table.
type CustomerSnapshot struct {
	Name    string
	Address string
	Phone   string
}

// Column widths of the service_orders table, in characters
const (
	MaxExternalIDLength      = 64
	MaxSubjectLength         = 255
	MaxCustomerNameLength    = 255
	MaxCustomerAddressLength = 500
	MaxCustomerPhoneLength   = 50
)

// ---------------------------------------------------------------------------
// ServiceOrderDraft
// ---------------------------------------------------------------------------

// ServiceOrderDraft carries the fields inbound reconciliation derives from an
// external ticket.
type ServiceOrderDraft struct {
	TenantID     uuid.UUID
	ExternalID   string
	TechnicianID int64
	Status       OrderStatus
	Priority     OrderPriority
	Customer     CustomerSnapshot
	Subject      string
	Notes        string
	// Snapshot is the opaque JSON of the external ticket
	Snapshot []byte
}

// Validate checks the draft can become a service order
func (d ServiceOrderDraft) Validate() error {
	if d.TenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(d.ExternalID) == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidOrder)
	}
	if utf8.RuneCountInString(d.ExternalID) > MaxExternalIDLength {
		return fmt.Errorf("%w: external id longer than %d characters", ErrInvalidOrder, MaxExternalIDLength)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, d.Status)
	}
	if !d.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidOrder, d.Priority)
	}
	return nil
}

// ---------------------------------------------------------------------------
// ServiceOrder aggregate
// ---------------------------------------------------------------------------

// ServiceOrder is the local canonical record of a field-service task
type ServiceOrder struct {
	shared.Aggregate

	// ExternalID is the ticket id on the external system, nil for local orders
	ExternalID *string
	Origin     OrderOrigin
	Status     OrderStatus
	Priority   OrderPriority
	// TechnicianID is the local technician assigned to the order
	TechnicianID int64
	Customer     CustomerSnapshot
	Subject      string
	Notes        string
	// ExternalSnapshot is the last external ticket payload, kept for audit
	ExternalSnapshot []byte

	// SyncError holds the last outbound push failure, nil when synchronized
	SyncError *string
	// SyncAttempts counts failed outbound pushes; it never decreases
	SyncAttempts int
	SyncedAt     *time.Time

	CompletionNote string
	MaterialsUsed  string
	CompletedAt    *time.Time
}

// NewLocalServiceOrder creates an order that has no external counterpart
func NewLocalServiceOrder(tenantID uuid.UUID, technicianID int64, subject string, priority OrderPriority, customer CustomerSnapshot) (*ServiceOrder, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidOrder)
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidOrder, priority)
	}
	return &ServiceOrder{
		Aggregate:    shared.NewAggregate(tenantID),
		Origin:       OrderOriginLocal,
		Status:       OrderStatusPending,
		Priority:     priority,
		TechnicianID: technicianID,
		Customer:     customer,
		Subject:      subject,
	}, nil
}

// NewServiceOrderFromDraft creates an order of external origin
func NewServiceOrderFromDraft(d ServiceOrderDraft) (*ServiceOrder, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	externalID := d.ExternalID
	order := &ServiceOrder{
		Aggregate:        shared.NewAggregate(d.TenantID),
		ExternalID:       &externalID,
		Origin:           OrderOriginExternal,
		Status:           d.Status,
		Priority:         d.Priority,
		TechnicianID:     d.TechnicianID,
		Customer:         d.Customer,
		Subject:          d.Subject,
		Notes:            d.Notes,
		ExternalSnapshot: d.Snapshot,
	}
	if d.Status == OrderStatusCompleted {
		now := time.Now()
		order.CompletedAt = &now
	}
	return order, nil
}

// IsExternal reports whether the order mirrors an external ticket
func (o *ServiceOrder) IsExternal() bool {
	return o.Origin == OrderOriginExternal && o.ExternalID != nil && *o.ExternalID != ""
}

// ExternalIDValue returns the external id or an empty string
func (o *ServiceOrder) ExternalIDValue() string {
	if o.ExternalID == nil {
		return ""
	}
	return *o.ExternalID
}

// IsCompleted reports whether the order reached the terminal status
func (o *ServiceOrder) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// ApplyExternalUpdate overwrites the externally owned fields with the draft.
// Technician assignment is never changed. It returns false when every field
// already matched, in which case the order is left untouched.
func (o *ServiceOrder) ApplyExternalUpdate(d ServiceOrderDraft) (bool, error) {
	if o.IsCompleted() {
		return false, ErrOrderAlreadyCompleted
	}
	if !d.Status.IsValid() || !d.Priority.IsValid() {
		return false, fmt.Errorf("%w: draft has unknown status or priority", ErrInvalidOrder)
	}

	changed := o.Status != d.Status ||
		o.Priority != d.Priority ||
		o.Notes != d.Notes ||
		o.Subject != d.Subject ||
		o.Customer != d.Customer ||
		!bytes.Equal(o.ExternalSnapshot, d.Snapshot)
	if !changed {
		return false, nil
	}

	o.Status = d.Status
	o.Priority = d.Priority
	o.Notes = d.Notes
	o.Subject = d.Subject
	o.Customer = d.Customer
	o.ExternalSnapshot = d.Snapshot
	if o.Status == OrderStatusCompleted && o.CompletedAt == nil {
		now := time.Now()
		o.CompletedAt = &now
	}
	o.IncrementVersion()
	return true, nil
}

// Complete closes the order locally. The completion is terminal.
func (o *ServiceOrder) Complete(note, materials string, at time.Time) error {
	switch o.Status {
	case OrderStatusCompleted:
		return ErrOrderAlreadyCompleted
	case OrderStatusCancelled:
		return ErrOrderCancelled
	}
	o.Status = OrderStatusCompleted
	o.CompletionNote = strings.TrimSpace(note)
	o.MaterialsUsed = strings.TrimSpace(materials)
	o.CompletedAt = &at
	o.IncrementVersion()
	return nil
}

// RecordSyncFailure stores the push failure message and bumps the attempt counter
func (o *ServiceOrder) RecordSyncFailure(message string) {
	if message == "" {
		message = "unknown sync error"
	}
	message = strings.ToValidUTF8(message, "\uFFFD")
	o.SyncError = &message
	o.SyncAttempts++
	o.Touch()
}

// MarkSynchronized clears the sync error after a successful push
func (o *ServiceOrder) MarkSynchronized(at time.Time) {
	o.SyncError = nil
	o.SyncedAt = &at
	o.Touch()
}

// HasSyncFailure reports whether the last outbound push failed
func (o *ServiceOrder) HasSyncFailure() bool {
	return o.SyncError != nil
}
