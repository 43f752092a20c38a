package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
)

// ---------------------------------------------------------------------------
// External vocabulary
// ---------------------------------------------------------------------------

// Ticket status codes used by the external ticketing system
const (
	TicketStatusOpen        = "A"
	TicketStatusInExecution = "E"
	TicketStatusClosed      = "F"
	TicketStatusCancelled   = "C"
)

// Ticket priority codes used by the external ticketing system
const (
	TicketPriorityUrgent = "U"
	TicketPriorityHigh   = "A"
	TicketPriorityMedium = "M"
	TicketPriorityLow    = "B"
)

// OpenTicketStatuses are the statuses a technician listing is filtered to
var OpenTicketStatuses = []string{TicketStatusOpen, TicketStatusInExecution}

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// ExternalTicket is a ticket as reported by the external system. It lives only
// in memory during a pass; Raw is attached to the local order as a snapshot.
type ExternalTicket struct {
	ID                   string
	Status               string
	Priority             string
	TechnicianExternalID string
	CustomerExternalID   string
	Subject              string
	Message              string
	// Customer fields carried on the ticket itself, used when no customer
	// record can be fetched
	CustomerName    string
	CustomerAddress string
	CustomerPhone   string
	OpenedAt        *time.Time
	Raw             json.RawMessage
}

// ExternalCustomer is the customer record of the external system
type ExternalCustomer struct {
	ID      string
	Name    string
	Address string
	Phone   string
}

// CompletionPush carries a local completion to the external system
type CompletionPush struct {
	TicketID             string
	TechnicianExternalID string
	Note                 string
	MaterialsUsed        string
	CompletedAt          time.Time
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// TicketingSystem is one tenant's connection to the external ticketing API.
// Every call is bounded by a per-call timeout; failures are *IntegrationError.
type TicketingSystem interface {
	// ListTicketsForTechnician returns the open tickets assigned to the given
	// external technician, across all pages. No match is an empty slice.
	// When pagination stops at the page limit the tickets read so far are
	// returned together with an error wrapping ErrListingTruncated.
	ListTicketsForTechnician(ctx context.Context, externalTechnicianID string) ([]ExternalTicket, error)

	// FetchTicket returns a single ticket or ErrTicketNotFound
	FetchTicket(ctx context.Context, externalTicketID string) (*ExternalTicket, error)

	// FetchCustomer is best effort: any failure yields nil
	FetchCustomer(ctx context.Context, externalCustomerID string) *ExternalCustomer

	// PushCompletion closes the ticket with the given note. Repeating the
	// call with the same arguments is safe.
	PushCompletion(ctx context.Context, push CompletionPush) error

	// TestConnection issues a minimal read-only call
	TestConnection(ctx context.Context) bool
}

// ClientFactory builds a TicketingSystem from a tenant's integration config
type ClientFactory interface {
	ForConfig(cfg *fieldservice.IntegrationConfig) (TicketingSystem, error)
}
