package integration

import (
	"strings"
	"unicode/utf8"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ClosedStatusCode is the external status sent when a local order is completed
const ClosedStatusCode = integration.TicketStatusClosed

// MapStatus translates an external ticket status code. Unknown codes map to pending.
func MapStatus(code string) fieldservice.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case integration.TicketStatusOpen:
		return fieldservice.OrderStatusPending
	case integration.TicketStatusInExecution:
		return fieldservice.OrderStatusInProgress
	case integration.TicketStatusClosed:
		return fieldservice.OrderStatusCompleted
	case integration.TicketStatusCancelled:
		return fieldservice.OrderStatusCancelled
	default:
		return fieldservice.OrderStatusPending
	}
}

// MapPriority translates an external priority code. Unknown codes map to medium.
func MapPriority(code string) fieldservice.OrderPriority {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case integration.TicketPriorityUrgent:
		return fieldservice.OrderPriorityUrgent
	case integration.TicketPriorityHigh:
		return fieldservice.OrderPriorityHigh
	case integration.TicketPriorityMedium:
		return fieldservice.OrderPriorityMedium
	case integration.TicketPriorityLow:
		return fieldservice.OrderPriorityLow
	default:
		return fieldservice.OrderPriorityMedium
	}
}

// ToLocalRecord builds the local draft for an external ticket. Customer fields
// come from the customer record when present and fall back to the ticket's own.
func ToLocalRecord(ticket integration.ExternalTicket, customer *integration.ExternalCustomer, tenantID uuid.UUID, technicianID int64) fieldservice.ServiceOrderDraft {
	snapshot := fieldservice.CustomerSnapshot{
		Name:    NormalizeText(ticket.CustomerName),
		Address: NormalizeText(ticket.CustomerAddress),
		Phone:   strings.TrimSpace(ticket.CustomerPhone),
	}
	if customer != nil {
		if name := NormalizeText(customer.Name); name != "" {
			snapshot.Name = name
		}
		if address := NormalizeText(customer.Address); address != "" {
			snapshot.Address = address
		}
		if phone := strings.TrimSpace(customer.Phone); phone != "" {
			snapshot.Phone = phone
		}
	}
	snapshot.Name = truncateRunes(snapshot.Name, fieldservice.MaxCustomerNameLength)
	snapshot.Address = truncateRunes(snapshot.Address, fieldservice.MaxCustomerAddressLength)
	snapshot.Phone = truncateRunes(snapshot.Phone, fieldservice.MaxCustomerPhoneLength)

	var raw []byte
	if len(ticket.Raw) > 0 {
		raw = []byte(strings.ToValidUTF8(string(ticket.Raw), "\uFFFD"))
	}

	return fieldservice.ServiceOrderDraft{
		TenantID:     tenantID,
		ExternalID:   strings.TrimSpace(ticket.ID),
		TechnicianID: technicianID,
		Status:       MapStatus(ticket.Status),
		Priority:     MapPriority(ticket.Priority),
		Customer:     snapshot,
		Subject:      truncateRunes(NormalizeText(ticket.Subject), fieldservice.MaxSubjectLength),
		Notes:        NormalizeText(ticket.Message),
		Snapshot:     raw,
	}
}

// NormalizeText repairs UTF-8 text that was decoded as Latin-1 upstream,
// composes it to NFC and trims surrounding whitespace.
func NormalizeText(s string) string {
	s = repairMojibake(s)
	return strings.TrimSpace(norm.NFC.String(s))
}

// repairMojibake reverses one round of UTF-8-read-as-Latin-1. The repair is
// kept only when it yields valid UTF-8.
func repairMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	repaired, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(repaired) || repaired == s {
		return s
	}
	return repaired
}

// truncateRunes cuts s to at most n characters
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
