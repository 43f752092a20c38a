package integration

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ticketing system port
var (
	ErrTicketNotFound      = errors.New("integration: ticket not found")
	ErrClientNotConfigured = errors.New("integration: ticketing client not configured")
	ErrListingTruncated    = errors.New("integration: ticket listing truncated at page limit")
)

// ErrorKind classifies a failed call to the external ticketing system
type ErrorKind string

const (
	// ErrorKindNetwork covers transport failures and 5xx responses
	ErrorKindNetwork ErrorKind = "network"
	// ErrorKindTimeout is a call that exceeded its deadline
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindAuth is a 401/403 from the external system
	ErrorKindAuth ErrorKind = "auth"
	// ErrorKindMalformedResponse is a body that could not be decoded
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	// ErrorKindRateLimited is a 429 from the external system
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindRejected is a request the external system refused to apply
	ErrorKindRejected ErrorKind = "rejected"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// Retryable reports whether the same call may succeed if repeated later
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindNetwork, ErrorKindTimeout, ErrorKindRateLimited:
		return true
	default:
		return false
	}
}

// IntegrationError is returned by every failing TicketingSystem call
type IntegrationError struct {
	Kind ErrorKind
	// Op names the failing call, e.g. "list_tickets"
	Op string
	// StatusCode is the HTTP status when one was received
	StatusCode int
	Err        error
}

// NewIntegrationError creates an IntegrationError
func NewIntegrationError(kind ErrorKind, op string, err error) *IntegrationError {
	return &IntegrationError{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface
func (e *IntegrationError) Error() string {
	msg := fmt.Sprintf("integration: %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, if it wraps an IntegrationError
func KindOf(err error) (ErrorKind, bool) {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an IntegrationError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRetryable reports whether err is a retryable IntegrationError
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Retryable()
}
