package dto

import "net/http"

// API error codes. Every code has the form ERR_<CATEGORY>[_<DETAIL>] and a
// fixed HTTP status in statusByCode.
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	// ErrCodeValidation reports request binding failures with per-field details
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationFormat reports a malformed path or query value
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"

	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
	ErrCodeTenantInvalid  = "ERR_TENANT_INVALID"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// ErrCodeInvalidState reports an operation the order's lifecycle forbids
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeIntegrationNotConfigured reports a tenant without a usable ETS integration
	ErrCodeIntegrationNotConfigured = "ERR_INTEGRATION_NOT_CONFIGURED"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

	// ErrCodeRateLimited reports an exhausted per-tenant request budget
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeUpstream reports a failed call to the external ticketing system
	ErrCodeUpstream    = "ERR_UPSTREAM"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

var statusByCode = map[string]int{
	ErrCodeUnknown:                  http.StatusInternalServerError,
	ErrCodeInternal:                 http.StatusInternalServerError,
	ErrCodeValidation:               http.StatusBadRequest,
	ErrCodeValidationFormat:         http.StatusBadRequest,
	ErrCodeTenantRequired:           http.StatusBadRequest,
	ErrCodeTenantInvalid:            http.StatusBadRequest,
	ErrCodeNotFound:                 http.StatusNotFound,
	ErrCodeConflict:                 http.StatusConflict,
	ErrCodeConcurrencyConflict:      http.StatusConflict,
	ErrCodeInvalidState:             http.StatusUnprocessableEntity,
	ErrCodeIntegrationNotConfigured: http.StatusUnprocessableEntity,
	ErrCodeBadRequest:               http.StatusBadRequest,
	ErrCodeInvalidInput:             http.StatusBadRequest,
	ErrCodeRequestTooLarge:          http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:              http.StatusTooManyRequests,
	ErrCodeUpstream:                 http.StatusBadGateway,
	ErrCodeUnavailable:              http.StatusServiceUnavailable,
}

// domainCodes translates shared.DomainError codes into API codes
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeConflict,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"UNAVAILABLE":          ErrCodeUnavailable,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode maps a domain error code to its API code. API codes and
// unknown values are returned unchanged.
func NormalizeErrorCode(code string) string {
	if api, ok := domainCodes[code]; ok {
		return api
	}
	return code
}

// GetHTTPStatus returns the status for an API or domain error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[NormalizeErrorCode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
