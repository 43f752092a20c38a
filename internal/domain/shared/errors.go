package shared

// DomainError is a sentinel carrying the API error code it maps to
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string { return e.Message }

// NewDomainError returns a DomainError; compare instances with errors.Is
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	// ErrAlreadyExists reports a unique constraint collision
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	// ErrConcurrencyConflict reports a stale optimistic-lock version
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
)
