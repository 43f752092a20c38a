package fieldservice

import "errors"

var (
	// ErrServiceOrderNotFound is returned when a service order does not exist
	ErrServiceOrderNotFound = errors.New("fieldservice: service order not found")
	// ErrOrderAlreadyCompleted is returned when a completed order is mutated
	ErrOrderAlreadyCompleted = errors.New("fieldservice: service order already completed")
	// ErrOrderCancelled is returned when completing a cancelled order
	ErrOrderCancelled = errors.New("fieldservice: service order is cancelled")
	// ErrInvalidOrder is returned when an order fails validation
	ErrInvalidOrder = errors.New("fieldservice: invalid service order")
	// ErrOrderNotCompleted is returned when a sync retry targets an open order
	ErrOrderNotCompleted = errors.New("fieldservice: service order is not completed")
	// ErrNotExternalOrder is returned for sync operations on a locally created order
	ErrNotExternalOrder = errors.New("fieldservice: service order has no external origin")

	// ErrMappingMissing is returned when a technician has no active mapping
	ErrMappingMissing = errors.New("fieldservice: technician mapping missing")
	// ErrConfigMissing is returned when a tenant has no usable integration config
	ErrConfigMissing = errors.New("fieldservice: integration config missing")
	// ErrInvalidIntegrationConfig is returned when a config fails validation
	ErrInvalidIntegrationConfig = errors.New("fieldservice: invalid integration config")
	// ErrInvalidMapping is returned when a technician mapping fails validation
	ErrInvalidMapping = errors.New("fieldservice: invalid technician mapping")
)

// Messages stored in ServiceOrder.SyncError for the operator worklist.
const (
	SyncErrorMappingMissing = "Técnico não mapeado"
	SyncErrorConfigMissing  = "Integração não configurada"
)
