// Package integration contains the port to the external ticketing system.
//
// Key concepts:
//   - TicketingSystem: port interface for one tenant's external ticketing API
//   - ExternalTicket / ExternalCustomer: transient value objects, never persisted verbatim
//   - IntegrationError: classified failure of a TicketingSystem call
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer (internal/infrastructure/ets)
package integration
