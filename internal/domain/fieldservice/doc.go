// Package fieldservice contains the Service Order aggregate and the per-tenant
// integration settings that bind local technicians to an external ticketing
// system.
//
// A ServiceOrder is created either locally or by inbound reconciliation
// (origin external). Once an order reaches OrderStatusCompleted its terminal
// fields belong exclusively to the local completion workflow; inbound updates
// must never mutate it again.
package fieldservice
