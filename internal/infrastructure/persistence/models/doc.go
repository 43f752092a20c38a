// Package models holds the GORM table mappings. Domain types never carry gorm
// tags; each model converts itself with ToDomain and FromDomain.
package models
