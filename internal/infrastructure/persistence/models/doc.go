// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - sequence.go: document_sequences and the append-only issued_numbers table
// - company.go: per-tenant numbering configuration
package models

// All returns every model, in dependency order, for AutoMigrate on the
// embedded sqlite store. Postgres schemas come from the SQL migrations.
func All() []any {
	return []any{
		&CompanyModel{},
		&SequenceModel{},
		&IssuedNumberModel{},
	}
}
