// Package tenant scopes GORM queries on tenant-owned tables to one tenant.
//
//	db.Scopes(tenant.Scope(tenantID)).Find(&sequences)
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is the tenant column shared by document_sequences and issued_numbers
const Column = "tenant_id"

// ErrTenantIDRequired is added to the statement when no tenant is given
var ErrTenantIDRequired = errors.New("tenant_id is required")

// Scope filters a query on tenantID. A nil tenant fails the statement
// instead of matching every row.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(Column+" = ?", tenantID)
	}
}
