package tenant

import (
	"context"

	"github.com/google/uuid"
)

// CompanyRegistry is the read side the allocator depends on
type CompanyRegistry interface {
	// FindByID returns the company of a tenant or ErrCompanyNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)
}

// CompanyRepository defines the interface for company persistence
type CompanyRepository interface {
	CompanyRegistry

	// Save creates or updates a company
	Save(ctx context.Context, company *Company) error
}
