package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/erp/docnumber/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCompanyRepository implements tenant.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// FindByID finds the company of a tenant
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Company, error) {
	var model models.CompanyModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tenant.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a company
func (r *GormCompanyRepository) Save(ctx context.Context, company *tenant.Company) error {
	if err := r.db.WithContext(ctx).Save(models.CompanyModelFromDomain(company)).Error; err != nil {
		return fmt.Errorf("save company: %w", err)
	}
	return nil
}

// Ensure GormCompanyRepository implements tenant.CompanyRepository
var _ tenant.CompanyRepository = (*GormCompanyRepository)(nil)
