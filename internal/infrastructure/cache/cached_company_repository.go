package cache

import (
	"context"
	"time"

	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CachedCompanyRepository is a read-through cache in front of a company
// repository. Cache failures never fail a read; the repository answers.
// Save writes to the repository first and then drops the cached entry.
type CachedCompanyRepository struct {
	next   tenant.CompanyRepository
	cache  CompanyCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedCompanyRepository wraps next with cache
func NewCachedCompanyRepository(next tenant.CompanyRepository, cache CompanyCache, ttl time.Duration, logger *zap.Logger) *CachedCompanyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCompanyRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

// FindByID implements tenant.CompanyRegistry
func (r *CachedCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Company, error) {
	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.Warn("Company cache read failed", zap.String("company_id", id.String()), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	company, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, company, r.ttl); err != nil {
		r.logger.Warn("Company cache write failed", zap.String("company_id", id.String()), zap.Error(err))
	}
	return company, nil
}

// Save implements tenant.CompanyRepository
func (r *CachedCompanyRepository) Save(ctx context.Context, company *tenant.Company) error {
	if err := r.next.Save(ctx, company); err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx, company.ID); err != nil {
		r.logger.Error("Company cache invalidation failed, stale settings served until TTL",
			zap.String("company_id", company.ID.String()),
			zap.Duration("ttl", r.ttl),
			zap.Error(err))
	}
	return nil
}

var _ tenant.CompanyRepository = (*CachedCompanyRepository)(nil)
