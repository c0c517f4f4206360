package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// InMemoryCompanyCache is a process-local CompanyCache backed by go-cache.
// Entries are stored in their cached form so callers never share a
// *tenant.Company.
type InMemoryCompanyCache struct {
	cache           *gocache.Cache
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// InMemoryCompanyCacheOption configures an InMemoryCompanyCache
type InMemoryCompanyCacheOption func(*InMemoryCompanyCache)

// WithInMemoryTTL sets the TTL used when Set is called with zero
func WithInMemoryTTL(ttl time.Duration) InMemoryCompanyCacheOption {
	return func(c *InMemoryCompanyCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithCleanupInterval sets how often expired entries are swept
func WithCleanupInterval(d time.Duration) InMemoryCompanyCacheOption {
	return func(c *InMemoryCompanyCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// WithInMemoryLogger sets the logger
func WithInMemoryLogger(logger *zap.Logger) InMemoryCompanyCacheOption {
	return func(c *InMemoryCompanyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewInMemoryCompanyCache creates the cache. go-cache runs its own janitor
// at the cleanup interval.
func NewInMemoryCompanyCache(opts ...InMemoryCompanyCacheOption) *InMemoryCompanyCache {
	c := &InMemoryCompanyCache{
		defaultTTL:      DefaultCompanyTTL,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = gocache.New(c.defaultTTL, c.cleanupInterval)
	c.cache.OnEvicted(func(key string, _ any) {
		c.logger.Debug("Company cache entry evicted", zap.String("company_id", key))
	})
	return c
}

// Get implements CompanyCache
func (c *InMemoryCompanyCache) Get(_ context.Context, id uuid.UUID) (*tenant.Company, error) {
	v, ok := c.cache.Get(id.String())
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}
	c.hits.Add(1)
	entry := v.(companyEntry)
	return entry.toDomain(), nil
}

// Set implements CompanyCache
func (c *InMemoryCompanyCache) Set(_ context.Context, company *tenant.Company, ttl time.Duration) error {
	if company == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(company.ID.String(), newCompanyEntry(company), ttl)
	return nil
}

// Invalidate implements CompanyCache
func (c *InMemoryCompanyCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.cache.Delete(id.String())
	return nil
}

// Close drops every entry. It is safe to call more than once.
func (c *InMemoryCompanyCache) Close() error {
	c.cache.Flush()
	return nil
}

// CacheStats reports hit and miss counters
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns the current counters. Entries may include expired items
// the janitor has not swept yet.
func (c *InMemoryCompanyCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: c.cache.ItemCount()}
}

func (c *InMemoryCompanyCache) removeExpired() {
	c.cache.DeleteExpired()
}

var _ CompanyCache = (*InMemoryCompanyCache)(nil)
