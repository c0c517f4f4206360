package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/docnumber/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CompanyCacheFactory picks the company cache implementation from configuration
type CompanyCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption configures a CompanyCacheFactory
type FactoryOption func(*CompanyCacheFactory)

// WithLogger sets the logger for the factory and the caches it creates
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *CompanyCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// the in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *CompanyCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCompanyCacheFactory creates a new factory
func NewCompanyCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...FactoryOption) *CompanyCacheFactory {
	f := &CompanyCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis cache when Redis is enabled and reachable, and an
// in-memory cache otherwise. An in-memory cache is per instance, so a
// numbering update on one instance reaches the others only after the TTL.
func (f *CompanyCacheFactory) Create(ctx context.Context) (CompanyCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory company cache", zap.Duration("ttl", f.ttl))
		return f.inMemory(), nil
	}

	c, err := NewRedisCompanyCache(ctx, RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, WithRedisLogger(f.logger), WithDefaultTTL(f.ttl))
	if err == nil {
		f.logger.Info("Using Redis company cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis company cache unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory company cache", zap.Error(err))
	return f.inMemory(), nil
}

func (f *CompanyCacheFactory) inMemory() *InMemoryCompanyCache {
	return NewInMemoryCompanyCache(WithInMemoryTTL(f.ttl), WithInMemoryLogger(f.logger))
}
