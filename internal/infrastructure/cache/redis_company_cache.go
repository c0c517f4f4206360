package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCompanyKeyPrefix = "docnumber:company:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCompanyCache stores companies as JSON strings with a TTL. It is
// shared by every instance of the service.
type RedisCompanyCache struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
	defaultTTL time.Duration
	logger     *zap.Logger
}

// RedisCompanyCacheOption configures a RedisCompanyCache
type RedisCompanyCacheOption func(*RedisCompanyCache)

// WithKeyPrefix overrides the key prefix
func WithKeyPrefix(prefix string) RedisCompanyCacheOption {
	return func(c *RedisCompanyCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisCompanyCacheOption {
	return func(c *RedisCompanyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaultTTL sets the TTL used when Set is called with zero
func WithDefaultTTL(ttl time.Duration) RedisCompanyCacheOption {
	return func(c *RedisCompanyCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// NewRedisCompanyCache connects to Redis and owns the client
func NewRedisCompanyCache(ctx context.Context, cfg RedisConfig, opts ...RedisCompanyCacheOption) (*RedisCompanyCache, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := NewRedisCompanyCacheWithClient(client, opts...)
	c.ownsClient = true
	return c, nil
}

// NewRedisCompanyCacheWithClient uses a client owned by the caller
func NewRedisCompanyCacheWithClient(client *redis.Client, opts ...RedisCompanyCacheOption) *RedisCompanyCache {
	c := &RedisCompanyCache{
		client:     client,
		keyPrefix:  defaultCompanyKeyPrefix,
		defaultTTL: DefaultCompanyTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCompanyCache) key(id uuid.UUID) string {
	return c.keyPrefix + id.String()
}

// Get implements CompanyCache
func (c *RedisCompanyCache) Get(ctx context.Context, id uuid.UUID) (*tenant.Company, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company %s from cache: %w", id, err)
	}

	company, err := decodeCompany(data)
	if err != nil {
		// a corrupt entry is dropped and treated as a miss
		c.logger.Warn("Dropping undecodable company cache entry", zap.String("company_id", id.String()), zap.Error(err))
		_ = c.client.Del(ctx, c.key(id)).Err()
		return nil, nil
	}
	return company, nil
}

// Set implements CompanyCache
func (c *RedisCompanyCache) Set(ctx context.Context, company *tenant.Company, ttl time.Duration) error {
	if company == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := encodeCompany(company)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(company.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set company %s in cache: %w", company.ID, err)
	}
	return nil
}

// Invalidate implements CompanyCache
func (c *RedisCompanyCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate company %s: %w", id, err)
	}
	return nil
}

// Close closes the client when the cache created it
func (c *RedisCompanyCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}

var _ CompanyCache = (*RedisCompanyCache)(nil)
