package sequence

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// NumberAllocator is anything that can allocate a document number
type NumberAllocator interface {
	Allocate(ctx context.Context, input AllocateInput) (*Allocation, error)
}

// RetryConfig bounds caller-side retries of conflicting allocations
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// MaxRetries of zero means only MaxElapsedTime bounds the retries
	MaxRetries uint64
}

// DefaultRetryConfig returns the retry policy used by the HTTP API
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 25 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		MaxElapsedTime:  3 * time.Second,
		MaxRetries:      5,
	}
}

// RetryingAllocator repeats a whole allocation when it fails with a
// ConcurrencyError. Every attempt resolves the fiscal year and looks up or
// creates the sequence again. Any other error is returned immediately.
type RetryingAllocator struct {
	inner  NumberAllocator
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryingAllocator wraps inner with exponential backoff retries
func NewRetryingAllocator(inner NumberAllocator, cfg RetryConfig, log *zap.Logger) *RetryingAllocator {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultRetryConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = def.MaxElapsedTime
	}
	return &RetryingAllocator{inner: inner, cfg: cfg, logger: log}
}

// Allocate implements NumberAllocator
func (r *RetryingAllocator) Allocate(ctx context.Context, input AllocateInput) (*Allocation, error) {
	var alloc *Allocation
	attempt := 0

	operation := func() error {
		attempt++
		result, err := r.inner.Allocate(ctx, input)
		if err != nil {
			if sequence.IsConcurrency(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		alloc = result
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.WithLogger(ctx, r.logger).Warn("Allocation conflicted, retrying",
			zap.String("tenant_id", input.TenantID.String()),
			zap.String("document_type", input.DocumentType),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, r.policy(ctx), notify); err != nil {
		return nil, err
	}
	return alloc, nil
}

func (r *RetryingAllocator) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	var policy backoff.BackOff = b
	if r.cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, r.cfg.MaxRetries)
	}
	return backoff.WithContext(policy, ctx)
}
