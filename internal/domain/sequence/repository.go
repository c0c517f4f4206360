package sequence

import (
	"context"

	"github.com/google/uuid"
)

// Key identifies a sequence by its natural key
type Key struct {
	TenantID     uuid.UUID
	DocumentType DocumentType
	FiscalYear   int
}

// LockedTx exposes the writes allowed while a sequence row is locked. All of
// them commit or roll back together.
type LockedTx interface {
	// Save persists the counter and status of the locked sequence
	Save(ctx context.Context, s *Sequence) error

	// RecordIssued inserts an audit record and marks it persisted
	RecordIssued(ctx context.Context, n *IssuedNumber) error

	// CountIssued counts audit records bound to the sequence
	CountIssued(ctx context.Context, sequenceID uuid.UUID) (int64, error)
}

// Filter narrows sequence listings
type Filter struct {
	TenantID     uuid.UUID
	DocumentType DocumentType
	FiscalYear   int
	ActiveOnly   bool
}

// IssuedFilter narrows audit record listings
type IssuedFilter struct {
	TenantID   uuid.UUID
	SequenceID uuid.UUID
	Page       int
	PageSize   int
}

// Repository is the store of sequences and their issued numbers
type Repository interface {
	// WithLock runs fn in a transaction holding the exclusive lock on the
	// sequence identified by key. When no row exists and create is non-nil,
	// the sequence built by create is inserted first; when create is nil a
	// missing row yields ErrSequenceNotFound. A lock that cannot be acquired
	// in time yields a ConcurrencyError.
	WithLock(ctx context.Context, key Key, create func() (*Sequence, error), fn func(tx LockedTx, s *Sequence) error) error

	// WithLockByID is WithLock for a known sequence id scoped to a tenant
	WithLockByID(ctx context.Context, tenantID, id uuid.UUID, fn func(tx LockedTx, s *Sequence) error) error

	// FindByKey reads a sequence without locking
	FindByKey(ctx context.Context, key Key) (*Sequence, error)

	// FindByID reads a sequence of the tenant without locking
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Sequence, error)

	// FindAll lists sequences matching the filter
	FindAll(ctx context.Context, filter Filter) ([]*Sequence, error)

	// FindIssued lists audit records, newest number first, with the total count
	FindIssued(ctx context.Context, filter IssuedFilter) ([]*IssuedNumber, int64, error)
}
