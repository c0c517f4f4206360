package sequence

import (
	"context"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/google/uuid"
)

// AllocationRequest is what listeners see before the allocation transaction
type AllocationRequest struct {
	TenantID     uuid.UUID
	DocumentType sequence.DocumentType
	FiscalYear   int
	IssueDate    time.Time
	DocumentID   string
	Actor        string
}

// Listener observes allocations. BeforeAllocate may veto by returning an
// error, in which case no transaction is started. AfterAllocate runs only
// after commit and cannot fail the allocation.
type Listener interface {
	BeforeAllocate(ctx context.Context, req AllocationRequest) error
	AfterAllocate(ctx context.Context, alloc Allocation)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Before func(ctx context.Context, req AllocationRequest) error
	After  func(ctx context.Context, alloc Allocation)
}

// BeforeAllocate implements Listener
func (l ListenerFuncs) BeforeAllocate(ctx context.Context, req AllocationRequest) error {
	if l.Before == nil {
		return nil
	}
	return l.Before(ctx, req)
}

// AfterAllocate implements Listener
func (l ListenerFuncs) AfterAllocate(ctx context.Context, alloc Allocation) {
	if l.After != nil {
		l.After(ctx, alloc)
	}
}
