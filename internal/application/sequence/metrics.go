package sequence

import (
	"context"
	"time"
)

// Allocation outcomes reported to Metrics
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics receives allocator measurements
type Metrics interface {
	RecordAllocation(ctx context.Context, documentType, outcome string, duration time.Duration)
	RecordReset(ctx context.Context, documentType string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAllocation(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordReset(context.Context, string)                             {}
