package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SequenceMetrics records allocation throughput, latency and resets. It
// satisfies the allocator's Metrics interface.
type SequenceMetrics struct {
	allocations *Counter
	duration    *Histogram
	resets      *Counter
}

// NewSequenceMetrics creates the numbering instruments on meter
func NewSequenceMetrics(meter metric.Meter) (*SequenceMetrics, error) {
	allocations, err := NewCounter(meter,
		"docnumber_allocations_total",
		"Number allocations by document type and outcome",
		"{allocation}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "docnumber_allocation_duration_seconds",
		Description: "Allocation latency including time spent waiting for the sequence lock",
		Unit:        "s",
		Boundaries:  LockWaitBuckets,
	})
	if err != nil {
		return nil, err
	}

	resets, err := NewCounter(meter,
		"docnumber_sequence_resets_total",
		"Sequences reset to zero",
		"{reset}",
	)
	if err != nil {
		return nil, err
	}

	return &SequenceMetrics{allocations: allocations, duration: duration, resets: resets}, nil
}

// RecordAllocation counts one allocation attempt and its latency
func (m *SequenceMetrics) RecordAllocation(ctx context.Context, documentType, outcome string, d time.Duration) {
	m.allocations.Inc(ctx, AttrDocumentType.String(documentType), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrDocumentType.String(documentType), AttrOutcome.String(outcome))
}

// RecordReset counts one sequence reset
func (m *SequenceMetrics) RecordReset(ctx context.Context, documentType string) {
	m.resets.Inc(ctx, AttrDocumentType.String(documentType))
}
