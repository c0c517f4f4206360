package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"github.com/erp/docnumber/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultStreamMaxLen  = 100_000
	defaultStreamTimeout = 2 * time.Second
)

// StreamAdder is the part of the Redis client the forwarder needs
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamForwarder is an event handler that appends every event it
// receives to a Redis stream, so that downstream services can consume
// issued numbers without polling the database. The stream is capped at
// roughly MaxLen entries.
type RedisStreamForwarder struct {
	client     StreamAdder
	stream     string
	maxLen     int64
	timeout    time.Duration
	serializer *EventSerializer
	logger     *zap.Logger
}

// StreamForwarderOption configures a RedisStreamForwarder
type StreamForwarderOption func(*RedisStreamForwarder)

// WithMaxLen sets the approximate stream cap
func WithMaxLen(n int64) StreamForwarderOption {
	return func(f *RedisStreamForwarder) {
		if n > 0 {
			f.maxLen = n
		}
	}
}

// WithStreamTimeout bounds each XADD
func WithStreamTimeout(d time.Duration) StreamForwarderOption {
	return func(f *RedisStreamForwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithStreamLogger sets the logger
func WithStreamLogger(l *zap.Logger) StreamForwarderOption {
	return func(f *RedisStreamForwarder) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewRedisStreamForwarder creates a forwarder writing to stream
func NewRedisStreamForwarder(client StreamAdder, stream string, serializer *EventSerializer, opts ...StreamForwarderOption) *RedisStreamForwarder {
	f := &RedisStreamForwarder{
		client:     client,
		stream:     stream,
		maxLen:     defaultStreamMaxLen,
		timeout:    defaultStreamTimeout,
		serializer: serializer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EventTypes implements shared.EventHandler. The forwarder takes every
// event type the serializer knows.
func (f *RedisStreamForwarder) EventTypes() []string {
	return f.serializer.RegisteredTypes()
}

// Handle implements shared.EventHandler
func (f *RedisStreamForwarder) Handle(ctx context.Context, e shared.DomainEvent) error {
	payload, err := f.serializer.Serialize(e)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "event.forward",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute("messaging.destination.name", f.stream),
		telemetry.WithAttribute("event_type", e.EventType()),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	values := StreamValues(e, payload)
	if traceID := telemetry.GetTraceID(ctx); traceID != "" {
		values["trace_id"] = traceID
	}

	id, err := f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: f.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		err = fmt.Errorf("xadd %s to %s: %w", e.EventType(), f.stream, err)
		telemetry.RecordError(span, err)
		return err
	}

	logger.WithLogger(ctx, f.logger).Debug("Event forwarded to stream",
		zap.String("stream", f.stream),
		zap.String("stream_id", id),
		zap.String("event_type", e.EventType()),
	)
	return nil
}

// StreamValues returns the stream entry fields of an event
func StreamValues(e shared.DomainEvent, payload []byte) map[string]any {
	return map[string]any{
		"event_id":       e.EventID().String(),
		"event_type":     e.EventType(),
		"aggregate_id":   e.AggregateID().String(),
		"aggregate_type": e.AggregateType(),
		"tenant_id":      e.TenantID().String(),
		"occurred_at":    e.OccurredAt().UTC().Format(time.RFC3339Nano),
		"payload":        string(payload),
	}
}

var _ shared.EventHandler = (*RedisStreamForwarder)(nil)
