package telemetry

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DBPoolMetrics periodically records the connection pool of the sequence
// store. Allocations queue on row locks while holding a connection, so pool
// exhaustion shows up here before it shows up as lock timeouts.
type DBPoolMetrics struct {
	connections    *Gauge
	connectionsMax *Gauge
	waitCount      *Gauge
	waitDuration   *Gauge

	sqlDB    *sql.DB
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBPoolMetrics creates pool metrics for sqlDB. Interval defaults to 15s.
func NewDBPoolMetrics(meter metric.Meter, sqlDB *sql.DB, interval time.Duration, logger *zap.Logger) (*DBPoolMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m := &DBPoolMetrics{
		sqlDB:    sqlDB,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	var err error
	if m.connections, err = NewGauge(meter, "db_pool_connections", "Number of connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.connectionsMax, err = NewGauge(meter, "db_pool_connections_max", "Maximum number of open connections", "{connection}"); err != nil {
		return nil, err
	}
	if m.waitCount, err = NewGauge(meter, "db_pool_wait_count", "Total number of connections waited for", "{wait}"); err != nil {
		return nil, err
	}
	if m.waitDuration, err = NewGauge(meter, "db_pool_wait_duration_ms", "Total time blocked waiting for a connection", "ms"); err != nil {
		return nil, err
	}
	return m, nil
}

// Start records the pool stats immediately and then every interval until
// Stop is called or ctx is done.
func (m *DBPoolMetrics) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.collect(ctx)
		for {
			select {
			case <-ticker.C:
				m.collect(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Started database connection pool stats collection",
		zap.Duration("interval", m.interval),
	)
}

// Stop terminates the collection goroutine. Safe to call multiple times.
func (m *DBPoolMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

func (m *DBPoolMetrics) collect(ctx context.Context) {
	stats := m.sqlDB.Stats()

	m.connectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.connections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.connections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.connections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
	m.waitCount.Record(ctx, stats.WaitCount)
	m.waitDuration.Record(ctx, stats.WaitDuration.Milliseconds())
}
