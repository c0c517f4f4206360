package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingExporter keeps exported log records in memory
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.records))
	for i, r := range e.records {
		out[i] = r.Body().AsString()
	}
	return out
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	t.Run("disabled returns the base logger", func(t *testing.T) {
		lp := &LoggerProvider{logger: zap.NewNop()}
		base := zap.NewNop()
		assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	})

	t.Run("enabled tees to the collector above the level", func(t *testing.T) {
		exporter := &recordingExporter{}
		lp := &LoggerProvider{
			provider: sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter))),
			logger:   zap.NewNop(),
			config:   LogsConfig{Enabled: true, ServiceName: "docnumber-test"},
		}
		defer func() { _ = lp.Shutdown(context.Background()) }()

		core, local := observer.New(zapcore.DebugLevel)
		logger := lp.Bridge(zap.New(core), zapcore.InfoLevel)

		logger.Debug("lock acquired")
		logger.Info("Document number allocated", zap.Int64("number", 7))
		logger.With(zap.String("tenant_id", "t1")).Warn("Document sequence reset")

		assert.Equal(t, 3, local.Len())
		assert.Equal(t, []string{"Document number allocated", "Document sequence reset"}, exporter.bodies())
	})
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	logger := zap.New(core.With([]zapcore.Field{zap.String("k", "v")}))
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "v", entry.ContextMap()["k"])
}
