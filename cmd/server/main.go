// Command server runs the document numbering HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appseq "github.com/erp/docnumber/internal/application/sequence"
	"github.com/erp/docnumber/internal/infrastructure/auth"
	"github.com/erp/docnumber/internal/infrastructure/cache"
	"github.com/erp/docnumber/internal/infrastructure/config"
	"github.com/erp/docnumber/internal/infrastructure/event"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"github.com/erp/docnumber/internal/infrastructure/persistence"
	"github.com/erp/docnumber/internal/infrastructure/telemetry"
	"github.com/erp/docnumber/internal/interfaces/http/handler"
	"github.com/erp/docnumber/internal/interfaces/http/middleware"
	"github.com/erp/docnumber/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// maxBodyBytes bounds request bodies; numbering requests are tiny
const maxBodyBytes = 64 << 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	serviceName := cfg.Telemetry.ServiceName

	// Logs are teed to the collector once the bridge is up
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := loggerProvider.Bridge(baseLog, logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	log.Info("Starting document numbering service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      serviceName,
		BasicAuthUser:        cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:    cfg.Profiling.BasicAuthPassword,
		ProfileTypes:         cfg.Profiling.ProfileTypes,
		MutexProfileFraction: cfg.Profiling.MutexProfileFraction,
		BlockProfileRate:     cfg.Profiling.BlockProfileRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		poolMetrics, err := telemetry.NewDBPoolMetrics(meterProvider.Meter("db.client"), sqlDB, cfg.Telemetry.MetricsInterval, log)
		if err != nil {
			log.Fatal("Failed to initialize pool metrics", zap.Error(err))
		}
		poolMetrics.Start(ctx)
		defer poolMetrics.Stop()
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Repositories
	sequenceRepo := persistence.NewGormSequenceRepository(db.DB, persistence.WithLockTimeout(cfg.Sequence.LockTimeout))
	companyCache, err := cache.NewCompanyCacheFactory(cfg.Redis, cfg.Sequence.CompanyCacheTTL, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create company cache", zap.Error(err))
	}
	defer func() { _ = companyCache.Close() }()
	companyRepo := cache.NewCachedCompanyRepository(
		persistence.NewGormCompanyRepository(db.DB), companyCache, cfg.Sequence.CompanyCacheTTL, log,
	)

	// Events
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appseq.NewAuditLogHandler(log))
	if cfg.Redis.Enabled && cfg.Redis.EventStream != "" {
		streamClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, sequence events are not streamed", zap.Error(err))
		} else {
			defer func() { _ = streamClient.Close() }()
			eventBus.Subscribe(event.NewRedisStreamForwarder(
				streamClient, cfg.Redis.EventStream, event.NewSequenceEventSerializer(),
				event.WithStreamLogger(log),
			))
			log.Info("Streaming sequence events", zap.String("stream", cfg.Redis.EventStream))
		}
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application
	sequenceMetrics, err := telemetry.NewSequenceMetrics(meterProvider.Meter("docnumber"))
	if err != nil {
		log.Fatal("Failed to initialize sequence metrics", zap.Error(err))
	}
	allocator, err := appseq.NewAllocator(appseq.AllocatorConfig{
		Sequences:      sequenceRepo,
		Companies:      companyRepo,
		Events:         eventBus,
		Metrics:        sequenceMetrics,
		Logger:         log,
		DefaultPattern: cfg.Sequence.DefaultPattern,
	})
	if err != nil {
		log.Fatal("Failed to create allocator", zap.Error(err))
	}
	numbers := appseq.NewRetryingAllocator(allocator, appseq.RetryConfig{
		InitialInterval: cfg.Sequence.RetryInitialInterval,
		MaxInterval:     cfg.Sequence.RetryMaxInterval,
		MaxElapsedTime:  cfg.Sequence.RetryMaxElapsed,
		MaxRetries:      uint64(max(cfg.Sequence.RetryMaxAttempts, 0)),
	}, log)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := newEngine(cfg, log, meterProvider)

	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = auth.NewJWTService(cfg.JWT)
	} else {
		log.Warn("jwt.secret is empty, bearer tokens are rejected")
	}
	if cfg.HTTP.AllowDevHeaders {
		log.Warn("Development identity headers are accepted")
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, sqlDB)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuth(middleware.JWTConfig{
			Service:         jwtService,
			AllowDevHeaders: cfg.HTTP.AllowDevHeaders,
			SkipPaths:       []string{"/api/v1/system/ping", "/api/v1/system/info"},
			Logger:          log,
		}),
		middleware.SpanAttributes(),
	)
	r.Register(handler.SequenceRoutes(handler.NewSequenceHandler(allocator, numbers), log)).
		Register(handler.CompanyRoutes(handler.NewCompanyHandler(companyRepo), log)).
		Register(handler.SystemRoutes(systemHandler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the global middleware stack:
// request id, panic recovery, tracing, request logging, metrics, security
// headers, CORS and the body limit.
func newEngine(cfg *config.Config, log *zap.Logger, meterProvider *telemetry.MeterProvider) *gin.Engine {
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(logger.RequestLogger(log, "/health"))
	if meterProvider.IsEnabled() {
		httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("http.server"))
		if err != nil {
			log.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
		}
		engine.Use(httpMetrics)
	}
	engine.Use(middleware.Secure())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORS(cors))
	engine.Use(middleware.BodyLimit(maxBodyBytes))
	return engine
}
