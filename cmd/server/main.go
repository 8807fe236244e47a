// Command server runs the fiscal document API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	saftapp "github.com/kwanza/fiscal/internal/application/saft"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/auth"
	"github.com/kwanza/fiscal/internal/infrastructure/cache"
	"github.com/kwanza/fiscal/internal/infrastructure/certification"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/kwanza/fiscal/internal/infrastructure/event"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/infrastructure/migration"
	"github.com/kwanza/fiscal/internal/infrastructure/persistence"
	"github.com/kwanza/fiscal/internal/infrastructure/saft"
	"github.com/kwanza/fiscal/internal/infrastructure/sequence"
	"github.com/kwanza/fiscal/internal/infrastructure/storage"
	"github.com/kwanza/fiscal/internal/infrastructure/telemetry"
	"github.com/kwanza/fiscal/internal/interfaces/http/handler"
	"github.com/kwanza/fiscal/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.FromAppConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting fiscal service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		return fmt.Errorf("init profiler: %w", err)
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init logger provider: %w", err)
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = loggerProvider.Bridge(log, exportLevel)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Logger provider shutdown failed", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}()

	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
	}
	var fiscalMetrics *telemetry.FiscalMetrics
	if meter != nil {
		fiscalMetrics, err = telemetry.NewFiscalMetrics(meter, log)
		if err != nil {
			return fmt.Errorf("init fiscal metrics: %w", err)
		}
	}

	// Database. Outside production the server starts without one and
	// answers fiscal requests with STORAGE_UNAVAILABLE.
	db, dbErr := openDatabase(cfg, log)
	if dbErr != nil {
		if cfg.IsProduction() {
			return dbErr
		}
		log.Warn("Starting in degraded mode without a database", zap.Error(dbErr))
	} else {
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
	}

	// Redis is shared by the sequence allocator and the idempotency store
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Certification
	signer, err := certification.NewSignerFromConfig(cfg.Fiscal, cfg.IsProduction(), log)
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}
	certifier := fiscal.NewCertifier(signer,
		fiscal.WithValidationCode(cfg.Fiscal.ValidationCode),
		fiscal.WithSeriesValidationCodes(cfg.Fiscal.ValidationCodes),
	)

	var (
		scope     fiscalapp.TransactionScope
		documents fiscal.DocumentRepository
		probe     handler.DatabaseProbe
	)
	if db != nil {
		scopeOpts, err := sequenceOptions(cfg, redisClient, log)
		if err != nil {
			return err
		}
		scope = persistence.NewGormTransactionScope(db.DB, scopeOpts...)
		documents = persistence.NewGormFiscalDocumentRepository(db.DB)
		probe = db
	} else {
		unavailable := persistence.NewUnavailableStore(dbErr)
		scope, documents, probe = unavailable, unavailable, unavailable
	}

	// Events
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditLogHandler(log))

	fiscalOpts := []fiscalapp.FiscalServiceOption{
		fiscalapp.WithLogger(log),
		fiscalapp.WithEventPublisher(bus),
		fiscalapp.WithStorageTimeout(cfg.Fiscal.StorageTimeout),
		fiscalapp.WithDefaultCurrency(cfg.Fiscal.DefaultCurrency),
	}
	if cfg.Fiscal.IdempotencyEnabled {
		factoryOpts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(log)}
		if redisClient != nil {
			factoryOpts = append(factoryOpts, cache.WithRedisClient(redisClient))
		}
		store := cache.NewIdempotencyStoreFactory(factoryOpts...).CreateStore()
		defer func() {
			_ = store.Close()
		}()
		fiscalOpts = append(fiscalOpts, fiscalapp.WithIdempotencyStore(store, shared.IdempotencyConfig{
			Enabled: true,
			TTL:     cfg.Fiscal.IdempotencyTTL,
		}))
	}
	if fiscalMetrics != nil {
		fiscalOpts = append(fiscalOpts, fiscalapp.WithMetrics(fiscalMetrics))
	}
	fiscalService := fiscalapp.NewFiscalService(scope, documents, certifier, fiscalOpts...)

	exportOpts := []saftapp.ExportServiceOption{
		saftapp.WithExportLogger(log),
		saftapp.WithQueryTimeout(cfg.Fiscal.ExportTimeout),
		saftapp.WithKeyVersion(cfg.Fiscal.KeyVersion),
	}
	if fiscalMetrics != nil {
		exportOpts = append(exportOpts, saftapp.WithExportMetrics(fiscalMetrics))
	}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return fmt.Errorf("init archive storage: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure archive bucket: %w", err)
		}
		exportOpts = append(exportOpts,
			saftapp.WithArchive(archive),
			saftapp.WithArchivePrefix(cfg.Storage.KeyPrefix))
	}
	exportService := saftapp.NewExportService(documents, saft.NewXMLWriter(), companyInfo(cfg.Fiscal), exportOpts...)

	// HTTP
	system := handler.NewSystemHandler(cfg.App.Name, Version, probe)
	if redisClient != nil {
		system.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	engine, err := router.NewEngine(router.Dependencies{
		Config:   cfg,
		Logger:   log,
		Verifier: auth.NewJWTService(cfg.JWT),
		Meter:    meter,
	}, router.Handlers{
		Fiscal:    handler.NewFiscalHandler(fiscalService),
		SAFT:      handler.NewSAFTHandler(exportService),
		Reference: handler.NewReferenceHandler(),
		System:    system,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

// openDatabase connects with the zap-backed GORM logger, installs query
// tracing and applies the embedded migrations when enabled.
func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	opts := []persistence.DatabaseOption{persistence.WithGormLogger(gormLog)}
	if cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		opts = append(opts, persistence.WithPlugin(telemetry.NewDBTracingPlugin(tracingCfg, log)))
	}

	db, err := persistence.NewDatabase(&cfg.Database, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		sqlDB, err := db.DB.DB()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		// Closing the migrator would close the shared *sql.DB.
		m, err := migration.NewEmbedded(sqlDB, log)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init migrator: %w", err)
		}
		if err := m.Up(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return db, nil
}

// sequenceOptions selects the allocator that numbers documents. The
// database backend is the scope's default and needs no option.
func sequenceOptions(cfg *config.Config, redisClient *redis.Client, log *zap.Logger) ([]persistence.TransactionScopeOption, error) {
	switch cfg.Fiscal.SequenceBackend {
	case config.SequenceBackendRedis:
		if redisClient == nil {
			return nil, errors.New("fiscal.sequence_backend is redis but redis is disabled")
		}
		log.Info("Using Redis sequence allocator")
		return []persistence.TransactionScopeOption{
			persistence.WithSeriesReserver(sequence.NewRedisAllocator(redisClient, "",
				sequence.WithLockTTL(max(30*time.Second, 3*cfg.Fiscal.StorageTimeout)))),
		}, nil
	case config.SequenceBackendMemory:
		log.Warn("Using in-memory sequence allocator, numbering restarts with the process")
		return []persistence.TransactionScopeOption{
			persistence.WithSeriesReserver(sequence.NewMemoryAllocator()),
		}, nil
	default:
		log.Info("Using database sequence allocator")
		return nil, nil
	}
}

func companyInfo(f config.FiscalConfig) saftapp.CompanyInfo {
	return saftapp.CompanyInfo{
		TaxRegistrationNumber:    f.CompanyTaxID,
		CompanyName:              f.CompanyName,
		AddressDetail:            f.CompanyAddress,
		City:                     f.CompanyCity,
		ProductCompanyTaxID:      f.ProductCompanyTaxID,
		SoftwareValidationNumber: f.SoftwareValidationNumber,
		ProductID:                f.ProductID,
		ProductVersion:           f.ProductVersion,
	}
}
