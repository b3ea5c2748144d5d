package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	inventoryapp "github.com/reseller/backend/internal/application/inventory"
	pricingapp "github.com/reseller/backend/internal/application/pricing"
	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/infrastructure/cache"
	"github.com/reseller/backend/internal/infrastructure/config"
	"github.com/reseller/backend/internal/infrastructure/event"
	"github.com/reseller/backend/internal/infrastructure/ingest"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/infrastructure/scheduler"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting pricing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Pricing engine stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Pricing engine exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Telemetry providers
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		return err
	}
	stats, err := db.Stats()
	if err != nil {
		return err
	}
	log.Info("Database connected successfully",
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)

	// Repositories
	referenceRepo := persistence.NewGormReferenceRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	journal := persistence.NewGormJournal(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)
	offerRepo := persistence.NewGormOfferRepository(db.DB)

	// Ledger
	ledger := inventory.NewLedger(
		inventory.WithJournal(journal),
		inventory.WithLockWait(cfg.Ledger.LockWait),
		inventory.WithDriftTolerance(cfg.Ledger.DriftTolerance),
		inventory.WithDedupRetention(cfg.Ledger.DedupRetention),
	)

	metrics, err := telemetry.NewEngineMetrics(mp.Meter("pricing-engine"), ledger.LockTimeouts)
	if err != nil {
		return err
	}
	defer func() {
		_ = metrics.Close()
	}()

	// Reference data cache; every reload hands the new graph to the ledger
	refCache := cache.NewReferenceCache(referenceRepo, catalogRepo,
		cache.WithCacheLogger(log),
		cache.WithReloadHook(func(_ *reference.Snapshot, graph *catalog.Graph) {
			ledger.SetResolver(graph)
		}),
	)
	if _, _, err := refCache.Current(ctx); err != nil {
		return err
	}

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	stockChanged := pricingapp.NewStockChangedHandler(log)
	eventBus.Subscribe(stockChanged)
	eventBus.Subscribe(inventoryapp.NewDriftDetectedHandler(log).
		WithNotifier(inventoryapp.NewLoggingDriftNotifier(log)))

	ledgerService := inventoryapp.NewLedgerService(ledger, log,
		inventoryapp.WithJournal(journal),
		inventoryapp.WithSnapshotRepository(snapshotRepo),
		inventoryapp.WithEventPublisher(eventBus),
		inventoryapp.WithMetrics(metrics),
		inventoryapp.WithParallelism(cfg.Ledger.BatchParallelism),
		inventoryapp.WithRetry(inventoryapp.RetryConfig{
			MaxRetries:      uint64(cfg.Ledger.MaxRetries),
			InitialInterval: cfg.Ledger.RetryInitialInterval,
			MaxInterval:     cfg.Ledger.RetryMaxInterval,
		}),
	)
	if err := ledgerService.Restore(ctx); err != nil {
		return err
	}

	pricingOpts, err := cfg.Engine.PricingOptions()
	if err != nil {
		return err
	}
	policy, err := cfg.Engine.FallbackPolicy()
	if err != nil {
		return err
	}
	repricingService := pricingapp.NewRepricingService(pricingapp.Config{
		Options:        pricingOpts,
		FallbackPolicy: policy,
		DefaultRuleID:  cfg.Engine.DefaultPricingRule,
	}, refCache, ledgerService, offerRepo, log)
	repricingService.SetEventPublisher(eventBus)
	repricingService.SetMetrics(metrics)

	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
		if failures := eventBus.Failures(); failures > 0 {
			log.Warn("Event handlers failed during run", zap.Int64("failures", failures))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Redis: event forwarding, cache invalidation and ingestion
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = rdb.Close()
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))

		eventBus.Subscribe(event.NewRedisEventForwarder(rdb, event.NewEngineSerializer(),
			event.WithForwarderLogger(log),
		))

		invalidator := cache.NewRedisInvalidator(rdb,
			cache.WithInvalidatorChannel(cfg.Cache.InvalidationChannel),
			cache.WithInvalidatorLogger(log),
		)
		defer func() {
			_ = invalidator.Close()
		}()
		g.Go(func() error {
			return ignoreCancel(invalidator.Subscribe(gctx, refCache.HandleInvalidation(gctx)))
		})

		if cfg.Ingest.Enabled {
			consumer := ingest.NewConsumer(rdb, ingest.NewDecoder(), ledgerService,
				ingest.WithQueues(cfg.Ingest.Queue, cfg.Ingest.DeadLetterQueue),
				ingest.WithPollTimeout(cfg.Ingest.PollTimeout),
				ingest.WithMaxBatch(cfg.Ingest.MaxBatch),
				ingest.WithConsumerLogger(log),
			)
			g.Go(func() error {
				return ignoreCancel(consumer.Run(gctx))
			})
		}
	}

	// Repricing scheduler
	if cfg.Scheduler.Enabled {
		schedulerConfig := scheduler.Config{
			Enabled:           cfg.Scheduler.Enabled,
			MaxConcurrentJobs: 2,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
			SweepInterval:     cfg.Scheduler.SweepInterval,
			DirtyInterval:     cfg.Scheduler.DirtyInterval,
		}
		executor := scheduler.NewRepricingExecutor(repricingService, stockChanged, log)
		repricingScheduler := scheduler.NewScheduler(schedulerConfig, executor, log)
		if err := repricingScheduler.Start(gctx); err != nil {
			return err
		}
		trigger := scheduler.NewIntervalTrigger(schedulerConfig, repricingScheduler, log)
		if err := trigger.Start(gctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Error("Error stopping interval trigger", zap.Error(err))
			}
			if err := repricingScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping repricing scheduler", zap.Error(err))
			}
		}()
		log.Info("Repricing scheduler started",
			zap.Duration("sweep_interval", cfg.Scheduler.SweepInterval),
			zap.Duration("dirty_interval", cfg.Scheduler.DirtyInterval),
		)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down pricing engine...")
		return nil
	})
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
