// Package main is the entry point for the quote-sync service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Configuration (fail fast)
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	// 2. Logging
	logger := bootstrap.NewLogger(cfg, os.Stdout)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Store.Driver),
	)

	// 3. Telemetry (noop if disabled) and Prometheus collectors
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Attributes: map[string]string{
			"quote_sync.store.driver":    cfg.Store.Driver,
			"quote_sync.remote.name":     cfg.Remote.Name,
			"quote_sync.conflict_policy": cfg.Sync.ConflictPolicy,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	syncMetrics, err := telemetry.NewSyncMetrics(promRegistry)
	if err != nil {
		return fmt.Errorf("registering sync metrics: %w", err)
	}

	// 4. Storage
	store, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("store close error", slog.Any("error", closeErr))
		}
	}()

	healthRegistry := ports.NewHealthRegistry()

	if checker, ok := store.(ports.HealthChecker); ok {
		if err := healthRegistry.Register(checker); err != nil {
			return fmt.Errorf("registering store health check: %w", err)
		}
	}

	// 5. Remote posts API (ACL over the resilient client)
	remote, err := bootstrap.NewRemote(cfg, logger)
	if err != nil {
		return err
	}

	if err := healthRegistry.Register(remote); err != nil {
		return fmt.Errorf("registering remote health check: %w", err)
	}

	// 6. Optional snapshot archive
	var archiver ports.SnapshotArchiver

	minioArchiver, err := bootstrap.NewArchiver(cfg.Archive, logger)
	if err != nil {
		return fmt.Errorf("creating snapshot archive: %w", err)
	}

	if minioArchiver != nil {
		archiver = minioArchiver

		if err := healthRegistry.Register(minioArchiver); err != nil {
			return fmt.Errorf("registering archive health check: %w", err)
		}
	}

	// 7. Notifications: logged and kept for GET /notifications
	feed := notify.NewFeed(cfg.Notify.Capacity, cfg.Notify.TTL)
	notifier := notify.Fanout{notify.NewLogNotifier(logger), feed}

	// 8. Application services
	records := app.NewRecordStore(app.RecordStoreConfig{
		Repository:   store,
		Logger:       logger,
		SeedDefaults: cfg.Store.SeedDefaults,
	})
	records.Load(ctx)

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       records,
		Preferences: store,
		Notifier:    notifier,
		Archiver:    archiver,
		Logger:      logger,
	})

	syncService := app.NewSyncService(app.SyncServiceConfig{
		Store:    records,
		Remote:   remote,
		Notifier: notifier,
		Metrics:  syncMetrics,
		Logger:   logger,
		Policy:   domain.ConflictPolicy(cfg.Sync.ConflictPolicy),
		Chooser:  bootstrap.ManualChoice(cfg.Sync.ManualChoice),
	})

	scheduler := app.NewScheduler(app.SchedulerConfig{
		Task: func(ctx context.Context) error {
			_, err := syncService.Sync(ctx)
			return err
		},
		Interval:     cfg.Sync.Interval,
		InitialDelay: cfg.Sync.InitialDelay,
		Timeout:      cfg.Sync.Timeout,
		Logger:       logger,
	})

	// 9. HTTP
	server := http.New(&cfg.Server, logger)

	var schedulerStatus handlers.SchedulerStatus
	if cfg.Sync.Enabled {
		schedulerStatus = scheduler
	}

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:      logger,
		ServiceName: cfg.Telemetry.ServiceName,
		Auth:        &cfg.Auth,
		RateLimit:   &cfg.RateLimit,
		Timeout:     http.DefaultRequestTimeout,
		SyncTimeout: cfg.Sync.Timeout,
		Health: handlers.NewHealthHandler(healthRegistry,
			handlers.NewBuildInfo(Version, Commit, BuildTime), promRegistry),
		Quotes:        handlers.NewQuoteHandler(quoteService),
		Sync:          handlers.NewSyncHandler(syncService, schedulerStatus),
		Notifications: handlers.NewNotificationHandler(feed),
	})

	// 10. Run until a signal or a fatal error
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.ListenAndServe)

	if cfg.Sync.Enabled {
		if err := scheduler.Start(gctx); err != nil {
			return fmt.Errorf("starting sync scheduler: %w", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("initiating graceful shutdown", slog.Duration("timeout", cfg.Server.ShutdownTimeout))

		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := records.Persist(shutdownCtx); err != nil {
			logger.Warn("final persist failed", slog.Any("error", err))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
