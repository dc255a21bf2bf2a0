package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"headline_aggregator/internal/config"
	"headline_aggregator/internal/provider"
	"headline_aggregator/internal/publisher"
	"headline_aggregator/internal/quota"
	"headline_aggregator/internal/scheduler"
	"headline_aggregator/internal/service"
	"headline_aggregator/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Optional downstream publisher for newly stored articles
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	// Initialize stores and quota tracker
	articleStore := postgres.NewArticleStore(db)
	quotaStore := postgres.NewQuotaStateStore(db)
	tracker := quota.NewTracker(quotaStore)

	providers, err := buildProviders(cfg.Providers, logger)
	if err != nil {
		logger.Error("failed to build providers", "error", err)
		os.Exit(1)
	}

	orchestrator := service.NewOrchestrator(
		providers,
		articleStore,
		tracker,
		pub,
		logger,
		cfg.Fetch,
	)

	sched := scheduler.NewScheduler(orchestrator, cfg.Fetch.StartupDelay, cfg.Fetch.Interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting headline aggregator",
		"providers", len(providers),
		"interval", cfg.Fetch.Interval,
		"cache_window", cfg.Fetch.CacheWindow,
	)

	err = sched.Start(ctx)
	orchestrator.Close()
	if err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func buildProviders(cfgs []config.ProviderConfig, logger *slog.Logger) ([]service.Provider, error) {
	providers := make([]service.Provider, 0, len(cfgs))

	for _, cfg := range cfgs {
		var client service.ProviderClient
		switch cfg.Type {
		case "newsapi":
			client = provider.NewNewsAPIClient(cfg, nil, logger)
		case "mediastack":
			client = provider.NewMediaStackClient(cfg, nil, logger)
		default:
			return nil, fmt.Errorf("unknown provider type %q for %q", cfg.Type, cfg.Name)
		}

		providers = append(providers, service.Provider{
			Client:   client,
			Cap:      cfg.RequestCap,
			Cooldown: cfg.Cooldown,
			Retry:    cfg.Retry,
		})
	}

	return providers, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
