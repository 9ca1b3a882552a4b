package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/econia-labs/aptos-indexer-processors/internal/adapter"
	"github.com/econia-labs/aptos-indexer-processors/internal/config"
	"github.com/econia-labs/aptos-indexer-processors/internal/logger"
	"github.com/econia-labs/aptos-indexer-processors/internal/processor"
	"github.com/econia-labs/aptos-indexer-processors/internal/store"
	"github.com/econia-labs/aptos-indexer-processors/internal/stream"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:       cfg.Debug,
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Environment,
		Tags: map[string]string{
			"service": "market-indexer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting market indexer", zap.String("processor", cfg.Processor.Name))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	logger.Info("Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewPGStore(db)

	// Resume after the durable checkpoint; a configured starting version
	// only applies when it is further along.
	startAfter := cfg.Processor.StartingVersion - 1
	checkpoint, err := dataStore.GetCheckpoint(ctx, cfg.Processor.Name)
	if err != nil {
		logger.Fatal("Failed to read checkpoint", zap.Error(err))
	}
	if checkpoint != nil && checkpoint.LastSuccessVersion > startAfter {
		startAfter = checkpoint.LastSuccessVersion
	}
	logger.Info("Resuming from checkpoint", zap.Int64("start_after", startAfter))

	// Connect to NATS and bind the durable consumer
	source, js, err := stream.NewNATSSource(ctx, stream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		ConsumerName:   cfg.NATS.ConsumerName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
		AckWait:        cfg.NATS.AckWait,
		MaxDeliver:     cfg.NATS.MaxDeliver,
		FetchBatchSize: cfg.NATS.FetchBatchSize,
		FetchMaxWait:   cfg.NATS.FetchMaxWait,
	}, adapter.NewNatsJetStream(), startAfter)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer source.Close()
	logger.Info("Connected to NATS",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName),
	)

	var notifier stream.CommitNotifier = stream.NopNotifier{}
	if cfg.NATS.PublishCommits {
		notifier = stream.NewNATSNotifier(js, cfg.NATS.CommitSubject)
	}

	coord := processor.NewCoordinator(
		processor.Config{
			ProcessorName:        cfg.Processor.Name,
			MalformedEventPolicy: cfg.Processor.MalformedEventPolicy,
			RetryInitialInterval: cfg.Processor.RetryInitialInterval,
			RetryMaxInterval:     cfg.Processor.RetryMaxInterval,
			RetryMaxElapsedTime:  cfg.Processor.RetryMaxElapsedTime,
		},
		dataStore,
		source,
		notifier,
		adapter.NewClock(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		// Run returns once the batch in flight, if any, has committed.
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(err, zap.String("component", "coordinator"))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(err, zap.String("component", "coordinator"))
		}
		cancel()
	}

	logger.Info("Market indexer stopped")
}
