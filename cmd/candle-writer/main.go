package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridianfx/candle-writer/internal/bus"
	"github.com/meridianfx/candle-writer/internal/candle"
	"github.com/meridianfx/candle-writer/internal/config"
	"github.com/meridianfx/candle-writer/internal/health"
	"github.com/meridianfx/candle-writer/internal/ingestion"
	"github.com/meridianfx/candle-writer/internal/middleware"
	"github.com/meridianfx/candle-writer/internal/parser"
	"github.com/meridianfx/candle-writer/internal/persistence"
	"github.com/meridianfx/candle-writer/internal/registry"
	"github.com/meridianfx/candle-writer/internal/tablestore"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Candle Writer",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.String("bus_url", cfg.BusURL),
		zap.Int("minute_limit", cfg.MinuteLimit),
		zap.Int("hour_limit", cfg.HourLimit),
		zap.Duration("checkpoint_interval", cfg.CheckpointInterval),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the two table-store accounts
	bidStore, err := connectTableStore(ctx, cfg.BidDatabaseURL, cfg, logger.Named("bid_store"))
	if err != nil {
		logger.Fatal("Failed to connect bid storage", zap.Error(err))
	}
	defer bidStore.Close()

	askStore, err := connectTableStore(ctx, cfg.AskDatabaseURL, cfg, logger.Named("ask_store"))
	if err != nil {
		logger.Fatal("Failed to connect ask storage", zap.Error(err))
	}
	defer askStore.Close()

	// Message bus clients: one connection consuming, one publishing
	subClient := redis.NewClient(&redis.Options{Addr: cfg.BusURL})
	pubClient := redis.NewClient(&redis.Options{Addr: cfg.BusURL})
	if err := pubClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to bus", zap.Error(err))
	}

	// Build the engine components
	metrics := ingestion.NewMetrics("candle_writer")
	store := candle.NewStore(cfg.MinuteLimit, cfg.HourLimit)
	reg := registry.New(bidStore, logger.Named("registry"))
	engine := persistence.NewEngine(bidStore, askStore,
		persistence.WithEngineLogger(logger.Named("persistence")),
	)

	publisher := bus.NewRedisPublisher(pubClient, cfg.SnapshotChannel, logger.Named("publisher"))
	reader := bus.NewRedisReader(subClient, cfg.TickChannel,
		bus.WithReaderLogger(logger.Named("bus")),
		bus.WithReconnectHook(metrics.RecordBusReconnect),
	)

	pipeline := ingestion.NewPipeline(reader, parser.NewJSONTickParser(), publisher, store, reg,
		logger.Named("pipeline"), metrics,
		ingestion.PipelineConfig{BufferSize: cfg.BufferSize},
	)
	defer pipeline.Close()

	// Start the ops server before restore so probes answer early;
	// readiness flips once restore finishes.
	var restored atomic.Bool
	opsServer := startOpsServer(cfg.HealthCheckPort, logger, func() bool {
		return restored.Load() && pubClient.Ping(ctx).Err() == nil
	})
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Ops server shutdown error", zap.Error(err))
		}
	}()

	// Restore caches before any tick processing begins
	latest, restoredCount, err := persistence.Restore(ctx, store, reg, engine,
		cfg.MinuteLimit, cfg.HourLimit, logger.Named("restore"))
	if err != nil {
		logger.Fatal("Failed to restore candles", zap.Error(err))
	}
	metrics.RecordCandlesRestored(restoredCount)
	restored.Store(true)

	// Start the checkpoint loop from the newest restored bucket
	checkpointer := persistence.NewCheckpointer(store, reg, engine,
		cfg.CheckpointInterval, latest, logger.Named("checkpoint"),
		persistence.WithCheckpointObserver(metrics),
	)
	go func() {
		_ = checkpointer.Run(ctx)
	}()

	// Start pipeline in background
	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- pipeline.Run(ctx)
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel() // Trigger graceful shutdown
	case err := <-pipelineDone:
		if err != nil {
			logger.Error("Pipeline error", zap.Error(err))
		}
	}

	// Wait for pipeline to finish (with timeout)
	shutdownTimer := time.NewTimer(30 * time.Second)
	defer shutdownTimer.Stop()

	select {
	case err := <-pipelineDone:
		if err != nil {
			logger.Error("Pipeline shutdown with error", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Pipeline shut down successfully")
	case <-shutdownTimer.C:
		logger.Warn("Pipeline shutdown timed out after 30 seconds")
		os.Exit(1)
	}

	logger.Info("Candle Writer stopped")
}

// initLogger creates a zap logger based on environment.
func initLogger(environment string) (*zap.Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// connectTableStore creates a pgx pool for one storage account and
// wraps it as a table store.
func connectTableStore(ctx context.Context, databaseURL string, cfg *config.Config, logger *zap.Logger) (tablestore.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to table storage",
		zap.Int32("max_connections", poolConfig.MaxConns),
		zap.Int32("min_connections", poolConfig.MinConns),
	)

	return tablestore.NewPostgres(pool,
		tablestore.WithLogger(logger),
		tablestore.WithWriteLimit(cfg.WriteRateLimit, tablestore.MaxBatchSize),
	), nil
}

// startOpsServer starts the HTTP server for probes and metrics.
func startOpsServer(port int, logger *zap.Logger, ready func() bool) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger.Named("http")))

	r.Get("/health", health.Handler())
	r.Get("/ready", health.ReadyHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		logger.Info("Ops server started", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Ops server error", zap.Error(err))
		}
	}()

	return server
}
