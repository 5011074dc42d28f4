package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/livepoll/internal/application/poller"
	"github.com/aescanero/livepoll/internal/config"
	"github.com/aescanero/livepoll/pkg/adapters/events/memory"
	"github.com/aescanero/livepoll/pkg/adapters/events/redis"
	"github.com/aescanero/livepoll/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/livepoll/pkg/api/http"
	"github.com/aescanero/livepoll/pkg/api/websocket"
	"github.com/aescanero/livepoll/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting livepoll",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("session_id", cfg.Session.ID))

	ctx := context.Background()

	// Initialize adapters
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := prometheus.NewCollector(registry)

	eventBus := memory.NewEventBus(cfg.EventBus.Capacity, metricsCollector, logger)

	var redisClient *goredis.Client
	var bridgeSub ports.Subscription
	if cfg.RedisEnabled() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		bridge := redis.NewStreamsBridge(
			redisClient,
			"livepoll",
			fmt.Sprintf("livepoll-%d", os.Getpid()),
			cfg.Redis.StreamMax,
			logger,
		)
		bridgeSub, err = bridge.Forward(ctx, eventBus, ports.EventChat)
		if err != nil {
			logger.Fatal("failed to start stream bridge", zap.Error(err))
		}
	}

	client := poller.NewClient(cfg.Session.BaseURL, cfg.Timeouts.Request, logger)

	sessionPoller, err := poller.NewPoller(
		poller.Config{
			SessionID:    cfg.Session.ID,
			PollInterval: cfg.PollInterval(),
		},
		client,
		eventBus,
		metricsCollector,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create session poller", zap.Error(err))
	}

	health := poller.NewHealthMonitor(sessionPoller, cfg.Session.HealthCheckInterval, metricsCollector, logger)

	// Initialize API server
	httpServer := http.NewServer(&http.Config{
		Addr:     cfg.GetHTTPAddr(),
		Session:  sessionPoller,
		Health:   health,
		Gatherer: registry,
		Logger:   logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Resolve the session and start polling
	if err := sessionPoller.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to session", zap.Error(err))
	}
	health.Start()

	logger.Info("livepoll started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.Duration("poll_interval", cfg.PollInterval()),
		zap.Bool("redis_bridge", cfg.RedisEnabled()))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	health.Stop()

	if err := sessionPoller.Shutdown(shutdownCtx); err != nil {
		logger.Error("session poller shutdown error", zap.Error(err))
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if bridgeSub != nil {
		bridgeSub.Close()
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("livepoll shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
