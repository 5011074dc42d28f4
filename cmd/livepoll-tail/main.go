// Command livepoll-tail follows the chat updates a livepoll instance forwards
// to Redis and writes each raw update to stdout, one JSON document per line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/livepoll/pkg/adapters/events/redis"
	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/caarlos0/env/v10"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type tailConfig struct {
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	ConsumerGroup string `env:"TAIL_CONSUMER_GROUP" envDefault:"livepoll-tail"`
	Event         string `env:"TAIL_EVENT" envDefault:"chat"`
}

func main() {
	cfg := tailConfig{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}

	bridge := redis.NewStreamsBridge(client, cfg.ConsumerGroup, fmt.Sprintf("tail-%d", os.Getpid()), 0, logger)

	err = bridge.Consume(ctx, cfg.Event, func(_ context.Context, event ports.Event) error {
		_, err := fmt.Fprintf(os.Stdout, "%s\n", event.Data)
		return err
	})
	if err != nil {
		logger.Fatal("failed to follow stream", zap.Error(err))
	}

	<-ctx.Done()
}
