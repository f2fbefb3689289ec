package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/db"
	"stockledger/internal/events"
	httpapi "stockledger/internal/http"
	"stockledger/internal/lock"
	"stockledger/internal/logging"
	"stockledger/internal/repository"
	"stockledger/internal/repository/memory"
	"stockledger/internal/repository/postgres"
	"stockledger/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.Development(),
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithShortfallPolicy(cfg.Shortfall),
		service.WithDrainPolicy(cfg.Drain),
		service.WithOperator(cfg.Operator),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("could not connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer client.Close()
		opts = append(opts, service.WithLocker(lock.NewRedisLocker(client, logger)))
		logger.Info("product locks backed by redis", zap.String("addr", cfg.RedisAddr))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		logger.Info("publishing ledger events",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	svc := service.New(store, opts...)
	handler := httpapi.NewHandler(svc, logger)
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("stockledger listening", zap.String("addr", server.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Warn("force close failed", zap.Error(closeErr))
		}
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return postgres.New(pool), nil
	default:
		logger.Warn("using the in-memory store; data is lost on restart")
		return memory.New(), nil
	}
}
