package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"storefront/docs"
	"storefront/pkg/api"
	"storefront/pkg/catalog"
	"storefront/pkg/config"
	"storefront/pkg/events"
	"storefront/pkg/idempotency"
	"storefront/pkg/logger"
	"storefront/pkg/order"
	"storefront/pkg/otel"
	"storefront/pkg/store/memory"
	pg "storefront/pkg/store/postgres"
)

// repository is what both services need from a store.
type repository interface {
	catalog.Repository
	order.Repository
}

// @title Storefront API
// @version 1.0
// @description Product catalog and order placement
// @BasePath /
func main() {
	cfg := config.Load()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, level, cfg.ServiceName, otel.GetTraceID)

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "startup", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.OtelLogsEndpoint != "" {
		core, shutdownLogs, err := otel.InitLogging(ctx, otel.LogConfig{ServiceName: cfg.ServiceName, Endpoint: cfg.OtelLogsEndpoint})
		if err != nil {
			return fmt.Errorf("init log export: %w", err)
		}
		defer shutdownLogs(context.Background())
		log = log.Tee(core)
	}

	tp, shutdownTracing, err := otel.InitTracing(log, otel.Config{
		ServiceName: cfg.ServiceName,
		Host:        cfg.OtelHost,
		Stdout:      cfg.OtelStdout,
		Probability: cfg.OtelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var idem idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		idem = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
		log.Info(ctx, "idempotency keys stored in redis", "addr", cfg.RedisAddr)
	} else {
		idem = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	var publisher order.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderTopic, tp)
		if err != nil {
			return err
		}
		defer kp.Close()
		publisher = kp
		log.Info(ctx, "publishing order events", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderTopic)
	}

	docs.SwaggerInfo.BasePath = "/"
	if cfg.BaseRoute != "" {
		docs.SwaggerInfo.BasePath = cfg.BaseRoute
	}

	handler := api.NewRouter(api.Config{
		BaseRoute:   cfg.BaseRoute,
		ServiceName: cfg.ServiceName,
		Log:         log,
		Tracer:      tp.Tracer(cfg.ServiceName),
		Catalog:     catalog.NewService(repo, log),
		Orders:      order.NewService(repo, log, order.WithPublisher(publisher)),
		Idempotency: idem,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "base_route", cfg.BaseRoute, "tls", cfg.TLS())
		if cfg.TLS() {
			serverErr <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server closed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (repository, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn(ctx, "using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if err := pg.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info(ctx, "postgres store ready")
	return pg.New(db), func() { db.Close() }, nil
}
