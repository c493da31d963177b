package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillfund/config"
	"skillfund/internal/mqhandler"
	"skillfund/internal/repository"
	pkgconfig "skillfund/pkg/config"
	"skillfund/pkg/db"
	"skillfund/pkg/logger"
	"skillfund/pkg/mq"
	"skillfund/pkg/otel"
	"skillfund/pkg/outbox"
	"skillfund/pkg/redis"
	"skillfund/pkg/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.NewLogger("skillfund-worker", pkgconfig.GetEnv("LOG_LEVEL", "info"))
	defer log.Sync()

	cfg, err := config.Load(pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting worker service...")

	shutdownTracing, err := otel.Init(ctx, "skillfund-worker", cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Redis
	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour, mqhandler.MaxRetries)

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL, "skillfund-worker")
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	outboxRepo := outbox.NewRepository(dbConn)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)

	notifyHandler := mqhandler.NewNotificationHandler(
		repository.NewNotificationRepository(dbConn),
		deduper,
		retryCounter,
		publisher,
		log,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Start(gctx)
	})

	for _, key := range mqhandler.RoutingKeys() {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, key, log)
		if err != nil {
			log.Fatal("Consumer init failed", zap.String("queue", mq.NotifyQueue(key)), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(notifyHandler.For(key))

		g.Go(func() error {
			return consumer.StartConsuming(gctx)
		})
	}

	if addr := cfg.Server.MetricsPort; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("Worker running")
	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
	}
	log.Info("Worker shutdown complete")
}
