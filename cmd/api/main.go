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
	"skillfund/db"
	"skillfund/internal/cache"
	"skillfund/internal/handler"
	"skillfund/internal/httpserver"
	"skillfund/internal/repository"
	"skillfund/internal/service"
	pkgconfig "skillfund/pkg/config"
	pkgdb "skillfund/pkg/db"
	"skillfund/pkg/logger"
	"skillfund/pkg/otel"
	"skillfund/pkg/outbox"
	"skillfund/pkg/redis"
	"skillfund/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	log := logger.NewLogger("skillfund-api", pkgconfig.GetEnv("LOG_LEVEL", "info"))
	defer log.Sync()

	cfg, err := config.Load(pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if pkgconfig.GetConfigEnv() == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, "skillfund-api", cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := pkgdb.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	if pkgconfig.GetEnv("MIGRATE_ON_START", "false") == "true" {
		if _, err := pkgdb.Migrate(ctx, dbConn, db.Migrations, "migrations", log); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
	}

	// Redis 不可用时缓存降级为直接查库
	var (
		listingCache service.Cache = cache.Noop{}
		idem         service.Idempotency
	)
	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, listing cache and idempotency disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		listingCache = cache.NewListingCache(rdb, cfg.Redis.CacheTTL, log)
		idem = util.NewDeduper(rdb, idempotencyTTL, log)
	}

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	profileRepo := repository.NewProfileRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn, outboxRepo)
	proposalRepo := repository.NewProposalRepository(dbConn, outboxRepo)
	campaignRepo := repository.NewCampaignRepository(dbConn, outboxRepo)
	tierRepo := repository.NewRewardTierRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn, outboxRepo)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Services
	authService := service.NewAuthService(userRepo, profileRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)
	jobService := service.NewJobService(jobRepo, proposalRepo, listingCache, log)
	campaignService := service.NewCampaignService(campaignRepo, tierRepo, listingCache, idem, log)
	messageService := service.NewMessageService(messageRepo, profileRepo, log)
	profileService := service.NewProfileService(profileRepo, authService, log)
	notificationService := service.NewNotificationService(notificationRepo)
	dashboardService := service.NewDashboardService(profileRepo, jobRepo, proposalRepo, campaignRepo, notificationRepo)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:      handler.NewAuthHandler(authService, cfg.JWT.Secret, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Jobs:      handler.NewJobHandler(jobService, log),
		Campaigns: handler.NewCampaignHandler(campaignService, log),
		Messages:  handler.NewMessageHandler(messageService, log),
		Profile:   handler.NewProfileHandler(profileService, notificationService, log),
	}, cfg.JWT.Secret, profileRepo, dbConn, log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	<-ctx.Done()
	log.Info("Shutting down skillfund-api gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}
