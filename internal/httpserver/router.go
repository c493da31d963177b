package httpserver

import (
	"context"
	"net/http"
	"time"

	"skillfund/internal/handler"
	"skillfund/pkg/otel"
	"skillfund/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Jobs      *handler.JobHandler
	Campaigns *handler.CampaignHandler
	Messages  *handler.MessageHandler
	Profile   *handler.ProfileHandler
}

func NewRouter(h Handlers, jwtSecret string, roles RoleLookup, db Pinger, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware(), RequestLogger(log))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public
	api.GET("/landing", handler.GetLanding)
	api.POST("/auth/signup", h.Auth.Signup)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/session", h.Auth.Session)

	// Protected
	auth := api.Group("/")
	auth.Use(AuthMiddleware(jwtSecret, roles, log))
	{
		auth.GET("/dashboard", h.Dashboard.GetDashboard)

		auth.GET("/jobs", h.Jobs.ListJobs)
		auth.POST("/jobs", RequirePermission(rbac.PermissionPostJob), h.Jobs.PostJob)
		auth.GET("/jobs/:id", h.Jobs.GetJob)
		auth.GET("/jobs/:id/proposals", h.Jobs.ListJobProposals)
		auth.POST("/jobs/:id/proposals", RequirePermission(rbac.PermissionSubmitProposal), h.Jobs.SubmitProposal)
		auth.POST("/proposals/:id/status", RequirePermission(rbac.PermissionReviewProposal), h.Jobs.DecideProposal)
		auth.GET("/my/jobs", h.Jobs.ListMyJobs)
		auth.GET("/my/proposals", h.Jobs.ListMyProposals)

		auth.GET("/campaigns", h.Campaigns.ListCampaigns)
		auth.POST("/campaigns", RequirePermission(rbac.PermissionCreateCampaign), h.Campaigns.CreateCampaign)
		auth.GET("/campaigns/:id", h.Campaigns.GetCampaign)
		auth.POST("/campaigns/:id/back", RequirePermission(rbac.PermissionBackCampaign), h.Campaigns.BackCampaign)
		auth.GET("/campaigns/:id/rewards", h.Campaigns.ListRewardTiers)
		auth.POST("/campaigns/:id/rewards", RequirePermission(rbac.PermissionManageRewards), h.Campaigns.CreateRewardTier)
		auth.GET("/my/campaigns", h.Campaigns.ListMyCampaigns)
		auth.GET("/my/contributions", h.Campaigns.ListMyContributions)

		auth.GET("/messages/contacts", h.Messages.Contacts)
		auth.GET("/messages/:contactId", h.Messages.Conversation)
		auth.POST("/messages/:contactId", h.Messages.Send)

		auth.GET("/profile", h.Profile.GetProfile)
		auth.PUT("/profile", h.Profile.UpdateProfile)
		auth.GET("/notifications", h.Profile.ListNotifications)
		auth.POST("/notifications/:id/read", h.Profile.MarkNotificationRead)
	}

	return r
}
