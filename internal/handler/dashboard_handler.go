package handler

import (
	"context"
	"net/http"

	"skillfund/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardService interface {
	Build(ctx context.Context, actor service.Actor) (*service.Dashboard, error)
}

type DashboardHandler struct {
	dashboard DashboardService
	logger    *zap.Logger
}

func NewDashboardHandler(dashboard DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	d, err := h.dashboard.Build(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}
