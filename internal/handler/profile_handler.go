package handler

import (
	"context"
	"net/http"
	"strconv"

	"skillfund/internal/model"
	"skillfund/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProfileService interface {
	Get(ctx context.Context, actor service.Actor) (*model.Profile, error)
	Update(ctx context.Context, actor service.Actor, in service.ProfileInput) (*service.ProfileUpdateResult, error)
}

type NotificationService interface {
	List(ctx context.Context, actor service.Actor, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, actor service.Actor, id int64) error
}

type ProfileHandler struct {
	profiles      ProfileService
	notifications NotificationService
	logger        *zap.Logger
}

func NewProfileHandler(profiles ProfileService, notifications NotificationService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, notifications: notifications, logger: logger}
}

// GetProfile handles GET /api/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p, "nav": service.Nav("/profile")})
}

// UpdateProfile handles PUT /api/profile. 角色变更时返回新 token
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req service.ProfileInput
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.profiles.Update(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgProfileUpdateFailed)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListNotifications handles GET /api/notifications?limit=
func (h *ProfileHandler) ListNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	list, err := h.notifications.List(c.Request.Context(), actor, intQuery(c, "limit"))
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *ProfileHandler) MarkNotificationRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err, "failed to update notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
