package handler

import (
	"errors"
	"net/http"
	"strconv"

	"skillfund/internal/service"
	"skillfund/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// gin context keys set by the auth middleware
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// ActorFrom returns the authenticated caller stored by the auth middleware.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	raw, ok := c.Get(CtxUserID)
	if !ok {
		return service.Actor{}, false
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: c.GetString(CtxRole)}, true
}

func mustActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return actor, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

// respondError writes the status for a service error. Unexpected errors are
// logged and answered with the page's toast message.
func respondError(c *gin.Context, log *zap.Logger, err error, toast string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var serr *service.Error
	if errors.As(err, &serr) {
		switch {
		case errors.Is(serr.Kind, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": serr.Message})
			return
		case errors.Is(serr.Kind, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": serr.Message})
			return
		case errors.Is(serr.Kind, service.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": serr.Message})
			return
		}
	}

	logger.WithTrace(c.Request.Context(), log).Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": toast})
}
