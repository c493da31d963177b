package handler

import (
	"context"
	"net/http"

	"skillfund/internal/service"
	"skillfund/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
}

type AuthHandler struct {
	authService AuthService
	jwtSecret   string
	logger      *zap.Logger
}

func NewAuthHandler(authService AuthService, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupInput
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to create account")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err, "failed to sign in")
		return
	}
	c.JSON(http.StatusOK, res)
}

// Session handles GET /api/session. 已登录跳转 /dashboard，否则 /auth
func (h *AuthHandler) Session(c *gin.Context) {
	token := util.ExtractToken(c.Request)
	if token != "" {
		if claims, err := util.ParseJWT(token, h.jwtSecret); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"authenticated": true,
				"user_id":       claims.UserID,
				"role":          claims.Role,
				"redirect":      "/dashboard",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false, "redirect": "/auth"})
}
