package handler

import (
	"context"
	"net/http"

	"skillfund/internal/model"
	"skillfund/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CampaignService interface {
	List(ctx context.Context, query string) ([]*service.CampaignView, error)
	Get(ctx context.Context, id uuid.UUID) (*service.CampaignView, error)
	ListMine(ctx context.Context, actor service.Actor) ([]*service.CampaignView, error)
	Create(ctx context.Context, actor service.Actor, in service.CampaignInput) (*service.CampaignView, error)
	Back(ctx context.Context, actor service.Actor, campaignID uuid.UUID, in service.BackInput) (*service.BackResult, error)
	ListMyContributions(ctx context.Context, actor service.Actor) ([]*model.Contribution, error)
	ListRewardTiers(ctx context.Context, campaignID uuid.UUID) ([]*model.RewardTier, error)
	CreateRewardTier(ctx context.Context, actor service.Actor, campaignID uuid.UUID, in service.RewardTierInput) (*model.RewardTier, error)
}

type CampaignHandler struct {
	campaigns CampaignService
	logger    *zap.Logger
}

func NewCampaignHandler(campaigns CampaignService, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, logger: logger}
}

// ListCampaigns handles GET /api/campaigns?q=
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	list, err := h.campaigns.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch campaigns")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaigns":  list,
		"categories": model.CampaignCategories,
	})
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	camp, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": camp})
}

func (h *CampaignHandler) ListMyCampaigns(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	list, err := h.campaigns.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch campaigns")
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

// CreateCampaign handles POST /api/campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req service.CampaignInput
	if !bindJSON(c, &req) {
		return
	}

	camp, err := h.campaigns.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgCampaignCreateFailed)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": camp, "message": service.MsgCampaignCreated})
}

// BackCampaign handles POST /api/campaigns/:id/back
func (h *CampaignHandler) BackCampaign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.BackInput
	if !bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)

	res, err := h.campaigns.Back(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgBackFailed)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *CampaignHandler) ListMyContributions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	list, err := h.campaigns.ListMyContributions(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch contributions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": list})
}

func (h *CampaignHandler) ListRewardTiers(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tiers, err := h.campaigns.ListRewardTiers(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch reward tiers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward_tiers": tiers})
}

// CreateRewardTier handles POST /api/campaigns/:id/rewards
func (h *CampaignHandler) CreateRewardTier(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.RewardTierInput
	if !bindJSON(c, &req) {
		return
	}

	tier, err := h.campaigns.CreateRewardTier(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgRewardTierFailed)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reward_tier": tier, "message": service.MsgRewardTierCreated})
}
