package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"skillfund/internal/cache"
	"skillfund/internal/model"
	"skillfund/internal/repository"
	"skillfund/pkg/metrics"
	"skillfund/pkg/otel"
	"skillfund/pkg/rbac"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MsgCampaignCreated      = "Campaign created successfully!"
	MsgCampaignCreateFailed = "Failed to create campaign. Please try again."
	MsgBackFailed           = "Failed to process backing. Please try again."
	MsgRewardTierCreated    = "Reward tier created successfully!"
	MsgRewardTierFailed     = "Failed to create reward tier. Please try again."
	minContribution         = 1.0
	idempotencyScope        = "campaign_back"
)

type CampaignStore interface {
	ListActive(ctx context.Context, query string) ([]*model.Campaign, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*model.Campaign, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	Back(ctx context.Context, contrib *model.Contribution) (*model.Campaign, error)
	ListContributionsByBacker(ctx context.Context, backerID uuid.UUID) ([]*model.Contribution, error)
	OwnerStats(ctx context.Context, creatorID uuid.UUID) (repository.OwnerStats, error)
	BackerStats(ctx context.Context, backerID uuid.UUID) (repository.BackerStats, error)
}

type RewardTierStore interface {
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.RewardTier, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.RewardTier, error)
	Create(ctx context.Context, t *model.RewardTier) error
}

// Idempotency guards retried submissions. *util.Deduper satisfies it.
type Idempotency interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// CampaignView 众筹卡片
type CampaignView struct {
	*model.Campaign
	Progress      float64 `json:"progress"`
	RaisedLabel   string  `json:"raised_label"`
	GoalLabel     string  `json:"goal_label"`
	DeadlineLabel string  `json:"deadline_label"`
}

func newCampaignView(c *model.Campaign, now time.Time) *CampaignView {
	return &CampaignView{
		Campaign:      c,
		Progress:      FundingProgress(c.CurrentAmount, c.GoalAmount),
		RaisedLabel:   FormatAmount(c.CurrentAmount),
		GoalLabel:     FormatAmount(c.GoalAmount),
		DeadlineLabel: DaysLeftLabel(c.Deadline, now),
	}
}

type CampaignService struct {
	campaigns CampaignStore
	tiers     RewardTierStore
	cache     Cache
	idem      Idempotency
	logger    *zap.Logger
	now       func() time.Time
}

func NewCampaignService(campaigns CampaignStore, tiers RewardTierStore, c Cache, idem Idempotency, logger *zap.Logger) *CampaignService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CampaignService{
		campaigns: campaigns,
		tiers:     tiers,
		cache:     c,
		idem:      idem,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *CampaignService) views(list []*model.Campaign) []*CampaignView {
	now := s.now()
	out := make([]*CampaignView, 0, len(list))
	for _, c := range list {
		out = append(out, newCampaignView(c, now))
	}
	return out
}

// List returns active campaigns newest first. Labels are computed per request
// so cached rows never carry a stale "days left".
func (s *CampaignService) List(ctx context.Context, query string) ([]*CampaignView, error) {
	query = strings.TrimSpace(query)
	variant := "q=" + strings.ToLower(query)

	var list []*model.Campaign
	if gen, ok := s.cache.Get(ctx, cache.NamespaceActiveCampaigns, variant, &list); !ok {
		var err error
		list, err = s.campaigns.ListActive(ctx, query)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, cache.NamespaceActiveCampaigns, variant, gen, list)
	}
	return s.views(list), nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*CampaignView, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "campaign not found")
	}
	return newCampaignView(c, s.now()), nil
}

func (s *CampaignService) ListMine(ctx context.Context, actor Actor) ([]*CampaignView, error) {
	list, err := s.campaigns.ListByCreator(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.views(list), nil
}

type CampaignInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Story       string   `json:"story"`
	Category    string   `json:"category"`
	GoalAmount  *float64 `json:"goal_amount"`
	Deadline    string   `json:"deadline"`
	ImageURL    string   `json:"image_url"`
	VideoURL    string   `json:"video_url"`
}

func (in CampaignInput) normalize(today time.Time) (*model.Campaign, error) {
	var v validator
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)

	v.check(title != "", "title", "title is required")
	v.check(description != "", "description", "description is required")
	v.check(category != "", "category", "category is required")
	v.check(category == "" || slices.Contains(model.CampaignCategories, category), "category", "category is invalid")
	v.check(in.GoalAmount != nil, "goal_amount", "goal amount is required")
	v.check(in.GoalAmount == nil || *in.GoalAmount > 0, "goal_amount", "goal amount must be greater than 0")
	v.money("goal_amount", "goal amount", in.GoalAmount)

	deadline, ok := parseDate(in.Deadline)
	v.check(ok, "deadline", "deadline must be YYYY-MM-DD")
	v.check(!ok || deadline != nil, "deadline", "deadline is required")
	v.check(deadline == nil || !deadline.Before(today), "deadline", "deadline must not be in the past")

	if err := v.err(); err != nil {
		return nil, err
	}
	return &model.Campaign{
		Title:       title,
		Description: description,
		Story:       optionalString(in.Story),
		Category:    category,
		GoalAmount:  *in.GoalAmount,
		Deadline:    *deadline,
		ImageURL:    optionalString(in.ImageURL),
		VideoURL:    optionalString(in.VideoURL),
	}, nil
}

// Create 项目发起人创建众筹，状态直接为 active
func (s *CampaignService) Create(ctx context.Context, actor Actor, in CampaignInput) (*CampaignView, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionCreateCampaign); err != nil {
		return nil, forbidden("only project owners can create campaigns")
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	c, err := in.normalize(today)
	if err != nil {
		return nil, err
	}
	c.CreatorID = actor.ID

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.NamespaceActiveCampaigns)
	metrics.IncrementDomainEvent("campaign_created")
	s.logger.Info("Campaign created", zap.String("campaign_id", c.ID.String()), zap.String("creator_id", actor.ID.String()))
	return newCampaignView(c, s.now()), nil
}

type BackInput struct {
	Amount       *float64   `json:"amount"`
	RewardTierID *uuid.UUID `json:"reward_tier_id"`
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

type BackResult struct {
	Contribution *model.Contribution `json:"contribution"`
	Campaign     *CampaignView       `json:"campaign"`
	Message      string              `json:"message"`
}

// Back 支持者资助众筹
func (s *CampaignService) Back(ctx context.Context, actor Actor, campaignID uuid.UUID, in BackInput) (*BackResult, error) {
	ctx, span := otel.StartSpan(ctx, "campaign.back")
	defer span.End()

	if err := rbac.CheckPermission(actor.Role, rbac.PermissionBackCampaign); err != nil {
		return nil, forbidden("only backers can back campaigns")
	}

	var v validator
	v.check(in.Amount != nil, "amount", "amount is required")
	v.check(in.Amount == nil || *in.Amount >= minContribution, "amount", "minimum contribution is $1")
	v.money("amount", "amount", in.Amount)
	if err := v.err(); err != nil {
		return nil, err
	}
	amount := *in.Amount

	if in.RewardTierID != nil {
		tier, err := s.tiers.GetByID(ctx, *in.RewardTierID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &ValidationError{Fields: map[string]string{"reward_tier_id": "reward tier not found"}}
			}
			return nil, err
		}
		v.check(tier.CampaignID == campaignID, "reward_tier_id", "reward tier does not belong to this campaign")
		v.check(amount >= tier.Amount, "amount", fmt.Sprintf("minimum amount for this reward is %s", FormatAmount(tier.Amount)))
		if err := v.err(); err != nil {
			return nil, err
		}
	}

	idemKey := ""
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" && s.idem != nil {
		idemKey = actor.ID.String() + ":" + campaignID.String() + ":" + key
		if !s.idem.AcquireOnce(ctx, idempotencyScope, idemKey) {
			return nil, conflict("this contribution has already been submitted")
		}
	}

	contrib := &model.Contribution{
		CampaignID:   campaignID,
		BackerID:     actor.ID,
		RewardTierID: in.RewardTierID,
		Amount:       amount,
	}
	c, err := s.campaigns.Back(ctx, contrib)
	if err != nil {
		if idemKey != "" {
			s.idem.Release(ctx, idempotencyScope, idemKey)
		}
		switch {
		case errors.Is(err, repository.ErrTierUnavailable):
			return nil, conflict("this reward tier is no longer available")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, conflict("this campaign is not accepting contributions")
		}
		return nil, translate(err, "campaign not found")
	}

	s.cache.Invalidate(ctx, cache.NamespaceActiveCampaigns)
	metrics.RecordContribution(amount)
	metrics.IncrementDomainEvent("campaign_backed")
	s.logger.Info("Campaign backed",
		zap.String("campaign_id", campaignID.String()),
		zap.String("backer_id", actor.ID.String()),
		zap.Float64("amount", amount),
	)

	return &BackResult{
		Contribution: contrib,
		Campaign:     newCampaignView(c, s.now()),
		Message:      fmt.Sprintf("Thank you for backing this project with $%s!", plainNumber(amount)),
	}, nil
}

func (s *CampaignService) ListMyContributions(ctx context.Context, actor Actor) ([]*model.Contribution, error) {
	return s.campaigns.ListContributionsByBacker(ctx, actor.ID)
}

func (s *CampaignService) ListRewardTiers(ctx context.Context, campaignID uuid.UUID) ([]*model.RewardTier, error) {
	if _, err := s.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, translate(err, "campaign not found")
	}
	return s.tiers.ListByCampaign(ctx, campaignID)
}

type RewardTierInput struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Amount            *float64 `json:"amount"`
	MaxBackers        *int     `json:"max_backers"`
	EstimatedDelivery string   `json:"estimated_delivery"`
}

// CreateRewardTier is allowed to the campaign's creator only.
func (s *CampaignService) CreateRewardTier(ctx context.Context, actor Actor, campaignID uuid.UUID, in RewardTierInput) (*model.RewardTier, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionManageRewards); err != nil {
		return nil, forbidden("only project owners can create reward tiers")
	}

	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, translate(err, "campaign not found")
	}
	if c.CreatorID != actor.ID {
		return nil, forbidden("only the campaign creator can add reward tiers")
	}

	var v validator
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	v.check(title != "", "title", "title is required")
	v.check(description != "", "description", "description is required")
	v.check(in.Amount != nil, "amount", "amount is required")
	v.check(in.Amount == nil || *in.Amount >= minContribution, "amount", "amount must be at least $1")
	v.money("amount", "amount", in.Amount)
	v.check(in.MaxBackers == nil || *in.MaxBackers > 0, "max_backers", "max backers must be positive")
	delivery, ok := parseDate(in.EstimatedDelivery)
	v.check(ok, "estimated_delivery", "estimated delivery must be YYYY-MM-DD")
	if err := v.err(); err != nil {
		return nil, err
	}

	t := &model.RewardTier{
		CampaignID:        campaignID,
		Title:             title,
		Description:       description,
		Amount:            *in.Amount,
		MaxBackers:        in.MaxBackers,
		EstimatedDelivery: delivery,
	}
	if err := s.tiers.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
