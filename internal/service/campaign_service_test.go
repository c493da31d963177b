package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"skillfund/internal/cache"
	"skillfund/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type campaignFixture struct {
	svc       *CampaignService
	campaigns *fakeCampaigns
	tiers     *fakeTiers
	cache     *memCache
	idem      *fakeIdem
	owner     Actor
	backer    Actor
}

func newCampaignFixture() *campaignFixture {
	tiers := &fakeTiers{}
	campaigns := &fakeCampaigns{tiers: tiers}
	c := newMemCache()
	idem := &fakeIdem{}
	svc := NewCampaignService(campaigns, tiers, c, idem, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return &campaignFixture{
		svc:       svc,
		campaigns: campaigns,
		tiers:     tiers,
		cache:     c,
		idem:      idem,
		owner:     Actor{ID: uuid.New(), Role: "project_owner"},
		backer:    Actor{ID: uuid.New(), Role: "backer"},
	}
}

func (f *campaignFixture) create(t *testing.T, title string, goal float64) *CampaignView {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.owner, CampaignInput{
		Title:       title,
		Description: "About " + title,
		Category:    "Technology",
		GoalAmount:  ptr(goal),
		Deadline:    "2024-05-30",
	})
	require.NoError(t, err)
	return c
}

func TestCreateCampaign(t *testing.T) {
	f := newCampaignFixture()
	c := f.create(t, "Solar Kit", 1000)

	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.Nil(t, c.Story)
	assert.Equal(t, "20 days left", c.DeadlineLabel)
	assert.Equal(t, "$0", c.RaisedLabel)
	assert.Equal(t, "$1,000", c.GoalLabel)
	assert.Contains(t, f.cache.invalidated, cache.NamespaceActiveCampaigns)
}

func TestCreateCampaignValidation(t *testing.T) {
	f := newCampaignFixture()

	_, err := f.svc.Create(context.Background(), f.owner, CampaignInput{
		Category:   "Crypto",
		GoalAmount: ptr(0.0),
		Deadline:   "2024-05-09",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "description", "category", "goal_amount", "deadline"} {
		assert.Contains(t, verr.Fields, field)
	}
	assert.Equal(t, "deadline must not be in the past", verr.Fields["deadline"])

	_, err = f.svc.Create(context.Background(), f.owner, CampaignInput{Title: "t", Description: "d", Category: "Other", GoalAmount: ptr(5.0)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "deadline is required", verr.Fields["deadline"])

	// 截止日为今天是允许的
	_, err = f.svc.Create(context.Background(), f.owner, CampaignInput{Title: "t", Description: "d", Category: "Other", GoalAmount: ptr(5.0), Deadline: "2024-05-10"})
	assert.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.backer, CampaignInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListCampaignsSearch(t *testing.T) {
	f := newCampaignFixture()
	f.create(t, "Solar Kit", 1000)
	f.create(t, "Board Game", 500)

	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Board Game", all[0].Title)

	solar, err := f.svc.List(context.Background(), "SOLAR")
	require.NoError(t, err)
	require.Len(t, solar, 1)
	assert.Equal(t, "Solar Kit", solar[0].Title)
}

func TestBackCampaign(t *testing.T) {
	f := newCampaignFixture()
	c := f.create(t, "Solar Kit", 1000)

	res, err := f.svc.Back(context.Background(), f.backer, c.ID, BackInput{Amount: ptr(250.0)})
	require.NoError(t, err)

	assert.Equal(t, "Thank you for backing this project with $250!", res.Message)
	assert.Equal(t, model.PaymentStatusCompleted, res.Contribution.PaymentStatus)
	assert.Equal(t, 250.0, res.Campaign.CurrentAmount)
	assert.Equal(t, 1, res.Campaign.BackersCount)
	assert.InDelta(t, 25.0, res.Campaign.Progress, 1e-9)
}

func TestBackCampaignConcurrentTotals(t *testing.T) {
	f := newCampaignFixture()
	c := f.create(t, "Solar Kit", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backer := Actor{ID: uuid.New(), Role: "backer"}
			_, err := f.svc.Back(context.Background(), backer, c.ID, BackInput{Amount: ptr(10.0)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.CurrentAmount)
	assert.Equal(t, 20, got.BackersCount)
}

func TestBackCampaignValidation(t *testing.T) {
	f := newCampaignFixture()
	c := f.create(t, "Solar Kit", 1000)
	ctx := context.Background()

	_, err := f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(0.5)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "minimum contribution is $1", verr.Fields["amount"])

	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{})
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Back(ctx, f.owner, c.ID, BackInput{Amount: ptr(5.0)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Back(ctx, f.backer, uuid.New(), BackInput{Amount: ptr(5.0)})
	assert.ErrorIs(t, err, ErrNotFound)

	f.campaigns.campaigns[0].Status = model.CampaignStatusExpired
	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(5.0)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMoneyFitsColumns(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()
	c := f.create(t, "Solar Kit", 1000)

	_, err := f.svc.Create(ctx, f.owner, CampaignInput{Title: "t", Description: "d", Category: "Other", GoalAmount: ptr(1e11), Deadline: "2024-05-30"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "goal amount must not exceed $9,999,999,999.99", verr.Fields["goal_amount"])

	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(10.005)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount must not have more than 2 decimal places", verr.Fields["amount"])

	_, err = f.svc.CreateRewardTier(ctx, f.owner, c.ID, RewardTierInput{Title: "Gold", Description: "d", Amount: ptr(1e10)})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amount")

	// 两位小数和上限本身可以
	res, err := f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(19.99)})
	require.NoError(t, err)
	assert.Equal(t, 19.99, res.Contribution.Amount)
	_, err = f.svc.Create(ctx, f.owner, CampaignInput{Title: "t", Description: "d", Category: "Other", GoalAmount: ptr(9999999999.99), Deadline: "2024-05-30"})
	assert.NoError(t, err)
}

func TestBackCampaignRewardTier(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()
	c := f.create(t, "Solar Kit", 1000)
	other := f.create(t, "Board Game", 500)

	tier, err := f.svc.CreateRewardTier(ctx, f.owner, c.ID, RewardTierInput{
		Title: "Early bird", Description: "First batch", Amount: ptr(50.0), MaxBackers: ptr(1),
	})
	require.NoError(t, err)

	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(20.0), RewardTierID: &tier.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "minimum amount for this reward is $50", verr.Fields["amount"])

	_, err = f.svc.Back(ctx, f.backer, other.ID, BackInput{Amount: ptr(60.0), RewardTierID: &tier.ID})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "reward_tier_id")

	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(60.0), RewardTierID: &tier.ID})
	require.NoError(t, err)

	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(60.0), RewardTierID: &tier.ID})
	assert.ErrorIs(t, err, ErrConflict, "tier is full")
}

func TestBackCampaignIdempotencyKey(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()
	c := f.create(t, "Solar Kit", 1000)

	in := BackInput{Amount: ptr(25.0), IdempotencyKey: "retry-1"}
	_, err := f.svc.Back(ctx, f.backer, c.ID, in)
	require.NoError(t, err)

	_, err = f.svc.Back(ctx, f.backer, c.ID, in)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.CurrentAmount)

	// 失败的提交释放幂等键，允许重试
	f.campaigns.campaigns[0].Status = model.CampaignStatusCancelled
	_, err = f.svc.Back(ctx, f.backer, c.ID, BackInput{Amount: ptr(5.0), IdempotencyKey: "retry-2"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.idem.released, 1)
}

func TestCreateRewardTierOwnerOnly(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()
	c := f.create(t, "Solar Kit", 1000)

	stranger := Actor{ID: uuid.New(), Role: "project_owner"}
	_, err := f.svc.CreateRewardTier(ctx, stranger, c.ID, RewardTierInput{Title: "t", Description: "d", Amount: ptr(5.0)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateRewardTier(ctx, f.owner, c.ID, RewardTierInput{Title: "t", Description: "d", Amount: ptr(0.5)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amount")

	tiers, err := f.svc.ListRewardTiers(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, tiers)

	_, err = f.svc.ListRewardTiers(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
