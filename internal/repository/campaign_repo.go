package repository

import (
	"context"
	"fmt"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/pkg/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CampaignRepository struct {
	db     *pgxpool.Pool
	outbox outbox.Writer
}

func NewCampaignRepository(db *pgxpool.Pool, outboxRepo outbox.Writer) *CampaignRepository {
	return &CampaignRepository{db: db, outbox: outboxRepo}
}

const campaignColumns = `
	c.id, c.creator_id, c.title, c.description, c.story, c.category, c.goal_amount,
	COALESCE(c.current_amount, 0), COALESCE(c.backers_count, 0), c.deadline, c.image_url, c.video_url,
	COALESCE(c.status, 'active'), c.created_at, c.updated_at,
	u.full_name, u.avatar_url
`

const campaignFrom = `
	FROM campaigns c
	LEFT JOIN profiles u ON u.id = c.creator_id
`

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var (
		c            model.Campaign
		name, avatar *string
	)
	err := row.Scan(
		&c.ID,
		&c.CreatorID,
		&c.Title,
		&c.Description,
		&c.Story,
		&c.Category,
		&c.GoalAmount,
		&c.CurrentAmount,
		&c.BackersCount,
		&c.Deadline,
		&c.ImageURL,
		&c.VideoURL,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
		&name,
		&avatar,
	)
	if err != nil {
		return nil, err
	}
	c.Creator = &model.UserSummary{
		ID:        c.CreatorID,
		FullName:  model.Str(name),
		AvatarURL: model.Str(avatar),
	}
	return &c, nil
}

func collectCampaigns(rows pgx.Rows) ([]*model.Campaign, error) {
	defer rows.Close()

	out := make([]*model.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActive returns active campaigns newest first, optionally filtered by a
// case-insensitive substring of title or description.
func (r *CampaignRepository) ListActive(ctx context.Context, query string) ([]*model.Campaign, error) {
	rows, err := r.db.Query(ctx, `SELECT `+campaignColumns+campaignFrom+`
		WHERE c.status = 'active'
		AND ($1::text = '' OR c.title ILIKE $2 OR c.description ILIKE $2)
		ORDER BY c.created_at DESC
	`, query, likePattern(query))
	if err != nil {
		return nil, mapError("list active campaigns", err)
	}
	out, err := collectCampaigns(rows)
	return out, mapError("list active campaigns", err)
}

func (r *CampaignRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*model.Campaign, error) {
	rows, err := r.db.Query(ctx, `SELECT `+campaignColumns+campaignFrom+`
		WHERE c.creator_id = $1
		ORDER BY c.created_at DESC
	`, creatorID)
	if err != nil {
		return nil, mapError("list creator campaigns", err)
	}
	out, err := collectCampaigns(rows)
	return out, mapError("list creator campaigns", err)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(ctx, `SELECT `+campaignColumns+campaignFrom+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapError("get campaign", err)
	}
	return c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO campaigns (creator_id, title, description, story, category, goal_amount, deadline, image_url, video_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
		RETURNING id, current_amount, backers_count, status, created_at, updated_at
	`,
		c.CreatorID,
		c.Title,
		c.Description,
		c.Story,
		c.Category,
		c.GoalAmount,
		c.Deadline,
		c.ImageURL,
		c.VideoURL,
	).Scan(&c.ID, &c.CurrentAmount, &c.BackersCount, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapError("insert campaign", err)
	}
	return nil
}

// Back records a completed contribution and adds it to the campaign totals in
// a single transaction. The totals are incremented in place so concurrent
// backers never overwrite each other.
func (r *CampaignRepository) Back(ctx context.Context, contrib *model.Contribution) (*model.Campaign, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE campaigns
		SET current_amount = COALESCE(current_amount, 0) + $2,
		    backers_count = COALESCE(backers_count, 0) + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, contrib.CampaignID, contrib.Amount)
	if err != nil {
		return nil, mapError("increment campaign totals", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, contrib.CampaignID).Scan(&exists); err != nil {
			return nil, mapError("campaign exists", err)
		}
		if !exists {
			return nil, fmt.Errorf("campaign %s: %w", contrib.CampaignID, ErrNotFound)
		}
		return nil, fmt.Errorf("campaign %s is not active: %w", contrib.CampaignID, ErrInvalidState)
	}

	if contrib.RewardTierID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE reward_tiers
			SET current_backers = COALESCE(current_backers, 0) + 1
			WHERE id = $1 AND campaign_id = $2 AND amount <= $3
			AND (max_backers IS NULL OR COALESCE(current_backers, 0) < max_backers)
		`, *contrib.RewardTierID, contrib.CampaignID, contrib.Amount)
		if err != nil {
			return nil, mapError("claim reward tier", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("reward tier %s: %w", *contrib.RewardTierID, ErrTierUnavailable)
		}
	}

	contrib.PaymentStatus = model.PaymentStatusCompleted
	err = tx.QueryRow(ctx, `
		INSERT INTO contributions (campaign_id, backer_id, reward_tier_id, amount, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`,
		contrib.CampaignID,
		contrib.BackerID,
		contrib.RewardTierID,
		contrib.Amount,
		contrib.PaymentStatus,
	).Scan(&contrib.ID, &contrib.CreatedAt)
	if err != nil {
		return nil, mapError("insert contribution", err)
	}

	c, err := scanCampaign(tx.QueryRow(ctx, `SELECT `+campaignColumns+campaignFrom+` WHERE c.id = $1`, contrib.CampaignID))
	if err != nil {
		return nil, mapError("reload campaign", err)
	}
	contrib.CampaignTitle = c.Title

	payload := mqcontracts.CampaignBackedPayload{
		Envelope:       newEnvelope(ctx),
		ContributionID: contrib.ID.String(),
		CampaignID:     c.ID.String(),
		CampaignTitle:  c.Title,
		CreatorID:      c.CreatorID.String(),
		BackerID:       contrib.BackerID.String(),
		Amount:         contrib.Amount,
	}
	if err := outbox.Record(ctx, tx, r.outbox, outbox.Aggregate{Type: "campaign", ID: c.ID.String()}, mqcontracts.RoutingCampaignBacked, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListContributionsByBacker(ctx context.Context, backerID uuid.UUID) ([]*model.Contribution, error) {
	rows, err := r.db.Query(ctx, `
		SELECT k.id, k.campaign_id, k.backer_id, k.reward_tier_id, k.amount,
		       COALESCE(k.payment_status, 'pending'), k.created_at, c.title
		FROM contributions k
		JOIN campaigns c ON c.id = k.campaign_id
		WHERE k.backer_id = $1
		ORDER BY k.created_at DESC
	`, backerID)
	if err != nil {
		return nil, mapError("list contributions", err)
	}
	defer rows.Close()

	out := make([]*model.Contribution, 0)
	for rows.Next() {
		var k model.Contribution
		if err := rows.Scan(
			&k.ID,
			&k.CampaignID,
			&k.BackerID,
			&k.RewardTierID,
			&k.Amount,
			&k.PaymentStatus,
			&k.CreatedAt,
			&k.CampaignTitle,
		); err != nil {
			return nil, mapError("scan contribution", err)
		}
		out = append(out, &k)
	}
	return out, mapError("list contributions", rows.Err())
}

// OwnerStats 发起人的众筹统计
type OwnerStats struct {
	ActiveCampaigns int
	TotalBackers    int
	FundsRaised     float64
}

func (r *CampaignRepository) OwnerStats(ctx context.Context, creatorID uuid.UUID) (OwnerStats, error) {
	var s OwnerStats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COALESCE(SUM(backers_count), 0),
			COALESCE(SUM(current_amount), 0)
		FROM campaigns
		WHERE creator_id = $1
	`, creatorID).Scan(&s.ActiveCampaigns, &s.TotalBackers, &s.FundsRaised)
	return s, mapError("owner stats", err)
}

// BackerStats 支持者的统计
type BackerStats struct {
	ProjectsBacked   int
	TotalContributed float64
	FundedProjects   int
}

func (r *CampaignRepository) BackerStats(ctx context.Context, backerID uuid.UUID) (BackerStats, error) {
	var s BackerStats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT k.campaign_id),
			COALESCE(SUM(k.amount), 0),
			COUNT(DISTINCT k.campaign_id) FILTER (WHERE c.current_amount >= c.goal_amount)
		FROM contributions k
		JOIN campaigns c ON c.id = k.campaign_id
		WHERE k.backer_id = $1 AND k.payment_status = 'completed'
	`, backerID).Scan(&s.ProjectsBacked, &s.TotalContributed, &s.FundedProjects)
	return s, mapError("backer stats", err)
}
