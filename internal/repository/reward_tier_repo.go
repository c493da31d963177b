package repository

import (
	"context"

	"skillfund/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RewardTierRepository struct {
	db *pgxpool.Pool
}

func NewRewardTierRepository(db *pgxpool.Pool) *RewardTierRepository {
	return &RewardTierRepository{db: db}
}

const rewardTierColumns = `
	id, campaign_id, title, description, amount, max_backers, COALESCE(current_backers, 0),
	estimated_delivery, created_at
`

func scanRewardTier(row pgx.Row) (*model.RewardTier, error) {
	var t model.RewardTier
	err := row.Scan(
		&t.ID,
		&t.CampaignID,
		&t.Title,
		&t.Description,
		&t.Amount,
		&t.MaxBackers,
		&t.CurrentBackers,
		&t.EstimatedDelivery,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByCampaign 按金额升序返回奖励档位
func (r *RewardTierRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.RewardTier, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rewardTierColumns+`
		FROM reward_tiers
		WHERE campaign_id = $1
		ORDER BY amount ASC, created_at ASC
	`, campaignID)
	if err != nil {
		return nil, mapError("list reward tiers", err)
	}
	defer rows.Close()

	out := make([]*model.RewardTier, 0)
	for rows.Next() {
		t, err := scanRewardTier(rows)
		if err != nil {
			return nil, mapError("scan reward tier", err)
		}
		out = append(out, t)
	}
	return out, mapError("list reward tiers", rows.Err())
}

func (r *RewardTierRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RewardTier, error) {
	t, err := scanRewardTier(r.db.QueryRow(ctx, `SELECT `+rewardTierColumns+` FROM reward_tiers WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get reward tier", err)
	}
	return t, nil
}

func (r *RewardTierRepository) Create(ctx context.Context, t *model.RewardTier) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO reward_tiers (campaign_id, title, description, amount, max_backers, estimated_delivery)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, current_backers, created_at
	`,
		t.CampaignID,
		t.Title,
		t.Description,
		t.Amount,
		t.MaxBackers,
		t.EstimatedDelivery,
	).Scan(&t.ID, &t.CurrentBackers, &t.CreatedAt)
	return mapError("insert reward tier", err)
}
