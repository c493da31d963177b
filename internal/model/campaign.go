package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusFunded    = "funded"
	CampaignStatusExpired   = "expired"
	CampaignStatusCancelled = "cancelled"

	PaymentStatusCompleted = "completed"
)

// CampaignCategories 众筹分类
var CampaignCategories = []string{
	"Technology",
	"Creative",
	"Community",
	"Business",
	"Education",
	"Health",
	"Environment",
	"Other",
}

type Campaign struct {
	ID            uuid.UUID `json:"id"`
	CreatorID     uuid.UUID `json:"creator_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Story         *string   `json:"story"`
	Category      string    `json:"category"`
	GoalAmount    float64   `json:"goal_amount"`
	CurrentAmount float64   `json:"current_amount"`
	BackersCount  int       `json:"backers_count"`
	Deadline      time.Time `json:"deadline"`
	ImageURL      *string   `json:"image_url"`
	VideoURL      *string   `json:"video_url"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Creator *UserSummary `json:"creator,omitempty"`
}

type RewardTier struct {
	ID                uuid.UUID  `json:"id"`
	CampaignID        uuid.UUID  `json:"campaign_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Amount            float64    `json:"amount"`
	MaxBackers        *int       `json:"max_backers"`
	CurrentBackers    int        `json:"current_backers"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Contribution struct {
	ID            uuid.UUID  `json:"id"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	BackerID      uuid.UUID  `json:"backer_id"`
	RewardTierID  *uuid.UUID `json:"reward_tier_id"`
	Amount        float64    `json:"amount"`
	PaymentStatus string     `json:"payment_status"`
	CreatedAt     time.Time  `json:"created_at"`

	CampaignTitle string `json:"campaign_title,omitempty"`
}
