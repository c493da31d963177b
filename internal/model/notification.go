package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationNewProposal    = "new_proposal"
	NotificationProposalStatus = "proposal_status"
	NotificationCampaignBacked = "campaign_backed"
	NotificationNewMessage     = "new_message"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
