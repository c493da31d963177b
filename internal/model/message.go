package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`

	Sender *UserSummary `json:"sender,omitempty"`
}

// Contact 是消息页左侧的联系人条目
type Contact struct {
	ID            uuid.UUID  `json:"id"`
	FullName      string     `json:"full_name"`
	AvatarURL     string     `json:"avatar_url"`
	PrimaryRole   string     `json:"primary_role"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int        `json:"unread_count"`
}
