package service

import (
	"context"
	"strings"

	"skillfund/internal/model"
	"skillfund/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultContactLimit = 10
	noConversationText  = "Click to start conversation"
	unknownUserName     = "Unknown User"
	maxMessageLength    = 5000
)

type MessageStore interface {
	ListContacts(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Contact, error)
	Conversation(ctx context.Context, userID, contactID uuid.UUID) ([]*model.Message, error)
	MarkRead(ctx context.Context, userID, contactID uuid.UUID) (int64, error)
	Create(ctx context.Context, m *model.Message) error
}

type MessageService struct {
	messages MessageStore
	profiles ProfileStore
	logger   *zap.Logger
}

func NewMessageService(messages MessageStore, profiles ProfileStore, logger *zap.Logger) *MessageService {
	return &MessageService{messages: messages, profiles: profiles, logger: logger}
}

// Contacts 联系人列表，有对话的在前
func (s *MessageService) Contacts(ctx context.Context, actor Actor, limit int) ([]*model.Contact, error) {
	if limit <= 0 || limit > 50 {
		limit = DefaultContactLimit
	}
	contacts, err := s.messages.ListContacts(ctx, actor.ID, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		if c.LastMessageAt == nil {
			c.LastMessage = noConversationText
		}
	}
	return contacts, nil
}

// Conversation returns the thread oldest first and marks the contact's
// messages to the actor as read.
func (s *MessageService) Conversation(ctx context.Context, actor Actor, contactID uuid.UUID) ([]*model.Message, error) {
	msgs, err := s.messages.Conversation(ctx, actor.ID, contactID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Sender == nil {
			m.Sender = &model.UserSummary{ID: m.SenderID}
		}
		if m.Sender.FullName == "" {
			m.Sender.FullName = unknownUserName
		}
	}

	n, err := s.messages.MarkRead(ctx, actor.ID, contactID)
	if err != nil {
		// 标记失败不影响读取
		s.logger.Warn("Failed to mark messages read",
			zap.String("user_id", actor.ID.String()),
			zap.String("contact_id", contactID.String()),
			zap.Error(err),
		)
	} else if n > 0 {
		for _, m := range msgs {
			if m.SenderID == contactID {
				m.IsRead = true
			}
		}
	}
	return msgs, nil
}

// Send 发送消息，内容去除首尾空白后不能为空
func (s *MessageService) Send(ctx context.Context, actor Actor, recipientID uuid.UUID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)

	var v validator
	v.check(content != "", "content", "message cannot be empty")
	v.check(len(content) <= maxMessageLength, "content", "message is too long")
	v.check(recipientID != actor.ID, "recipient_id", "you cannot message yourself")
	if err := v.err(); err != nil {
		return nil, err
	}

	exists, err := s.profiles.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("recipient not found")
	}

	m := &model.Message{SenderID: actor.ID, RecipientID: recipientID, Content: content}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	metrics.IncrementDomainEvent("message_sent")
	return m, nil
}
