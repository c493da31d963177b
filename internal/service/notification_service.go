package service

import (
	"context"

	"skillfund/internal/model"

	"github.com/google/uuid"
)

const defaultNotificationLimit = 20

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id int64, userID uuid.UUID) error
}

type NotificationService struct {
	notifications NotificationStore
}

func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, actor Actor, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultNotificationLimit
	}
	return s.notifications.ListByUser(ctx, actor.ID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id int64) error {
	return translate(s.notifications.MarkRead(ctx, id, actor.ID), "notification not found")
}
