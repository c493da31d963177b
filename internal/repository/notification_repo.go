package repository

import (
	"context"

	"skillfund/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, message, link)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at
	`, n.UserID, n.Type, n.Message, n.Link).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return mapError("insert notification", err)
}

// ListByUser 最新的通知在前
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, message, COALESCE(link, ''), is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, mapError("list notifications", err)
	}
	defer rows.Close()

	out := make([]*model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, mapError("scan notification", err)
		}
		out = append(out, &n)
	}
	return out, mapError("list notifications", rows.Err())
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return mapError("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
