package repository

import (
	"context"
	"fmt"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/pkg/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db     *pgxpool.Pool
	outbox outbox.Writer
}

func NewMessageRepository(db *pgxpool.Pool, outboxRepo outbox.Writer) *MessageRepository {
	return &MessageRepository{db: db, outbox: outboxRepo}
}

// ListContacts returns other profiles with their last exchanged message and
// the number of unread messages they sent to userID. Profiles with a
// conversation come first, newest activity first.
func (r *MessageRepository) ListContacts(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Contact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.full_name, p.avatar_url, p.primary_role,
		       last.content, last.created_at,
		       COALESCE(unread.n, 0)
		FROM profiles p
		LEFT JOIN LATERAL (
			SELECT m.content, m.created_at
			FROM messages m
			WHERE (m.sender_id = $1 AND m.recipient_id = p.id)
			   OR (m.sender_id = p.id AND m.recipient_id = $1)
			ORDER BY m.created_at DESC
			LIMIT 1
		) last ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS n
			FROM messages m
			WHERE m.sender_id = p.id AND m.recipient_id = $1 AND m.is_read = FALSE
		) unread ON TRUE
		WHERE p.id <> $1
		ORDER BY last.created_at DESC NULLS LAST, p.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, mapError("list contacts", err)
	}
	defer rows.Close()

	out := make([]*model.Contact, 0)
	for rows.Next() {
		var (
			c                     model.Contact
			name, avatar, lastMsg *string
		)
		if err := rows.Scan(
			&c.ID,
			&name,
			&avatar,
			&c.PrimaryRole,
			&lastMsg,
			&c.LastMessageAt,
			&c.UnreadCount,
		); err != nil {
			return nil, mapError("scan contact", err)
		}
		c.FullName = model.Str(name)
		c.AvatarURL = model.Str(avatar)
		c.LastMessage = model.Str(lastMsg)
		out = append(out, &c)
	}
	return out, mapError("list contacts", rows.Err())
}

// Conversation returns messages between the two users oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, userID, contactID uuid.UUID) ([]*model.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.sender_id, m.recipient_id, m.content, COALESCE(m.is_read, FALSE), m.created_at,
		       s.full_name, s.avatar_url
		FROM messages m
		LEFT JOIN profiles s ON s.id = m.sender_id
		WHERE (m.sender_id = $1 AND m.recipient_id = $2)
		   OR (m.sender_id = $2 AND m.recipient_id = $1)
		ORDER BY m.created_at ASC
	`, userID, contactID)
	if err != nil {
		return nil, mapError("list conversation", err)
	}
	defer rows.Close()

	out := make([]*model.Message, 0)
	for rows.Next() {
		var (
			m            model.Message
			name, avatar *string
		)
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.RecipientID,
			&m.Content,
			&m.IsRead,
			&m.CreatedAt,
			&name,
			&avatar,
		); err != nil {
			return nil, mapError("scan message", err)
		}
		m.Sender = &model.UserSummary{ID: m.SenderID, FullName: model.Str(name), AvatarURL: model.Str(avatar)}
		out = append(out, &m)
	}
	return out, mapError("list conversation", rows.Err())
}

// MarkRead 将联系人发给我的未读消息标记为已读
func (r *MessageRepository) MarkRead(ctx context.Context, userID, contactID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE sender_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`, contactID, userID)
	if err != nil {
		return 0, mapError("mark messages read", err)
	}
	return tag.RowsAffected(), nil
}

// Create 写入消息并记录 message.sent 事件
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var senderName *string
	err = tx.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO messages (sender_id, recipient_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, is_read, created_at
		)
		SELECT i.id, COALESCE(i.is_read, FALSE), i.created_at, s.full_name
		FROM inserted i
		LEFT JOIN profiles s ON s.id = $1
	`, m.SenderID, m.RecipientID, m.Content).Scan(&m.ID, &m.IsRead, &m.CreatedAt, &senderName)
	if err != nil {
		return mapError("insert message", err)
	}
	m.Sender = &model.UserSummary{ID: m.SenderID, FullName: model.Str(senderName)}

	payload := mqcontracts.MessageSentPayload{
		Envelope:    newEnvelope(ctx),
		MessageID:   m.ID.String(),
		SenderID:    m.SenderID.String(),
		SenderName:  model.Str(senderName),
		RecipientID: m.RecipientID.String(),
	}
	if err := outbox.Record(ctx, tx, r.outbox, outbox.Aggregate{Type: "message", ID: m.ID.String()}, mqcontracts.RoutingMessageSent, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
