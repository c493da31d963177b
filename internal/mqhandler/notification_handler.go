package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/internal/service"
	"skillfund/pkg/logger"
	"skillfund/pkg/metrics"
	"skillfund/pkg/mq"
	"skillfund/pkg/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxRetries 单个事件最大重试次数，超过后进入 DLQ
const MaxRetries = 5

type NotificationWriter interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// RetryCounter is satisfied by *util.RetryCounter.
type RetryCounter interface {
	Attempt(ctx context.Context, routingKey, eventID string) (int64, bool, error)
	Reset(ctx context.Context, routingKey, eventID string) error
}

// DeadLetter is satisfied by *mq.Publisher.
type DeadLetter interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

// NotificationHandler turns domain events into in-app notifications.
type NotificationHandler struct {
	notifications NotificationWriter
	deduper       Deduper
	retryCounter  RetryCounter
	dlq           DeadLetter
	logger        *zap.Logger
}

func NewNotificationHandler(
	notifications NotificationWriter,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DeadLetter,
	logger *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		deduper:       deduper,
		retryCounter:  retryCounter,
		dlq:           dlq,
		logger:        logger,
	}
}

// RoutingKeys lists the events this handler consumes.
func RoutingKeys() []string {
	return []string{
		mqcontracts.RoutingProposalSubmitted,
		mqcontracts.RoutingProposalStatusChanged,
		mqcontracts.RoutingCampaignBacked,
		mqcontracts.RoutingMessageSent,
	}
}

// For returns the consumer callback for routingKey, nil for unknown keys.
func (h *NotificationHandler) For(routingKey string) mq.MessageHandler {
	var build func(json.RawMessage) (string, *model.Notification, error)
	switch routingKey {
	case mqcontracts.RoutingProposalSubmitted:
		build = buildNewProposal
	case mqcontracts.RoutingProposalStatusChanged:
		build = buildProposalStatus
	case mqcontracts.RoutingCampaignBacked:
		build = buildCampaignBacked
	case mqcontracts.RoutingMessageSent:
		build = buildNewMessage
	default:
		return nil
	}
	return func(ctx context.Context, raw json.RawMessage) error {
		return h.handle(ctx, routingKey, raw, build)
	}
}

// handle returns an error only when the delivery should be requeued.
func (h *NotificationHandler) handle(
	ctx context.Context,
	routingKey string,
	raw json.RawMessage,
	build func(json.RawMessage) (string, *model.Notification, error),
) error {
	log := logger.WithTrace(ctx, h.logger).With(zap.String("routing_key", routingKey))

	eventID, n, err := build(raw)
	if err != nil {
		// 解析失败不可重试，进 DLQ
		log.Error("Failed to decode event (non-retryable, sending to DLQ)",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		h.deadLetter(ctx, log, routingKey, raw, err)
		return nil
	}

	if eventID != "" && !h.deduper.AcquireOnce(ctx, routingKey, eventID) {
		return nil
	}

	if err := h.notifications.Create(ctx, n); err != nil {
		if eventID != "" {
			h.deduper.Release(ctx, routingKey, eventID)
		}

		isRetryable, errType := util.IsRetryableError(err)
		log.Error("Failed to create notification",
			zap.String("event_id", eventID),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if !isRetryable {
			h.deadLetter(ctx, log, routingKey, raw, err)
			return nil
		}

		count, exhausted, cerr := h.retryCounter.Attempt(ctx, routingKey, eventID)
		if cerr != nil {
			// Redis 错误不影响处理，直接重新入队
			log.Warn("Failed to record retry, requeueing anyway", zap.Error(cerr))
			return err
		}
		if exhausted {
			log.Warn("Max retries exceeded, sending to DLQ",
				zap.String("event_id", eventID),
				zap.Int64("retry_count", count),
			)
			h.deadLetter(ctx, log, routingKey, raw, err)
			if rerr := h.retryCounter.Reset(ctx, routingKey, eventID); rerr != nil {
				log.Warn("Failed to reset retry counter", zap.String("event_id", eventID), zap.Error(rerr))
			}
			return nil
		}
		return err
	}

	metrics.IncrementDomainEvent("notification_created")
	log.Info("Notification created",
		zap.String("event_id", eventID),
		zap.String("user_id", n.UserID.String()),
		zap.String("type", n.Type),
	)
	return nil
}

func (h *NotificationHandler) deadLetter(ctx context.Context, log *zap.Logger, routingKey string, raw []byte, cause error) {
	if h.dlq == nil {
		return
	}
	if err := h.dlq.PublishToDLQ(ctx, routingKey, raw, cause.Error()); err != nil {
		log.Error("Failed to publish to DLQ", zap.Error(err))
	}
}

func parseUser(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return id, nil
}

func buildNewProposal(raw json.RawMessage) (string, *model.Notification, error) {
	var p mqcontracts.ProposalSubmittedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, err
	}
	clientID, err := parseUser("client_id", p.ClientID)
	if err != nil {
		return "", nil, err
	}
	return p.EventID, &model.Notification{
		UserID:  clientID,
		Type:    model.NotificationNewProposal,
		Message: fmt.Sprintf("New proposal on %q: %s", p.JobTitle, service.FormatAmount(p.ProposedRate)),
		Link:    "/jobs/" + p.JobID,
	}, nil
}

func buildProposalStatus(raw json.RawMessage) (string, *model.Notification, error) {
	var p mqcontracts.ProposalStatusChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, err
	}
	freelancerID, err := parseUser("freelancer_id", p.FreelancerID)
	if err != nil {
		return "", nil, err
	}
	return p.EventID, &model.Notification{
		UserID:  freelancerID,
		Type:    model.NotificationProposalStatus,
		Message: fmt.Sprintf("Your proposal for %q was %s", p.JobTitle, p.Status),
		Link:    "/proposals",
	}, nil
}

func buildCampaignBacked(raw json.RawMessage) (string, *model.Notification, error) {
	var p mqcontracts.CampaignBackedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, err
	}
	creatorID, err := parseUser("creator_id", p.CreatorID)
	if err != nil {
		return "", nil, err
	}
	return p.EventID, &model.Notification{
		UserID:  creatorID,
		Type:    model.NotificationCampaignBacked,
		Message: fmt.Sprintf("%q received a %s contribution", p.CampaignTitle, service.FormatAmount(p.Amount)),
		Link:    "/campaigns/" + p.CampaignID,
	}, nil
}

func buildNewMessage(raw json.RawMessage) (string, *model.Notification, error) {
	var p mqcontracts.MessageSentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, err
	}
	recipientID, err := parseUser("recipient_id", p.RecipientID)
	if err != nil {
		return "", nil, err
	}
	sender := p.SenderName
	if sender == "" {
		sender = "Unknown User"
	}
	return p.EventID, &model.Notification{
		UserID:  recipientID,
		Type:    model.NotificationNewMessage,
		Message: "New message from " + sender,
		Link:    "/messages/" + p.SenderID,
	}, nil
}
