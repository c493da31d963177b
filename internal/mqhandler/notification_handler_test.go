package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/pkg/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu    sync.Mutex
	items []*model.Notification
	err   error
}

func (f *fakeWriter) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.ID = int64(len(f.items) + 1)
	f.items = append(f.items, n)
	return nil
}

type dlqMessage struct {
	routingKey string
	cause      string
}

type fakeDLQ struct {
	mu        sync.Mutex
	sent      []dlqMessage
	onPublish func()
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, routingKey string, _ []byte, originalError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, dlqMessage{routingKey: routingKey, cause: originalError})
	if f.onPublish != nil {
		f.onPublish()
	}
	return nil
}

func newTestHandler(t *testing.T) (*NotificationHandler, *fakeWriter, *fakeDLQ) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	writer := &fakeWriter{}
	dlq := &fakeDLQ{}
	h := NewNotificationHandler(
		writer,
		util.NewDeduper(rdb, time.Hour, zap.NewNop()),
		util.NewRetryCounter(rdb, time.Hour, MaxRetries),
		dlq,
		zap.NewNop(),
	)
	return h, writer, dlq
}

func envelope() mqcontracts.Envelope {
	return mqcontracts.Envelope{EventID: uuid.NewString(), OccurredAt: time.Now()}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestNotificationPerEvent(t *testing.T) {
	client, freelancer, creator, recipient := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	jobID, campaignID, senderID := uuid.NewString(), uuid.NewString(), uuid.NewString()

	tests := []struct {
		routingKey string
		payload    any
		user       uuid.UUID
		typ        string
		message    string
		link       string
	}{
		{
			mqcontracts.RoutingProposalSubmitted,
			mqcontracts.ProposalSubmittedPayload{Envelope: envelope(), JobID: jobID, JobTitle: "Landing page", ClientID: client.String(), ProposedRate: 1200},
			client, model.NotificationNewProposal, `New proposal on "Landing page": $1,200`, "/jobs/" + jobID,
		},
		{
			mqcontracts.RoutingProposalStatusChanged,
			mqcontracts.ProposalStatusChangedPayload{Envelope: envelope(), JobTitle: "Landing page", FreelancerID: freelancer.String(), Status: "accepted"},
			freelancer, model.NotificationProposalStatus, `Your proposal for "Landing page" was accepted`, "/proposals",
		},
		{
			mqcontracts.RoutingCampaignBacked,
			mqcontracts.CampaignBackedPayload{Envelope: envelope(), CampaignID: campaignID, CampaignTitle: "Solar Kit", CreatorID: creator.String(), Amount: 25},
			creator, model.NotificationCampaignBacked, `"Solar Kit" received a $25 contribution`, "/campaigns/" + campaignID,
		},
		{
			mqcontracts.RoutingMessageSent,
			mqcontracts.MessageSentPayload{Envelope: envelope(), SenderID: senderID, RecipientID: recipient.String()},
			recipient, model.NotificationNewMessage, "New message from Unknown User", "/messages/" + senderID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.routingKey, func(t *testing.T) {
			h, writer, _ := newTestHandler(t)
			fn := h.For(tt.routingKey)
			require.NotNil(t, fn)

			require.NoError(t, fn(context.Background(), mustJSON(t, tt.payload)))
			require.Len(t, writer.items, 1)
			n := writer.items[0]
			assert.Equal(t, tt.user, n.UserID)
			assert.Equal(t, tt.typ, n.Type)
			assert.Equal(t, tt.message, n.Message)
			assert.Equal(t, tt.link, n.Link)
		})
	}
}

func TestUnknownRoutingKey(t *testing.T) {
	h, _, _ := newTestHandler(t)
	assert.Nil(t, h.For(mqcontracts.RoutingJobPosted))
	assert.Len(t, RoutingKeys(), 4)
}

func TestDuplicateEventSkipped(t *testing.T) {
	h, writer, _ := newTestHandler(t)
	fn := h.For(mqcontracts.RoutingMessageSent)
	raw := mustJSON(t, mqcontracts.MessageSentPayload{Envelope: envelope(), SenderID: uuid.NewString(), SenderName: "Ada", RecipientID: uuid.NewString()})

	require.NoError(t, fn(context.Background(), raw))
	require.NoError(t, fn(context.Background(), raw))
	assert.Len(t, writer.items, 1)
}

func TestMalformedEventDeadLettered(t *testing.T) {
	h, writer, dlq := newTestHandler(t)
	fn := h.For(mqcontracts.RoutingCampaignBacked)

	require.NoError(t, fn(context.Background(), json.RawMessage(`{"creator_id":`)))
	require.NoError(t, fn(context.Background(), mustJSON(t, mqcontracts.CampaignBackedPayload{Envelope: envelope(), CreatorID: "nope"})))

	assert.Empty(t, writer.items)
	require.Len(t, dlq.sent, 2)
	assert.Equal(t, mqcontracts.RoutingCampaignBacked, dlq.sent[0].routingKey)
	assert.Contains(t, dlq.sent[1].cause, "invalid creator_id")
}

func TestRetryableFailureRequeuesThenDeadLetters(t *testing.T) {
	h, writer, dlq := newTestHandler(t)
	fn := h.For(mqcontracts.RoutingProposalSubmitted)
	raw := mustJSON(t, mqcontracts.ProposalSubmittedPayload{Envelope: envelope(), ClientID: uuid.NewString(), JobTitle: "x"})
	ctx := context.Background()

	writer.err = errors.New("connection reset by peer")
	for i := 0; i < MaxRetries; i++ {
		assert.Error(t, fn(ctx, raw), "attempt %d should requeue", i+1)
	}
	assert.NoError(t, fn(ctx, raw), "retry budget exhausted")
	require.Len(t, dlq.sent, 1)

	// 去重锁已释放，恢复后同一事件仍可处理
	writer.err = nil
	require.NoError(t, fn(ctx, raw))
	assert.Len(t, writer.items, 1)
}

func TestRetryCounterResetFailureLogged(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	core, logs := observer.New(zapcore.WarnLevel)
	writer := &fakeWriter{err: errors.New("connection reset by peer")}
	// Redis 在投递 DLQ 之后挂掉
	dlq := &fakeDLQ{onPublish: func() { mr.SetError("ERR redis down") }}
	h := NewNotificationHandler(
		writer,
		util.NewDeduper(rdb, time.Hour, zap.NewNop()),
		util.NewRetryCounter(rdb, time.Hour, MaxRetries),
		dlq,
		zap.New(core),
	)
	fn := h.For(mqcontracts.RoutingProposalSubmitted)
	raw := mustJSON(t, mqcontracts.ProposalSubmittedPayload{Envelope: envelope(), ClientID: uuid.NewString(), JobTitle: "x"})

	for i := 0; i < MaxRetries; i++ {
		require.Error(t, fn(context.Background(), raw))
	}
	require.NoError(t, fn(context.Background(), raw))
	require.Len(t, dlq.sent, 1)

	reset := logs.FilterMessage("Failed to reset retry counter").All()
	require.Len(t, reset, 1)
	assert.Equal(t, zapcore.WarnLevel, reset[0].Level)
	assert.Contains(t, reset[0].ContextMap()["error"], "redis down")
}

func TestPermanentFailureDeadLettered(t *testing.T) {
	h, writer, dlq := newTestHandler(t)
	fn := h.For(mqcontracts.RoutingProposalStatusChanged)
	writer.err = &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}

	raw := mustJSON(t, mqcontracts.ProposalStatusChangedPayload{Envelope: envelope(), FreelancerID: uuid.NewString(), Status: "rejected"})
	require.NoError(t, fn(context.Background(), raw))
	assert.Len(t, dlq.sent, 1)
}
