package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Writer is the part of Repository used inside business transactions.
type Writer interface {
	InsertEvent(ctx context.Context, tx pgx.Tx, event *Event) error
}

// Aggregate 标识事件所属的业务实体，如 ("campaign", id)
type Aggregate struct {
	Type string
	ID   string
}

// Record encodes payload and stages it as a pending event inside tx, so the
// event is published only if the business write commits.
func Record(ctx context.Context, tx pgx.Tx, w Writer, agg Aggregate, routingKey string, payload any) error {
	if routingKey == "" {
		return errors.New("outbox: routing key is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}

	return w.InsertEvent(ctx, tx, &Event{
		AggregateType: agg.Type,
		AggregateID:   agg.ID,
		RoutingKey:    routingKey,
		Payload:       body,
		Status:        StatusPending,
	})
}
