package outbox

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	events []*Event
}

func (w *captureWriter) InsertEvent(_ context.Context, _ pgx.Tx, e *Event) error {
	w.events = append(w.events, e)
	return nil
}

func TestRecord(t *testing.T) {
	w := &captureWriter{}
	agg := Aggregate{Type: "campaign", ID: "c-1"}

	err := Record(context.Background(), nil, w, agg, "campaign.backed", map[string]any{"amount": 25})
	require.NoError(t, err)
	require.Len(t, w.events, 1)

	e := w.events[0]
	assert.Equal(t, "campaign", e.AggregateType)
	assert.Equal(t, "c-1", e.AggregateID)
	assert.Equal(t, "campaign.backed", e.RoutingKey)
	assert.Equal(t, StatusPending, e.Status)
	assert.JSONEq(t, `{"amount":25}`, string(e.Payload))
}

func TestRecordRejects(t *testing.T) {
	w := &captureWriter{}
	agg := Aggregate{Type: "job", ID: "j-1"}

	assert.Error(t, Record(context.Background(), nil, w, agg, "", struct{}{}))
	assert.ErrorContains(t, Record(context.Background(), nil, w, agg, "job.posted", make(chan int)), "job.posted")
	assert.Empty(t, w.events)
}
