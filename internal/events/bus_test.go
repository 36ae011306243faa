package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/greenlot/backend-dispensary/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &events.MemoryStore{}
	notifier := &captureNotifier{}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return now },
	}

	aggregate := uuid.NewString()
	payload := map[string]any{"transactionId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, events.TopicTransactionSettled, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicTransactionSettled, event.Topic)
	require.Equal(t, now, event.OccurredAt)
	require.JSONEq(t, `{"transactionId":"123"}`, string(event.Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	recorded := store.ByAggregate(aggregate)
	require.Len(t, recorded, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(recorded[0].Payload, &decoded))
	require.Equal(t, "123", decoded["transactionId"])
}

func TestEmitRejectsBadInput(t *testing.T) {
	bus := events.Bus{Store: &events.MemoryStore{}}
	ctx := context.Background()

	_, err := bus.Emit(ctx, "", "agg", nil)
	require.Error(t, err)

	_, err = bus.Emit(ctx, events.TopicTransactionSettled, "", nil)
	require.Error(t, err)

	_, err = bus.Emit(ctx, events.TopicTransactionSettled, "agg", json.RawMessage(`{not json`))
	require.Error(t, err)
}

func TestEmitDefaultsEmptyPayload(t *testing.T) {
	store := &events.MemoryStore{}
	bus := events.Bus{Store: store}

	event, err := bus.Emit(context.Background(), events.TopicSessionOpened, "agg", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(event.Payload))
}
