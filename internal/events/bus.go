package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is an immutable record of something that happened in the domain.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Store defines the persistence operations required by the event bus.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (e.g. logging, metrics, webhooks).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus records domain events and fans them out to downstream handlers.
type Bus struct {
	Store     Store
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit records the event and dispatches it to all configured notifiers.
// Notifier failures do not undo the append; they are joined into the
// returned error so the caller can log them.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  b.now(),
	}
	if err := b.Store.Append(ctx, ev); err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func (b *Bus) now() time.Time {
	if b != nil && b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		return json.Marshal(v)
	}
}

// MemoryStore keeps emitted events in memory, most recent last.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// ByAggregate returns recorded events for one aggregate in emit order.
func (m *MemoryStore) ByAggregate(aggregateID string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.AggregateID == aggregateID {
			out = append(out, ev)
		}
	}
	return out
}

// All returns every recorded event in emit order.
func (m *MemoryStore) All() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// LogNotifier writes each emitted event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		Time("occurred_at", event.OccurredAt).
		Msg("domain_event")
	return nil
}
