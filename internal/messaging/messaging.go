package messaging

import (
	"context"
	"time"
)

const (
	EventOrderPlaced           = "order.placed"
	EventCancellationRequested = "order.cancellation_requested"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

// NewNoop returns a Publisher that drops every event. Used when no broker is
// configured.
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error {
	return nil
}
