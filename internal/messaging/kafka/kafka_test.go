package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging"
)

type recordingWriter struct {
	messages []kafkaGo.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	p := &Publisher{writer: writer}

	event := messaging.Event{
		ID:         "evt-1",
		Type:       messaging.EventOrderPlaced,
		Key:        "5001",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:    map[string]string{"order_id": "5001"},
	}

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "5001", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, messaging.EventOrderPlaced, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded["id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["occurred_at"])
}

func TestPublisher_WriteError(t *testing.T) {
	p := &Publisher{writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), messaging.Event{Type: messaging.EventCancellationRequested})
	assert.ErrorContains(t, err, "failed to write order.cancellation_requested event: broker down")
}
