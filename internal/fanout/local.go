package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// LocalBroker delivers straight to this instance's connections.
type LocalBroker struct {
	deliverer Deliverer
}

// NewLocalBroker wraps the in-process hub.
func NewLocalBroker(deliverer Deliverer) *LocalBroker {
	return &LocalBroker{deliverer: deliverer}
}

func (b *LocalBroker) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	dispatch(b.deliverer, event.ChatID, payload)
	return nil
}

func (b *LocalBroker) Close() error {
	return nil
}

// dispatch writes an encoded event to the topic's connections. A removed
// participant is evicted from the topic after seeing its own removal.
func dispatch(deliverer Deliverer, topic string, payload []byte) int {
	delivered := deliverer.Deliver(topic, payload)

	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		slog.Warn("fanout payload not decodable", "topic", topic, "err", err)
		return delivered
	}
	if wire.Kind != ParticipantRemoved {
		return delivered
	}
	var removed ParticipantPayload
	if err := json.Unmarshal(wire.Payload, &removed); err != nil || removed.UserID == "" {
		return delivered
	}
	deliverer.Evict(topic, removed.UserID)
	return delivered
}
