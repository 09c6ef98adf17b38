package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// eventChannel carries every engine event; the envelope's event field
// tells subscribers what they are looking at.
const eventChannel = "tenorarb:events"

// EventBus implements domain.EventBus over Redis pub/sub. Events are
// JSON envelopes on a single channel.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

var _ domain.EventBus = (*EventBus)(nil)

type eventEnvelope struct {
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publish sends one engine event. Delivery is fire-and-forget: there is
// no acknowledgement and no buffering beyond Redis itself.
func (b *EventBus) Publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(eventEnvelope{Event: event, At: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", event, err)
	}
	if err := b.rdb.Publish(ctx, eventChannel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", event, err)
	}
	return nil
}
