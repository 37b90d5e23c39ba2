package stream

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"library-sync/internal/shared"
)

// Publisher appends change events to their topic stream. The worker itself
// never publishes; tooling and integration tests do.
type Publisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// NewPublisher returns a publisher; maxLen > 0 caps each stream approximately.
func NewPublisher(client *redis.Client, prefix string, maxLen int64) *Publisher {
	return &Publisher{client: client, prefix: prefix, maxLen: maxLen}
}

// Publish appends one event and returns its event id and stream entry id.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) (string, string, error) {
	eventID := uuid.NewString()
	args := &redis.XAddArgs{
		Stream: shared.StreamName(p.prefix, topic),
		Values: map[string]interface{}{
			FieldKey:     key,
			FieldValue:   string(payload),
			FieldEventID: eventID,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", "", fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return eventID, id, nil
}
