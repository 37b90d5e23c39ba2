// Package stream carries change events over Redis Streams: one stream per
// entity-type tag, read through a single consumer group.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"library-sync/internal/consumer"
	"library-sync/internal/shared"
)

// Entry field names.
const (
	FieldKey     = "key"
	FieldValue   = "value"
	FieldEventID = "event_id"
)

type Config struct {
	Prefix   string
	Group    string
	Consumer string
	Block    time.Duration
}

// Source implements consumer.Source. On start it replays entries this
// consumer received before but never acked, then switches to new entries.
// Not safe for concurrent use; the consumer loop is its only caller.
type Source struct {
	client  *redis.Client
	cfg     Config
	streams []string

	replaying bool
	cursor    map[string]string // last replayed id per stream
	buf       []consumer.Message
}

var _ consumer.Source = (*Source)(nil)

func NewSource(client *redis.Client, cfg Config, topics []string) *Source {
	streams := make([]string, len(topics))
	cursor := make(map[string]string, len(topics))
	for i, t := range topics {
		streams[i] = shared.StreamName(cfg.Prefix, t)
		cursor[streams[i]] = "0"
	}
	return &Source{
		client:    client,
		cfg:       cfg,
		streams:   streams,
		replaying: true,
		cursor:    cursor,
	}
}

// Streams returns the stream names this source reads.
func (s *Source) Streams() []string {
	return append([]string(nil), s.streams...)
}

// Setup creates the consumer group on every stream, creating missing streams.
func (s *Source) Setup(ctx context.Context) error {
	for _, st := range s.streams {
		err := s.client.XGroupCreateMkStream(ctx, st, s.cfg.Group, "0").Err()
		if err != nil && !isBusyGroup(err) {
			return fmt.Errorf("create group %s on %s: %w", s.cfg.Group, st, err)
		}
	}
	log.Info().Strs("streams", s.streams).Str("group", s.cfg.Group).Str("consumer", s.cfg.Consumer).Msg("stream source ready")
	return nil
}

func (s *Source) Fetch(ctx context.Context) (consumer.Message, error) {
	if len(s.buf) == 0 {
		if err := s.fill(ctx); err != nil {
			return consumer.Message{}, err
		}
	}
	if len(s.buf) == 0 {
		return consumer.Message{}, consumer.ErrNoMessage
	}
	msg := s.buf[0]
	s.buf = s.buf[1:]
	return msg, nil
}

func (s *Source) fill(ctx context.Context) error {
	if s.replaying {
		n, err := s.read(ctx, s.pendingIDs(), -1)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		s.replaying = false
		log.Info().Msg("pending entries replayed, reading new entries")
	}

	_, err := s.read(ctx, s.newIDs(), s.cfg.Block)
	return err
}

// read issues one XREADGROUP and buffers what it returns. block < 0 omits BLOCK.
func (s *Source) read(ctx context.Context, ids []string, block time.Duration) (int, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  append(append([]string(nil), s.streams...), ids...),
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("xreadgroup: %w", err)
	}

	n := 0
	for _, xs := range res {
		for _, xm := range xs.Messages {
			if s.replaying {
				s.cursor[xs.Stream] = xm.ID
			}
			s.buf = append(s.buf, toMessage(s.cfg.Prefix, xs.Stream, xm))
			n++
		}
	}
	return n, nil
}

func (s *Source) pendingIDs() []string {
	ids := make([]string, len(s.streams))
	for i, st := range s.streams {
		ids[i] = s.cursor[st]
	}
	return ids
}

func (s *Source) newIDs() []string {
	ids := make([]string, len(s.streams))
	for i := range ids {
		ids[i] = ">"
	}
	return ids
}

func (s *Source) Ack(ctx context.Context, msg consumer.Message) error {
	if err := s.client.XAck(ctx, msg.Stream, s.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s %s: %w", msg.Stream, msg.ID, err)
	}
	return nil
}

func toMessage(prefix, stream string, xm redis.XMessage) consumer.Message {
	return consumer.Message{
		ID:      xm.ID,
		Stream:  stream,
		Topic:   strings.TrimPrefix(stream, prefix+"."),
		Key:     stringField(xm.Values, FieldKey),
		Value:   []byte(stringField(xm.Values, FieldValue)),
		EventID: stringField(xm.Values, FieldEventID),
	}
}

func stringField(values map[string]interface{}, name string) string {
	switch v := values[name].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
