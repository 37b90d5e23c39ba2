// Package consumer drains change events from the bus and applies them one at a
// time through the synchronizer.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"library-sync/internal/syncer"
)

var (
	// ErrNoMessage is returned by Source.Fetch when nothing arrived before its
	// blocking deadline.
	ErrNoMessage = errors.New("no message available")

	// ErrHandlerPanic wraps a panic recovered while applying an event.
	ErrHandlerPanic = errors.New("handler panicked")
)

// Message is one event as delivered by the bus.
type Message struct {
	ID      string // bus-assigned id, used for ack and the ledger
	Stream  string
	Topic   string
	Key     string
	Value   []byte
	EventID string // producer-assigned id; generated when absent
}

// Source delivers messages in bus order.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Ack(ctx context.Context, msg Message) error
}

type Applier interface {
	Apply(ctx context.Context, evt syncer.Event) (syncer.Outcome, error)
}

// Ledger remembers messages already dispositioned, so redeliveries after a
// crash between processing and ack are skipped.
type Ledger interface {
	IsProcessed(ctx context.Context, stream, id string) (bool, error)
	MarkProcessed(ctx context.Context, stream, id string) error
}

// Retrier hands a transiently failed message to the retry queue.
type Retrier interface {
	Retry(ctx context.Context, msg Message, cause error) error
}

// Recorder receives one call per message outcome.
type Recorder interface {
	RecordProcessed(ctx context.Context, topic, op string, affected int)
	RecordFailed(ctx context.Context, topic string, permanent bool)
	RecordSkipped(ctx context.Context, topic string)
	RecordRetried(ctx context.Context, topic string)
	RecordUnroutable(ctx context.Context, topic string)
	RecordDuplicate(ctx context.Context, topic string)
}

// Consumer is the single logical worker draining the bus.
type Consumer struct {
	source        Source
	applier       Applier
	ledger        Ledger
	retrier       Retrier
	recorder      Recorder
	policy        Policy
	fetchBackoff  time.Duration
	inlineRetries int
	inlineBackoff time.Duration
}

type Option func(*Consumer)

func WithPolicy(p Policy) Option        { return func(c *Consumer) { c.policy = p } }
func WithLedger(l Ledger) Option        { return func(c *Consumer) { c.ledger = l } }
func WithRetrier(r Retrier) Option      { return func(c *Consumer) { c.retrier = r } }
func WithRecorder(r Recorder) Option    { return func(c *Consumer) { c.recorder = r } }
func WithFetchBackoff(d time.Duration) Option {
	return func(c *Consumer) { c.fetchBackoff = d }
}

// WithInlineRetry makes the retry policy re-apply a transiently failed event
// in place, up to attempts more times, before the next message is fetched.
// Only an event still failing after that is handed to the retry queue.
func WithInlineRetry(attempts int, initial time.Duration) Option {
	return func(c *Consumer) {
		c.inlineRetries = attempts
		c.inlineBackoff = initial
	}
}

func New(source Source, applier Applier, opts ...Option) *Consumer {
	c := &Consumer{
		source:       source,
		applier:      applier,
		ledger:       nopLedger{},
		recorder:     nopRecorder{},
		policy:        PolicySkip,
		fetchBackoff:  time.Second,
		inlineBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == PolicyRetry && c.retrier == nil {
		log.Warn().Msg("retry policy without a retrier, falling back to skip")
		c.policy = PolicySkip
	}
	return c
}

// Run processes messages until ctx is cancelled (returns nil) or, under the
// stop policy, an event fails (returns that error, message left unacked).
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Str("policy", string(c.policy)).Msg("consumer started")
	defer log.Info().Msg("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.source.Fetch(ctx)
		if errors.Is(err, ErrNoMessage) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			return err
		}
	}
}

// Handle runs one message through ledger check, apply, disposition and ack.
// It returns an error only when the stop policy halts the loop.
func (c *Consumer) Handle(ctx context.Context, msg Message) error {
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	l := log.With().
		Str("event_id", msg.EventID).
		Str("stream", msg.Stream).
		Str("message_id", msg.ID).
		Str("topic", msg.Topic).
		Str("op", msg.Key).
		Logger()

	done, err := c.ledger.IsProcessed(ctx, msg.Stream, msg.ID)
	if err != nil {
		l.Warn().Err(err).Msg("ledger lookup failed, processing anyway")
	}
	if done {
		l.Info().Msg("duplicate delivery skipped")
		c.recorder.RecordDuplicate(ctx, msg.Topic)
		c.ack(ctx, l, msg)
		return nil
	}

	out, err := c.apply(ctx, l, msg)
	if err != nil && ctx.Err() != nil {
		// Shutdown interrupted the event: leave it pending for redelivery.
		l.Warn().Err(err).Msg("event interrupted by shutdown, left pending")
		return nil
	}
	switch {
	case err == nil:
		c.recorder.RecordProcessed(ctx, msg.Topic, string(out.Op), out.Result.Affected)
	case errors.Is(err, syncer.ErrUnroutable):
		l.Warn().Msg("no handler for topic, event dropped")
		c.recorder.RecordUnroutable(ctx, msg.Topic)
	default:
		if err := c.dispose(ctx, l, msg, err); err != nil {
			return err
		}
	}

	if err := c.ledger.MarkProcessed(ctx, msg.Stream, msg.ID); err != nil {
		l.Warn().Err(err).Msg("ledger mark failed")
	}
	c.ack(ctx, l, msg)
	return nil
}

// apply runs the event once, or under the retry policy keeps re-running a
// transient failure with exponential backoff. Later messages wait, so events
// for the same key keep their bus order.
func (c *Consumer) apply(ctx context.Context, l zerolog.Logger, msg Message) (syncer.Outcome, error) {
	if c.policy != PolicyRetry || c.inlineRetries <= 0 {
		return c.processSafely(ctx, msg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.inlineBackoff
	b.Multiplier = 2
	b.MaxInterval = 16 * c.inlineBackoff

	return backoff.Retry(ctx, func() (syncer.Outcome, error) {
		out, err := c.processSafely(ctx, msg)
		if err != nil && IsPermanent(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.inlineRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Warn().Err(err).Dur("retry_in", next).Msg("event failed, retrying in place")
		}),
	)
}

// processSafely is the per-event isolation boundary.
func (c *Consumer) processSafely(ctx context.Context, msg Message) (out syncer.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event_id", msg.EventID).
				Str("stack", string(debug.Stack())).
				Msgf("recovered panic: %v", r)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return c.applier.Apply(ctx, syncer.Event{
		ID:      msg.EventID,
		Topic:   msg.Topic,
		Key:     msg.Key,
		Payload: msg.Value,
	})
}

func (c *Consumer) dispose(ctx context.Context, l zerolog.Logger, msg Message, cause error) error {
	permanent := IsPermanent(cause)
	c.recorder.RecordFailed(ctx, msg.Topic, permanent)

	switch {
	case c.policy == PolicyStop:
		l.Error().Err(cause).Bool("permanent", permanent).Msg("event failed, stopping consumer")
		return fmt.Errorf("event %s (%s/%s): %w", msg.EventID, msg.Stream, msg.ID, cause)

	case c.policy == PolicyRetry && !permanent:
		if err := c.retrier.Retry(ctx, msg, cause); err != nil {
			l.Error().Err(err).Msg("enqueue retry failed, leaving message pending")
			return fmt.Errorf("enqueue retry for event %s: %w", msg.EventID, err)
		}
		l.Warn().Err(cause).Msg("event still failing after in-place retries, handed to retry queue")
		c.recorder.RecordRetried(ctx, msg.Topic)

	default:
		l.Error().Err(cause).Bool("permanent", permanent).Msg("event failed, skipped")
		c.recorder.RecordSkipped(ctx, msg.Topic)
	}
	return nil
}

func (c *Consumer) ack(ctx context.Context, l zerolog.Logger, msg Message) {
	if err := c.source.Ack(ctx, msg); err != nil {
		l.Warn().Err(err).Msg("ack failed, message will be redelivered")
	}
}

// IsPermanent extends syncer.IsPermanent with recovered panics, which are
// assumed deterministic.
func IsPermanent(err error) bool {
	return syncer.IsPermanent(err) || errors.Is(err, ErrHandlerPanic)
}

type nopLedger struct{}

func (nopLedger) IsProcessed(context.Context, string, string) (bool, error) { return false, nil }
func (nopLedger) MarkProcessed(context.Context, string, string) error       { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordProcessed(context.Context, string, string, int) {}
func (nopRecorder) RecordFailed(context.Context, string, bool)           {}
func (nopRecorder) RecordSkipped(context.Context, string)                {}
func (nopRecorder) RecordRetried(context.Context, string)                {}
func (nopRecorder) RecordUnroutable(context.Context, string)             {}
func (nopRecorder) RecordDuplicate(context.Context, string)              {}
