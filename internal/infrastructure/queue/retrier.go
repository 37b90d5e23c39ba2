package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"library-sync/internal/consumer"
	"library-sync/internal/shared"
	"library-sync/pkg/logger"
)

// Enqueuer is the subset of *asynq.Client the retrier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Retrier hands transiently failed events to the sync queue.
// The task id is the event id, so a redelivered event is enqueued once.
type Retrier struct {
	client   Enqueuer
	maxRetry int
	timeout  time.Duration
}

var _ consumer.Retrier = (*Retrier)(nil)

func NewRetrier(client Enqueuer, maxRetry int) *Retrier {
	return &Retrier{client: client, maxRetry: maxRetry, timeout: 2 * time.Minute}
}

func (r *Retrier) Retry(ctx context.Context, msg consumer.Message, cause error) error {
	task, err := NewRetryEventTask(msg)
	if err != nil {
		return err
	}

	info, err := r.client.EnqueueContext(ctx, task,
		asynq.TaskID(msg.EventID),
		asynq.Queue(shared.QueueSync),
		asynq.MaxRetry(r.maxRetry),
		asynq.Timeout(r.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Warn("Retry task already queued", map[string]interface{}{
			"event_id": msg.EventID,
			"topic":    msg.Topic,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue retry for event %s: %w", msg.EventID, err)
	}

	logger.Info("Event queued for retry", map[string]interface{}{
		"event_id":   msg.EventID,
		"topic":      msg.Topic,
		"task_id":    info.ID,
		"max_retry":  r.maxRetry,
		"cause":      cause.Error(),
		"message_id": msg.ID,
	})
	return nil
}

// NewRetryEventTask wraps a stream message into a sync:retry_event task.
func NewRetryEventTask(msg consumer.Message) (*asynq.Task, error) {
	payload, err := json.Marshal(shared.RetryEventPayload{
		EventID:       msg.EventID,
		CorrelationID: msg.EventID,
		Topic:         msg.Topic,
		Key:           msg.Key,
		Value:         msg.Value,
		Stream:        msg.Stream,
		MessageID:     msg.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal retry payload: %w", err)
	}
	return asynq.NewTask(shared.TypeRetryEvent, payload), nil
}
