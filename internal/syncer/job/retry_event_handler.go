package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"library-sync/internal/shared"
	"library-sync/internal/syncer"
	"library-sync/pkg/logger"
)

// Applier is the part of the synchronizer the retry worker needs.
type Applier interface {
	Apply(ctx context.Context, evt syncer.Event) (syncer.Outcome, error)
}

// RetryEventHandler re-applies events that failed transiently in the consumer loop.
// asynq retries it with backoff and archives the task once MaxRetry is exhausted.
type RetryEventHandler struct {
	applier Applier
}

func NewRetryEventHandler(applier Applier) *RetryEventHandler {
	return &RetryEventHandler{applier: applier}
}

// ProcessTask
// 1. Parse payload (broken payload → SkipRetry, retrying cannot fix it)
// 2. Apply the event through the synchronizer
// 3. Permanent failures → SkipRetry so asynq archives the task immediately
func (h *RetryEventHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.RetryEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("RetryEvent: Failed to unmarshal payload", err)
		return fmt.Errorf("unmarshal RetryEvent payload: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	evt := syncer.Event{
		ID:      payload.EventID,
		Topic:   payload.Topic,
		Key:     payload.Key,
		Payload: payload.Value,
	}

	out, err := h.applier.Apply(ctx, evt)
	if err != nil {
		if syncer.IsPermanent(err) {
			logger.Error(fmt.Sprintf("RetryEvent: permanent failure for event %s", payload.EventID), err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Warn("RetryEvent: apply failed, asynq will retry", map[string]interface{}{
			"event_id":       payload.EventID,
			"correlation_id": payload.CorrelationID,
			"topic":          payload.Topic,
			"retry":          retried,
			"error":          err.Error(),
		})
		return err
	}

	logger.Info("RetryEvent: applied", map[string]interface{}{
		"event_id":       payload.EventID,
		"correlation_id": payload.CorrelationID,
		"kind":           out.Kind.String(),
		"op":             string(out.Op),
		"entity_id":      out.Result.ID,
		"affected":       out.Result.Affected,
		"retry":          retried,
	})
	return nil
}
