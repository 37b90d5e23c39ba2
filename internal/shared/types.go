package shared

import "fmt"

// Task types handled by the worker's asynq mux.
const (
	TypeRetryEvent = "sync:retry_event"
	TypeReconcile  = "sync:reconcile"
)

// QueueSync carries both retried events and reconcile runs. The worker serves
// it with a single goroutine so mutations never interleave.
const QueueSync = "sync"

// LedgerKeyPrefix namespaces idempotency markers in Redis.
const LedgerKeyPrefix = "sync:processed:"

// LastReconcileKey holds the outcome of the most recent reconcile pass.
const LastReconcileKey = "sync:reconcile:last"

// RetryEventPayload is the asynq payload of a change event handed to the
// retry queue after a transient failure.
type RetryEventPayload struct {
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
	Topic         string `json:"topic"`
	Key           string `json:"key"`
	Value         []byte `json:"value"`
	Stream        string `json:"stream,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
}

// ReconcilePayload carries no options. A run walks every embedding document.
type ReconcilePayload struct{}

// StreamName returns the Redis stream carrying events for topic.
func StreamName(prefix, topic string) string {
	return fmt.Sprintf("%s.%s", prefix, topic)
}

// LedgerKey returns the idempotency marker for one stream entry.
func LedgerKey(stream, messageID string) string {
	return LedgerKeyPrefix + stream + ":" + messageID
}
