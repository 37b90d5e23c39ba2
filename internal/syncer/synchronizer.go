package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is one change event as read from the bus.
type Event struct {
	ID      string
	Topic   string // entity-type tag
	Key     string // operation tag
	Payload []byte
}

// Outcome is what Apply did for one event.
type Outcome struct {
	Kind   Kind
	Op     Op
	Result Result
}

// Synchronizer routes events to their handler group and runs them one at a
// time. Every entry point that mutates the projection takes the same lock, so
// the consumer loop, the retry worker and reconcile runs never interleave.
type Synchronizer struct {
	mu         sync.Mutex
	registry   *Registry
	reconciler *Reconciler
}

func NewSynchronizer(registry *Registry, reconciler *Reconciler) *Synchronizer {
	return &Synchronizer{
		registry:   registry,
		reconciler: reconciler,
	}
}

// Registry exposes the dispatch table, e.g. to subscribe to its topics.
func (s *Synchronizer) Registry() *Registry {
	return s.registry
}

// Apply processes one event. Unregistered topics return ErrUnroutable without
// touching the store.
func (s *Synchronizer) Apply(ctx context.Context, evt Event) (Outcome, error) {
	kind, ok := ParseKind(evt.Topic)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnroutable, evt.Topic)
	}
	h, ok := s.registry.Lookup(kind)
	if !ok {
		return Outcome{Kind: kind}, fmt.Errorf("%w: %q", ErrUnroutable, evt.Topic)
	}
	op, ok := ParseOp(evt.Key)
	if !ok {
		return Outcome{Kind: kind}, fmt.Errorf("%w: %q on %s", ErrUnknownOperation, evt.Key, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := dispatch(h, op)(ctx, evt.Payload)
	out := Outcome{Kind: kind, Op: op, Result: res}
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", kind, op, err)
	}

	log.Info().
		Str("event_id", evt.ID).
		Str("kind", kind.String()).
		Str("op", string(op)).
		Int64("entity_id", res.ID).
		Int("affected", res.Affected).
		Dur("took", time.Since(start)).
		Msg("event applied")
	return out, nil
}

// Reconcile runs a reconciliation pass under the synchronizer lock.
func (s *Synchronizer) Reconcile(ctx context.Context) (ReconcileReport, error) {
	if s.reconciler == nil {
		return ReconcileReport{}, fmt.Errorf("reconcile: no reconciler configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.Run(ctx)
}
