package syncer

import (
	"context"
	"fmt"
	"sort"

	"library-sync/internal/projection"
)

// Result describes what one handler call did.
type Result struct {
	ID       int64
	Affected int // embedding documents rewritten by the cascade
}

// Handler is the create/update/delete group of one entity kind. Payload is the
// raw event value.
type Handler interface {
	Create(ctx context.Context, payload []byte) (Result, error)
	Update(ctx context.Context, payload []byte) (Result, error)
	Delete(ctx context.Context, payload []byte) (Result, error)
}

// Registry is the dispatch table from kind to handler group. It is filled at
// startup and read-only afterwards.
type Registry struct {
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// NewDefaultRegistry registers a handler group for every kind against store.
func NewDefaultRegistry(store projection.Store) *Registry {
	r := NewRegistry()
	r.MustRegister(KindAuthor, NewAuthorHandler(store))
	r.MustRegister(KindCategory, NewCategoryHandler(store))
	r.MustRegister(KindLocation, NewLocationHandler(store))
	r.MustRegister(KindBook, NewBookHandler(store))
	r.MustRegister(KindBookCopy, NewBookCopyHandler(store))
	return r
}

func (r *Registry) Register(kind Kind, h Handler) error {
	if _, known := kindTopics[kind]; !known {
		return fmt.Errorf("register %v: unknown kind", kind)
	}
	if h == nil {
		return fmt.Errorf("register %v: nil handler", kind)
	}
	if _, dup := r.handlers[kind]; dup {
		return fmt.Errorf("register %v: handler already registered", kind)
	}
	r.handlers[kind] = h
	return nil
}

func (r *Registry) MustRegister(kind Kind, h Handler) {
	if err := r.Register(kind, h); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(kind Kind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Topics returns the bus topics of the registered kinds.
func (r *Registry) Topics() []string {
	kinds := r.Kinds()
	topics := make([]string, len(kinds))
	for i, k := range kinds {
		topics[i] = k.Topic()
	}
	return topics
}

// dispatch selects the handler function for op.
func dispatch(h Handler, op Op) func(context.Context, []byte) (Result, error) {
	switch op {
	case OpCreate:
		return h.Create
	case OpUpdate:
		return h.Update
	case OpDelete:
		return h.Delete
	}
	return nil
}
