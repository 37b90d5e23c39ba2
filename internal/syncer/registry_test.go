package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-sync/internal/projection/memstore"
)

type stubHandler struct {
	calls []Op
}

func (h *stubHandler) Create(context.Context, []byte) (Result, error) {
	h.calls = append(h.calls, OpCreate)
	return Result{ID: 1}, nil
}

func (h *stubHandler) Update(context.Context, []byte) (Result, error) {
	h.calls = append(h.calls, OpUpdate)
	return Result{ID: 1}, nil
}

func (h *stubHandler) Delete(context.Context, []byte) (Result, error) {
	h.calls = append(h.calls, OpDelete)
	return Result{ID: 1}, nil
}

func TestDefaultRegistryCoversEveryKind(t *testing.T) {
	r := NewDefaultRegistry(memstore.New())

	assert.Equal(t, AllKinds, r.Kinds())
	assert.Equal(t, []string{"author", "category", "location", "book", "book_copy"}, r.Topics())
	for _, k := range AllKinds {
		h, ok := r.Lookup(k)
		assert.True(t, ok, k.String())
		assert.NotNil(t, h)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	h := &stubHandler{}

	require.NoError(t, r.Register(KindLocation, h))
	assert.Error(t, r.Register(KindLocation, h), "duplicate")
	assert.Error(t, r.Register(Kind(99), h), "unknown kind")
	assert.Error(t, r.Register(KindBook, nil), "nil handler")
	assert.Panics(t, func() { r.MustRegister(KindLocation, h) })
}

func TestSynchronizer_DispatchesByOperation(t *testing.T) {
	r := NewRegistry()
	h := &stubHandler{}
	r.MustRegister(KindLocation, h)
	s := NewSynchronizer(r, nil)

	for _, key := range []string{"create", "update", "delete"} {
		_, err := s.Apply(context.Background(), Event{Topic: "location", Key: key, Payload: []byte(`{}`)})
		require.NoError(t, err)
	}
	assert.Equal(t, []Op{OpCreate, OpUpdate, OpDelete}, h.calls)

	// known kind without a registered handler is unroutable too
	_, err := s.Apply(context.Background(), Event{Topic: "author", Key: "create", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrUnroutable)
}

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds {
		got, ok := ParseKind(k.Topic())
		require.True(t, ok)
		assert.Equal(t, k, got)
		assert.NotEmpty(t, k.Collection())
	}

	_, ok := ParseKind("user")
	assert.False(t, ok)
}

func TestParseOp(t *testing.T) {
	op, ok := ParseOp("delete")
	assert.True(t, ok)
	assert.Equal(t, OpDelete, op)

	_, ok = ParseOp("DELETE")
	assert.False(t, ok)
}
