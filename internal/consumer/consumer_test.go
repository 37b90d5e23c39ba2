package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-sync/internal/domains/author"
	"library-sync/internal/domains/book"
	"library-sync/internal/domains/category"
	"library-sync/internal/projection"
	"library-sync/internal/projection/memstore"
	"library-sync/internal/syncer"
)

type fakeSource struct {
	mu     sync.Mutex
	msgs   []Message
	acked  []string
	cancel context.CancelFunc
}

func (s *fakeSource) Fetch(ctx context.Context) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		if s.cancel != nil {
			s.cancel()
		}
		return Message{}, ErrNoMessage
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func (s *fakeSource) Ack(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, msg.ID)
	return nil
}

type memLedger struct {
	done map[string]bool
}

func newMemLedger() *memLedger { return &memLedger{done: map[string]bool{}} }

func (l *memLedger) IsProcessed(_ context.Context, stream, id string) (bool, error) {
	return l.done[stream+"/"+id], nil
}

func (l *memLedger) MarkProcessed(_ context.Context, stream, id string) error {
	l.done[stream+"/"+id] = true
	return nil
}

type fakeRetrier struct {
	retried []Message
	err     error
}

func (r *fakeRetrier) Retry(_ context.Context, msg Message, _ error) error {
	if r.err != nil {
		return r.err
	}
	r.retried = append(r.retried, msg)
	return nil
}

type countingRecorder struct {
	processed, failed, permanent, skipped, retried, unroutable, duplicate int
}

func (r *countingRecorder) RecordProcessed(context.Context, string, string, int) { r.processed++ }
func (r *countingRecorder) RecordFailed(_ context.Context, _ string, permanent bool) {
	r.failed++
	if permanent {
		r.permanent++
	}
}
func (r *countingRecorder) RecordSkipped(context.Context, string)    { r.skipped++ }
func (r *countingRecorder) RecordRetried(context.Context, string)    { r.retried++ }
func (r *countingRecorder) RecordUnroutable(context.Context, string) { r.unroutable++ }
func (r *countingRecorder) RecordDuplicate(context.Context, string)  { r.duplicate++ }

type panicApplier struct{}

func (panicApplier) Apply(context.Context, syncer.Event) (syncer.Outcome, error) {
	panic("embedded set is nil")
}

type flakyApplier struct{}

func (flakyApplier) Apply(context.Context, syncer.Event) (syncer.Outcome, error) {
	return syncer.Outcome{}, errors.New("dial tcp: connection refused")
}

// stumblingApplier fails the first failures[payload] applies of an event with a
// transient error, then delegates.
type stumblingApplier struct {
	next     Applier
	failures map[string]int
	calls    map[string]int
}

func (a *stumblingApplier) Apply(ctx context.Context, evt syncer.Event) (syncer.Outcome, error) {
	key := string(evt.Payload)
	a.calls[key]++
	if a.calls[key] <= a.failures[key] {
		return syncer.Outcome{}, errors.New("i/o timeout")
	}
	if a.next == nil {
		return syncer.Outcome{}, nil
	}
	return a.next.Apply(ctx, evt)
}

func msg(id, topic, key, value string) Message {
	return Message{ID: id, Stream: "library." + topic, Topic: topic, Key: key, Value: []byte(value)}
}

func run(t *testing.T, src *fakeSource, applier Applier, opts ...Option) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.cancel = cancel
	return New(src, applier, opts...).Run(ctx)
}

func TestConsumer_AppliesEventsInOrder(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	require.NoError(t, projection.Save(context.Background(), store, projection.Books, 10,
		book.Book{ID: 10, Authors: []author.Snapshot{{ID: 1, Name: "X"}}, Categories: []category.Snapshot{}}))

	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "create", `{"id":1,"name":"X"}`),
		msg("2-0", "author", "update", `{"id":1,"name":"Y","description":"bio"}`),
		msg("3-0", "category", "create", `{"id":5,"name":"Fiction"}`),
	}}
	rec := &countingRecorder{}

	require.NoError(t, run(t, src, s, WithRecorder(rec)))

	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, src.acked)
	assert.Equal(t, 3, rec.processed)

	b, err := projection.Load[book.Book](context.Background(), store, projection.Books, 10)
	require.NoError(t, err)
	assert.Equal(t, []author.Snapshot{{ID: 1, Name: "Y"}}, b.Authors)
}

func TestConsumer_PanicIsIsolated(t *testing.T) {
	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "create", `{}`),
		msg("2-0", "author", "create", `{}`),
	}}
	rec := &countingRecorder{}

	require.NoError(t, run(t, src, panicApplier{}, WithRecorder(rec)))

	assert.Equal(t, []string{"1-0", "2-0"}, src.acked)
	assert.Equal(t, 2, rec.failed)
	assert.Equal(t, 2, rec.permanent)
	assert.Equal(t, 2, rec.skipped)
}

func TestConsumer_BadEventDoesNotStopStream(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "update", `{"id":404,"name":"ghost"}`),
		msg("2-0", "author", "create", `{"id":`),
		msg("3-0", "author", "create", `{"id":2,"name":"ok"}`),
	}}
	rec := &countingRecorder{}

	require.NoError(t, run(t, src, s, WithRecorder(rec), WithRetrier(&fakeRetrier{}), WithPolicy(PolicyRetry)))

	assert.Len(t, src.acked, 3)
	assert.Equal(t, 2, rec.permanent, "not found and malformed are never retried")
	assert.Equal(t, 2, rec.skipped)
	assert.Equal(t, 0, rec.retried)
	assert.Equal(t, 1, rec.processed)
	assert.Equal(t, 1, store.Len(projection.Authors))
}

func TestConsumer_UnroutableIsCountedAndAcked(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	src := &fakeSource{msgs: []Message{msg("1-0", "reservation", "create", `{"id":1}`)}}
	rec := &countingRecorder{}

	require.NoError(t, run(t, src, s, WithRecorder(rec), WithPolicy(PolicyStop)))

	assert.Equal(t, 1, rec.unroutable)
	assert.Equal(t, 0, rec.failed)
	assert.Equal(t, []string{"1-0"}, src.acked)
	assert.Empty(t, store.Dump())
}

func TestConsumer_RetryPolicyEnqueuesTransientFailures(t *testing.T) {
	src := &fakeSource{msgs: []Message{msg("1-0", "author", "create", `{"id":1,"name":"X"}`)}}
	retrier := &fakeRetrier{}
	rec := &countingRecorder{}

	require.NoError(t, run(t, src, flakyApplier{}, WithPolicy(PolicyRetry), WithRetrier(retrier), WithRecorder(rec)))

	require.Len(t, retrier.retried, 1)
	assert.Equal(t, "1-0", retrier.retried[0].ID)
	assert.NotEmpty(t, retrier.retried[0].EventID)
	assert.Equal(t, 1, rec.retried)
	assert.Equal(t, []string{"1-0"}, src.acked)
}

func TestConsumer_RetryPolicyKeepsOrderForSameKey(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	applier := &stumblingApplier{
		next:     s,
		failures: map[string]int{`{"id":1,"name":"Y"}`: 2},
		calls:    map[string]int{},
	}
	retrier := &fakeRetrier{}
	rec := &countingRecorder{}

	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "create", `{"id":1,"name":"X"}`),
		msg("2-0", "author", "update", `{"id":1,"name":"Y"}`),
		msg("3-0", "author", "update", `{"id":1,"name":"Z"}`),
	}}

	require.NoError(t, run(t, src, applier,
		WithPolicy(PolicyRetry), WithRetrier(retrier), WithRecorder(rec),
		WithInlineRetry(3, time.Millisecond)))

	a, err := projection.Load[author.Author](context.Background(), store, projection.Authors, 1)
	require.NoError(t, err)
	assert.Equal(t, "Z", a.Name)
	assert.Equal(t, 3, applier.calls[`{"id":1,"name":"Y"}`])
	assert.Empty(t, retrier.retried)
	assert.Equal(t, 3, rec.processed)
	assert.Equal(t, 0, rec.failed)
	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, src.acked)
}

func TestConsumer_InlineRetriesExhaustedHandOffToQueue(t *testing.T) {
	payload := `{"id":1,"name":"X"}`
	applier := &stumblingApplier{failures: map[string]int{payload: 10}, calls: map[string]int{}}
	retrier := &fakeRetrier{}
	rec := &countingRecorder{}
	src := &fakeSource{msgs: []Message{msg("1-0", "author", "create", payload)}}

	require.NoError(t, run(t, src, applier,
		WithPolicy(PolicyRetry), WithRetrier(retrier), WithRecorder(rec),
		WithInlineRetry(2, time.Millisecond)))

	assert.Equal(t, 3, applier.calls[payload])
	assert.Len(t, retrier.retried, 1)
	assert.Equal(t, 1, rec.retried)
	assert.Equal(t, []string{"1-0"}, src.acked)
}

func TestConsumer_InlineRetrySkipsPermanentFailures(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	applier := &stumblingApplier{next: s, calls: map[string]int{}}
	retrier := &fakeRetrier{}
	rec := &countingRecorder{}
	src := &fakeSource{msgs: []Message{msg("1-0", "author", "update", `{"id":1,"name":"X"}`)}}

	require.NoError(t, run(t, src, applier,
		WithPolicy(PolicyRetry), WithRetrier(retrier), WithRecorder(rec),
		WithInlineRetry(3, time.Millisecond)))

	assert.Equal(t, 1, applier.calls[`{"id":1,"name":"X"}`])
	assert.Empty(t, retrier.retried)
	assert.Equal(t, 1, rec.permanent)
	assert.Equal(t, 1, rec.skipped)
}

func TestConsumer_RetryEnqueueFailureLeavesMessagePending(t *testing.T) {
	src := &fakeSource{msgs: []Message{msg("1-0", "author", "create", `{"id":1,"name":"X"}`)}}
	retrier := &fakeRetrier{err: errors.New("redis down")}

	err := run(t, src, flakyApplier{}, WithPolicy(PolicyRetry), WithRetrier(retrier))

	assert.Error(t, err)
	assert.Empty(t, src.acked)
}

func TestConsumer_StopPolicyHaltsWithoutAck(t *testing.T) {
	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "create", `{"id":1,"name":"X"}`),
		msg("2-0", "author", "create", `{"id":2,"name":"Y"}`),
	}}

	err := run(t, src, flakyApplier{}, WithPolicy(PolicyStop))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, src.acked)
	assert.Len(t, src.msgs, 1)
}

func TestConsumer_DuplicateDeliveryIsSkipped(t *testing.T) {
	store := memstore.New()
	s := syncer.NewSynchronizer(syncer.NewDefaultRegistry(store), nil)
	ledger := newMemLedger()
	rec := &countingRecorder{}

	src := &fakeSource{msgs: []Message{
		msg("1-0", "author", "create", `{"id":1,"name":"X"}`),
		msg("1-0", "author", "create", `{"id":1,"name":"X"}`),
	}}

	require.NoError(t, run(t, src, s, WithLedger(ledger), WithRecorder(rec)))

	assert.Equal(t, 1, rec.processed)
	assert.Equal(t, 1, rec.duplicate)
	assert.Equal(t, []string{"1-0", "1-0"}, src.acked)
}

func TestNew_RetryWithoutRetrierFallsBackToSkip(t *testing.T) {
	c := New(&fakeSource{}, flakyApplier{}, WithPolicy(PolicyRetry))
	assert.Equal(t, PolicySkip, c.policy)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("stop")
	require.NoError(t, err)
	assert.Equal(t, PolicyStop, p)

	_, err = ParsePolicy("dead-letter")
	assert.Error(t, err)
}
