package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"library-sync/internal/consumer"
	"library-sync/internal/shared"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func testMessage() consumer.Message {
	return consumer.Message{
		ID:      "1-0",
		Stream:  "library.author",
		Topic:   "author",
		Key:     "update",
		Value:   []byte(`{"id":1,"name":"X"}`),
		EventID: "evt-1",
	}
}

func TestNewRetryEventTask(t *testing.T) {
	task, err := NewRetryEventTask(testMessage())
	require.NoError(t, err)
	assert.Equal(t, shared.TypeRetryEvent, task.Type())

	var p shared.RetryEventPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "evt-1", p.EventID)
	assert.Equal(t, "author", p.Topic)
	assert.Equal(t, "update", p.Key)
	assert.JSONEq(t, `{"id":1,"name":"X"}`, string(p.Value))
	assert.Equal(t, "1-0", p.MessageID)
}

func TestRetrier_Enqueues(t *testing.T) {
	q := new(mockEnqueuer)
	q.On("EnqueueContext", mock.Anything, mock.AnythingOfType("*asynq.Task"), mock.Anything).
		Return(&asynq.TaskInfo{ID: "evt-1", Queue: shared.QueueSync}, nil).Once()

	r := NewRetrier(q, 3)
	require.NoError(t, r.Retry(context.Background(), testMessage(), errors.New("store timeout")))

	q.AssertExpectations(t)
	opts := q.Calls[0].Arguments.Get(2).([]asynq.Option)
	values := map[asynq.OptionType]interface{}{}
	for _, o := range opts {
		values[o.Type()] = o.Value()
	}
	assert.Equal(t, "evt-1", values[asynq.TaskIDOpt])
	assert.Equal(t, shared.QueueSync, values[asynq.QueueOpt])
	assert.Equal(t, 3, values[asynq.MaxRetryOpt])
}

func TestRetrier_DuplicateTaskIsNotAnError(t *testing.T) {
	q := new(mockEnqueuer)
	q.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, asynq.ErrTaskIDConflict).Once()

	r := NewRetrier(q, 3)
	assert.NoError(t, r.Retry(context.Background(), testMessage(), errors.New("boom")))
}

func TestRetrier_EnqueueFailure(t *testing.T) {
	q := new(mockEnqueuer)
	q.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("redis down")).Once()

	r := NewRetrier(q, 3)
	err := r.Retry(context.Background(), testMessage(), errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
}
