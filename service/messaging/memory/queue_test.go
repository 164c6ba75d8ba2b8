package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kcore/service/messaging"
)

type transition struct {
	PID   int
	State string
}

func TestQueue(t *testing.T) {
	queue := NewQueue[transition](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &transition{PID: 3, State: "runnable"}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, transition{PID: 3, State: "runnable"}, *message.T())
	assert.Len(t, message.(*Message[transition]).ID(), 36)

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
}

func TestQueue_PublishFull(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 2
	queue := NewQueue[transition](config)
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &transition{PID: 1}))
	require.NoError(t, queue.Publish(ctx, &transition{PID: 2}))
	err := queue.Publish(ctx, &transition{PID: 3})
	assert.True(t, errors.Is(err, messaging.ErrQueueFull))
	assert.Equal(t, 1, queue.Dropped())
	assert.Equal(t, 2, queue.Size())
}

func TestQueue_Retries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[transition](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &transition{PID: 7}))
	for i := 0; i < 3; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, message.T().PID)
		require.NoError(t, message.Nack(nil))
	}
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[transition](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &transition{PID: 1}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, queue.Publish(context.Background(), &transition{PID: 1}))
	message, err := queue.Consume(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, message)
}
