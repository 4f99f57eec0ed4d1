package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	RunID string
	Stage string
}

func TestQueue_PublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[payload](DefaultConfig())
	require.NoError(t, queue.Publish(ctx, &payload{RunID: "r1", Stage: "gs"}))
	assert.Equal(t, 1, queue.Size())

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gs", msg.T().Stage)
	assert.NoError(t, msg.Ack())
	assert.Error(t, msg.Ack(), "double ack")
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_Nack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	queue := NewQueue[payload](Config{MaxRetries: 1, RetryDelay: time.Millisecond})
	require.NoError(t, queue.Publish(ctx, &payload{RunID: "r1"}))

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(errors.New("handler failed")))

	retried, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", retried.T().RunID)
	require.NoError(t, retried.Nack(errors.New("handler failed")))
	assert.Equal(t, []payload{{RunID: "r1"}}, queue.DeadLetters())
}

func TestQueue_Bounds(t *testing.T) {
	queue := NewQueue[payload](Config{Buffer: 1})
	require.NoError(t, queue.Publish(context.Background(), &payload{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.Publish(ctx, &payload{}), context.DeadlineExceeded, "full buffer blocks until the context ends")

	require.NoError(t, queue.Close())
	_, err := queue.Consume(context.Background())
	if err == nil {
		_, err = queue.Consume(context.Background())
	}
	assert.Error(t, err)
}
