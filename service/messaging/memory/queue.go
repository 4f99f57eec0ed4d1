package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/chemflow/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	// Buffer is the channel capacity; Publish blocks when the buffer is full
	Buffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Buffer:     256,
	}
}

// Message is an in-memory queue message
type Message[T any] struct {
	payload   T
	queue     *Queue[T]
	attempt   int
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	return m.settle()
}

// Nack requeues the message after RetryDelay until MaxRetries is exceeded, then dead-letters it
func (m *Message[T]) Nack(err error) error {
	if e := m.settle(); e != nil {
		return e
	}
	if m.attempt >= m.queue.config.MaxRetries {
		m.queue.deadLetter(m)
		return nil
	}
	retry := &Message[T]{payload: m.payload, queue: m.queue, attempt: m.attempt + 1}
	time.AfterFunc(m.queue.config.RetryDelay, func() {
		m.queue.enqueue(retry)
	})
	return nil
}

func (m *Message[T]) settle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	dead     []T
	config   Config
	closed   chan struct{}
	once     sync.Once
	mu       sync.Mutex
}

// Publish adds a new item to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("payload was nil")
	}
	select {
	case q.messages <- &Message[T]{payload: *t, queue: q}:
		return nil
	case <-q.closed:
		return fmt.Errorf("queue closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-q.closed:
		return nil, fmt.Errorf("queue closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops Publish and Consume
func (q *Queue[T]) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}

func (q *Queue[T]) enqueue(msg *Message[T]) {
	select {
	case q.messages <- msg:
	case <-q.closed:
	}
}

func (q *Queue[T]) deadLetter(msg *Message[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, msg.payload)
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DeadLetters returns payloads that exhausted their retries
func (q *Queue[T]) DeadLetters() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.dead...)
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
		config:   config,
		closed:   make(chan struct{}),
	}
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
