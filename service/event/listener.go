package event

import (
	"context"
	"errors"
	"log/slog"

	"github.com/viant/chemflow/service/messaging"
)

// Listener consumes a queue and hands every event to a handler
type Listener struct {
	queue   messaging.Queue[Event]
	handler func(*Event) error
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start consumes until Stop is called
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		for {
			msg, err := l.queue.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				l.logger.Warn("failed to consume event", "error", err)
				return
			}
			if err = l.handler(msg.T()); err != nil {
				l.logger.Warn("event handler failed", "type", msg.T().Type, "run_id", msg.T().RunID, "error", err)
				_ = msg.Nack(err)
				continue
			}
			_ = msg.Ack()
		}
	}()
}

// Stop cancels consumption and waits for the loop to exit
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// NewListener creates a listener
func NewListener(queue messaging.Queue[Event], handler func(*Event) error, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{queue: queue, handler: handler, logger: logger, done: make(chan struct{})}
}
