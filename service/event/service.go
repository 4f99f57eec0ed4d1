package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/chemflow/service/messaging"
	"github.com/viant/chemflow/service/messaging/amqp"
	"github.com/viant/chemflow/service/messaging/memory"
)

// Service publishes events and dispatches them to in-process subscribers
type Service struct {
	vendor         messaging.Vendor
	queue          messaging.Queue[Event]
	memoryConfig   memory.Config
	amqpConfig     amqp.Config
	publishTimeout time.Duration
	logger         *slog.Logger
	listener       *Listener
	handlers       []func(*Event) error
	mux            sync.RWMutex
}

// Publish enqueues e; a publish that cannot complete within the publish timeout is dropped with a warning
func (s *Service) Publish(ctx context.Context, e *Event) error {
	if s == nil || e == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.queue.Publish(ctx, e); err != nil {
		s.logger.Warn("dropped event", "type", e.Type, "run_id", e.RunID, "stage", e.Stage, "error", err)
		return err
	}
	return nil
}

// Subscribe registers an in-process handler; the first subscription starts consumption
func (s *Service) Subscribe(ctx context.Context, handler func(*Event) error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.handlers = append(s.handlers, handler)
	if s.listener == nil {
		s.listener = NewListener(s.queue, s.dispatch, s.logger)
		s.listener.Start(ctx)
	}
}

func (s *Service) dispatch(e *Event) error {
	s.mux.RLock()
	handlers := s.handlers
	s.mux.RUnlock()
	for _, handler := range handlers {
		if err := handler(e); err != nil {
			return err
		}
	}
	return nil
}

// Vendor returns the queue vendor
func (s *Service) Vendor() messaging.Vendor {
	return s.vendor
}

// Close stops consumption and closes the queue
func (s *Service) Close() error {
	s.mux.Lock()
	listener := s.listener
	s.listener = nil
	s.mux.Unlock()
	if listener != nil {
		listener.Stop()
	}
	return s.queue.Close()
}

// New creates an event service. A memory queue is always drained by an
// in-process listener; an AMQP queue is consumed by external subscribers
// unless Subscribe is called.
func New(ctx context.Context, vendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		vendor:         vendor,
		memoryConfig:   memory.DefaultConfig(),
		publishTimeout: 2 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.queue == nil {
		switch vendor {
		case messaging.VendorMemory, "":
			ret.vendor = messaging.VendorMemory
			ret.queue = memory.NewQueue[Event](ret.memoryConfig)
		case messaging.VendorAMQP:
			queue, err := amqp.NewQueue[Event](ret.amqpConfig)
			if err != nil {
				return nil, err
			}
			ret.queue = queue
		default:
			return nil, fmt.Errorf("unsupported queue vendor: %s", vendor)
		}
	}
	if ret.vendor == messaging.VendorMemory {
		ret.Subscribe(ctx, func(e *Event) error {
			ret.logger.Debug("event", "type", e.Type, "run_id", e.RunID, "stage", e.Stage, "from", e.From, "to", e.To)
			return nil
		})
	}
	return ret, nil
}
