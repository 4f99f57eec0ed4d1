package event

import (
	"log/slog"
	"time"

	"github.com/viant/chemflow/service/messaging"
	"github.com/viant/chemflow/service/messaging/amqp"
	"github.com/viant/chemflow/service/messaging/memory"
)

type Option func(s *Service)

// WithQueue sets the event queue directly
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithMemoryConfig sets the memory queue configuration
func WithMemoryConfig(config memory.Config) Option {
	return func(s *Service) {
		s.memoryConfig = config
	}
}

// WithAMQPConfig sets the AMQP queue configuration
func WithAMQPConfig(config amqp.Config) Option {
	return func(s *Service) {
		s.amqpConfig = config
	}
}

// WithPublishTimeout bounds a single publish
func WithPublishTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.publishTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for dropped events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
