package orchestrator

import (
	"log/slog"
	"time"

	"github.com/viant/chemflow/policy"
	"github.com/viant/chemflow/service/event"
	"github.com/viant/chemflow/service/metrics"
	"github.com/viant/chemflow/service/transport"
)

type Option func(s *Service)

// WithTransport registers the transport used for jobs on host; an empty host is the local transport
func WithTransport(host string, t transport.Transport) Option {
	return func(s *Service) {
		s.transports[host] = t
	}
}

// WithHost registers a remote host descriptor with its transport
func WithHost(host *transport.Host, t transport.Transport) Option {
	return func(s *Service) {
		s.hosts[host.Name] = host
		s.transports[host.Name] = t
	}
}

// WithRetry sets the default transient retry policy
func WithRetry(retry *policy.Retry) Option {
	return func(s *Service) {
		if retry != nil {
			s.retry = retry
		}
	}
}

// WithPollTimeout bounds a single status poll
func WithPollTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.pollTimeout = timeout
		}
	}
}

// WithEvents sets the event service transitions are published to
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the base logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxParallel limits jobs dispatched concurrently within one step
func WithMaxParallel(n int) Option {
	return func(s *Service) {
		s.maxParallel = n
	}
}

// WithTailLines sets the number of engine log lines reported on failure
func WithTailLines(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.tailLines = n
		}
	}
}
