package chemflow

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/chemflow/service/dao/run"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/event"
	"github.com/viant/chemflow/service/meta"
	"github.com/viant/chemflow/service/transport"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithConfig sets the engine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithStore sets the run state store, overriding config.store
func WithStore(store run.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithTransport sets the transport for host; an empty host replaces the local transport
func WithTransport(host string, t transport.Transport) Option {
	return func(s *Service) {
		s.transports[host] = t
	}
}

// WithAdapter registers additional engine adapters; an adapter replaces a built-in one of the same kind
func WithAdapter(adapters ...engine.Adapter) Option {
	return func(s *Service) {
		s.adapters = append(s.adapters, adapters...)
	}
}

// WithEventService sets the event service
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithMetaService sets the meta service workflows are loaded with
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithMetaBaseURL sets the base URL relative workflow locations resolve against
func WithMetaBaseURL(URL string) Option {
	return func(s *Service) {
		s.metaBaseURL = URL
	}
}

// WithMetaFsOptions sets storage options used when loading workflows
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.metaFsOptions = options
	}
}

// WithFileSystem sets the file system used for working directories and the fs store
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the base logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetricsRegistry sets the Prometheus registry orchestrator metrics are registered with
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Service) {
		s.metricsRegistry = registry
	}
}

// WithTracingExporter configures tracing with a custom span exporter
func WithTracingExporter(exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.spanExporter = exporter
	}
}
