package chemflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/runtime/orchestrator"
	"github.com/viant/chemflow/service/dao/run"
	rfs "github.com/viant/chemflow/service/dao/run/fs"
	rmemory "github.com/viant/chemflow/service/dao/run/memory"
	rpg "github.com/viant/chemflow/service/dao/run/pg"
	"github.com/viant/chemflow/service/dao/workflow"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/engine/gpaw"
	"github.com/viant/chemflow/service/engine/nwchem"
	"github.com/viant/chemflow/service/engine/octopus"
	"github.com/viant/chemflow/service/engine/shell"
	"github.com/viant/chemflow/service/event"
	"github.com/viant/chemflow/service/messaging/amqp"
	"github.com/viant/chemflow/service/meta"
	"github.com/viant/chemflow/service/metrics"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/transport/local"
	"github.com/viant/chemflow/service/transport/remote"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/chemflow/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serviceName    = "chemflow"
	serviceVersion = "0.1.0"
)

// Service wires the orchestrator with stores, engines, transports and observability
type Service struct {
	config          *Config
	runtime         *Runtime
	fs              afs.Service
	metaService     *meta.Service
	metaBaseURL     string
	metaFsOptions   []storage.Option
	store           run.Store
	adapters        []engine.Adapter
	registry        *engine.Registry
	workdir         *workdir.Service
	transports      map[string]transport.Transport
	events          *event.Service
	ownsEvents      bool
	metrics         *metrics.Metrics
	metricsRegistry *prometheus.Registry
	spanExporter    sdktrace.SpanExporter
	shutdownTracing tracing.Shutdown
	logger          *slog.Logger
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	s.config.Init()
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = logging.Setup(s.config.Log.Level, s.config.Log.Format)
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}
	if err := s.initTracing(); err != nil {
		return err
	}
	opts := []orchestrator.Option{
		orchestrator.WithRetry(s.config.Retry),
		orchestrator.WithPollTimeout(s.config.PollTimeoutDuration()),
		orchestrator.WithMaxParallel(s.config.MaxParallel),
		orchestrator.WithEvents(s.events),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithLogger(s.logger),
	}
	for host, t := range s.transports {
		opts = append(opts, orchestrator.WithTransport(host, t))
	}
	for _, host := range s.config.Hosts {
		opts = append(opts, orchestrator.WithHost(host, s.transports[host.Name]))
	}
	s.runtime = &Runtime{
		orchestrator: orchestrator.New(s.store, s.registry, s.workdir, s.config.WorkRoot, opts...),
		workflowDAO:  workflow.New(s.metaService),
		interval:     s.config.StepIntervalDuration(),
		logger:       s.logger,
	}
	return nil
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.metaService == nil {
		s.metaService = meta.New(s.fs, s.metaBaseURL, s.metaFsOptions...)
	}
	s.workdir = workdir.New(s.fs)
	if s.store == nil {
		store, err := s.newStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}
	s.registry = engine.NewRegistry(
		nwchem.New(s.workdir, s.config.Engines.NWChem),
		gpaw.New(s.workdir, s.config.Engines.Python),
		octopus.New(s.workdir, s.config.Engines.Octopus),
		shell.New(s.workdir),
	)
	for _, adapter := range s.adapters {
		s.registry.Register(adapter)
	}
	if _, ok := s.transports[""]; !ok {
		s.transports[""] = local.New(s.workdir, local.WithTimeout(s.config.PollTimeoutDuration()), local.WithMpirun(s.config.Mpirun))
	}
	var remoteHosts []*transport.Host
	for _, host := range s.config.Hosts {
		if _, ok := s.transports[host.Name]; !ok {
			remoteHosts = append(remoteHosts, host)
		}
	}
	if len(remoteHosts) > 0 {
		service := remote.New(remoteHosts, s.workdir, remote.WithTimeout(s.config.PollTimeoutDuration()), remote.WithMpirun(s.config.Mpirun))
		for _, host := range remoteHosts {
			s.transports[host.Name] = service
		}
	}
	if s.events == nil {
		events, err := event.New(ctx, s.config.Events.Vendor,
			event.WithLogger(s.logger),
			event.WithAMQPConfig(amqp.Config{URL: s.config.Events.URL, Exchange: s.config.Events.Exchange, Queue: s.config.Events.Queue}))
		if err != nil {
			return fmt.Errorf("failed to create event service: %w", err)
		}
		s.events = events
		s.ownsEvents = true
	}
	if s.metricsRegistry == nil {
		s.metricsRegistry = prometheus.NewRegistry()
	}
	s.metrics = metrics.New(s.metricsRegistry)
	return nil
}

func (s *Service) newStore(ctx context.Context) (run.Store, error) {
	switch s.config.Store.Kind {
	case StoreFS:
		return rfs.New(ctx, s.config.Store.Path, s.fs)
	case StorePostgres:
		return rpg.New(ctx, s.config.Store.DSN)
	}
	return rmemory.New(), nil
}

func (s *Service) initTracing() error {
	var err error
	switch {
	case s.spanExporter != nil:
		s.shutdownTracing, err = tracing.SetupWithExporter(serviceName, serviceVersion, s.spanExporter)
	case s.config.Tracing.Enabled:
		s.shutdownTracing, err = tracing.Setup(serviceName, serviceVersion, s.config.Tracing.Output)
	}
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	return nil
}

// Runtime returns the workflow runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Metrics returns the orchestrator metrics
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Events returns the event service
func (s *Service) Events() *event.Service {
	return s.events
}

// Logger returns the base logger
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Close releases transports, the store, the event queue and the tracer provider
func (s *Service) Close() error {
	var errs []error
	closed := map[transport.Transport]bool{}
	for _, t := range s.transports {
		if closed[t] {
			continue
		}
		closed[t] = true
		errs = append(errs, t.Close())
	}
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}
	if s.ownsEvents && s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.shutdownTracing != nil {
		errs = append(errs, s.shutdownTracing(context.Background()))
	}
	return errors.Join(errs...)
}

// New creates a chemflow service
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{transports: make(map[string]transport.Transport)}
	if err := ret.init(ctx, options); err != nil {
		_ = ret.Close()
		return nil, err
	}
	return ret, nil
}
