package chemflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/chemflow/policy"
	"github.com/viant/chemflow/service/messaging"
	"github.com/viant/chemflow/service/meta"
	"github.com/viant/chemflow/service/transport"
)

// Store kinds
const (
	StoreMemory   = "memory"
	StoreFS       = "fs"
	StorePostgres = "pg"
)

// Config is a serialisable representation of the engine configuration. The
// zero value of nested sections inherits package defaults.
type Config struct {
	// WorkRoot is the local directory (or afs URL) job working directories are created under
	WorkRoot     string            `json:"workRoot" yaml:"workRoot"`
	Store        StoreConfig       `json:"store" yaml:"store"`
	Retry        *policy.Retry     `json:"retry,omitempty" yaml:"retry,omitempty"`
	PollTimeout  string            `json:"pollTimeout,omitempty" yaml:"pollTimeout,omitempty"`
	StepInterval string            `json:"stepInterval,omitempty" yaml:"stepInterval,omitempty"`
	Mpirun       string            `json:"mpirun,omitempty" yaml:"mpirun,omitempty"`
	MaxParallel  int               `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty"`
	Engines      EnginesConfig     `json:"engines" yaml:"engines"`
	Hosts        []*transport.Host `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Events       EventsConfig      `json:"events" yaml:"events"`
	Tracing      TracingConfig     `json:"tracing" yaml:"tracing"`
	API          APIConfig         `json:"api" yaml:"api"`
	Log          LogConfig         `json:"log" yaml:"log"`
}

// StoreConfig selects the run state store
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// Path is the base URL of the fs store
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// DSN is the PostgreSQL connection string of the pg store
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// EnginesConfig holds engine executables
type EnginesConfig struct {
	NWChem  string `json:"nwchem,omitempty" yaml:"nwchem,omitempty"`
	Python  string `json:"python,omitempty" yaml:"python,omitempty"`
	Octopus string `json:"octopus,omitempty" yaml:"octopus,omitempty"`
}

// EventsConfig selects the event queue
type EventsConfig struct {
	Vendor   messaging.Vendor `json:"vendor" yaml:"vendor"`
	URL      string           `json:"url,omitempty" yaml:"url,omitempty"`
	Exchange string           `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Queue    string           `json:"queue,omitempty" yaml:"queue,omitempty"`
}

// TracingConfig enables OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is a file spans are written to; empty writes to stdout
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// APIConfig configures the operator HTTP API
type APIConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a configuration that runs everything locally and in memory
func DefaultConfig() *Config {
	return &Config{
		WorkRoot:     "/tmp/chemflow/runs",
		Store:        StoreConfig{Kind: StoreMemory},
		Retry:        policy.DefaultRetry(),
		PollTimeout:  "10s",
		StepInterval: "2s",
		Mpirun:       "mpirun",
		Engines:      EnginesConfig{NWChem: "nwchem", Python: "python3", Octopus: "octopus"},
		Events:       EventsConfig{Vendor: messaging.VendorMemory},
		API:          APIConfig{Addr: ":8080"},
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

// Init fills empty settings with defaults
func (c *Config) Init() {
	defaults := DefaultConfig()
	if c.WorkRoot == "" {
		c.WorkRoot = defaults.WorkRoot
	}
	if c.Store.Kind == "" {
		c.Store.Kind = defaults.Store.Kind
	}
	c.Retry = c.Retry.Merge(defaults.Retry)
	if c.PollTimeout == "" {
		c.PollTimeout = defaults.PollTimeout
	}
	if c.StepInterval == "" {
		c.StepInterval = defaults.StepInterval
	}
	if c.Mpirun == "" {
		c.Mpirun = defaults.Mpirun
	}
	if c.Engines.NWChem == "" {
		c.Engines.NWChem = defaults.Engines.NWChem
	}
	if c.Engines.Python == "" {
		c.Engines.Python = defaults.Engines.Python
	}
	if c.Engines.Octopus == "" {
		c.Engines.Octopus = defaults.Engines.Octopus
	}
	if c.Events.Vendor == "" {
		c.Events.Vendor = defaults.Events.Vendor
	}
	if c.API.Addr == "" {
		c.API.Addr = defaults.API.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	for _, host := range c.Hosts {
		host.Init()
	}
}

// PollTimeoutDuration returns the parsed poll timeout
func (c *Config) PollTimeoutDuration() time.Duration {
	return parseDuration(c.PollTimeout, 10*time.Second)
}

// StepIntervalDuration returns the parsed step interval
func (c *Config) StepIntervalDuration() time.Duration {
	return parseDuration(c.StepInterval, 2*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFS:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the fs store"))
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the pg store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store kind %q", c.Store.Kind))
	}
	for _, field := range []struct{ name, value string }{{"pollTimeout", c.PollTimeout}, {"stepInterval", c.StepInterval}} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", field.name, field.value, err))
		}
	}
	if c.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("maxParallel must not be negative"))
	}
	switch c.Events.Vendor {
	case "", messaging.VendorMemory, messaging.VendorAMQP:
	default:
		errs = append(errs, fmt.Errorf("unsupported events vendor %q", c.Events.Vendor))
	}
	names := map[string]bool{}
	for _, host := range c.Hosts {
		if err := host.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[host.Name] {
			errs = append(errs, fmt.Errorf("duplicate host %s", host.Name))
		}
		names[host.Name] = true
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration from URL; ${env.NAME} expressions are expanded
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := &Config{}
	if err := meta.New(afs.New(), "").Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	ret.Init()
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}
