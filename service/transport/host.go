package transport

import (
	"fmt"
	"path"
	"strings"
)

// Host describes an execution host
type Host struct {
	Name string `json:"name" yaml:"name"`
	// Address is host[:port] used for ssh and scp
	Address     string    `json:"address" yaml:"address"`
	Credentials string    `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Scheduler   Scheduler `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	Queue       string    `json:"queue,omitempty" yaml:"queue,omitempty"`
	Walltime    string    `json:"walltime,omitempty" yaml:"walltime,omitempty"`
	Nodes       int       `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Modules     []string  `json:"modules,omitempty" yaml:"modules,omitempty"`
	Mpirun      string    `json:"mpirun,omitempty" yaml:"mpirun,omitempty"`
	// Root is the remote directory job directories are created under
	Root    string `json:"root,omitempty" yaml:"root,omitempty"`
	MaxJobs int    `json:"maxJobs,omitempty" yaml:"maxJobs,omitempty"`
}

// Init sets defaults
func (h *Host) Init() {
	if h.Address == "" {
		h.Address = h.Name
	}
	if !strings.Contains(h.Address, ":") {
		h.Address += ":22"
	}
	if h.Scheduler == "" {
		h.Scheduler = SchedulerNone
	}
	if h.Root == "" {
		h.Root = "/tmp/chemflow"
	}
}

// Validate checks host settings
func (h *Host) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("host name was empty")
	}
	switch h.Scheduler {
	case SchedulerNone, SchedulerPBS, SchedulerSLURM:
	default:
		return fmt.Errorf("host %s: unsupported scheduler %q", h.Name, h.Scheduler)
	}
	if h.MaxJobs < 0 {
		return fmt.Errorf("host %s: maxJobs must not be negative", h.Name)
	}
	return nil
}

// JobDir returns the remote job directory for a run stage
func (h *Host) JobDir(runID, stage string) string {
	return path.Join(h.Root, runID, stage)
}
