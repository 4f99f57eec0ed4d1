// Package transport moves job working directories to execution hosts, launches
// job scripts and observes their completion.
package transport

import (
	"context"

	"github.com/viant/chemflow/service/engine"
	"github.com/viant/gosh/runner"
)

// Target identifies the job a transport operation applies to
type Target struct {
	RunID     string `json:"runId"`
	Stage     string `json:"stage"`
	JobID     string `json:"jobId"`
	Host      string `json:"host,omitempty"`
	WorkDir   string `json:"workDir"`
	RemoteDir string `json:"remoteDir,omitempty"`
}

// Dir returns the directory the job runs in on its execution host
func (t *Target) Dir() string {
	if t.RemoteDir != "" {
		return t.RemoteDir
	}
	return t.WorkDir
}

// Transport executes prepared jobs on a host
type Transport interface {
	// StageIn copies the working directory to the execution host
	StageIn(ctx context.Context, job *Target) error
	// Execute writes the job script and launches it; it returns types.ErrHostBusy when the host has no free slot
	Execute(ctx context.Context, job *Target, spec *engine.LaunchSpec) (*Handle, error)
	// Poll performs one bounded status check
	Poll(ctx context.Context, job *Target, handle *Handle) (*Status, error)
	// StageOut copies job artifacts back into the working directory
	StageOut(ctx context.Context, job *Target) error
	// Cancel terminates a launched job, best effort
	Cancel(ctx context.Context, job *Target, handle *Handle) error
	Close() error
}

// Runner runs shell commands in a session, implemented by gosh.Service
type Runner interface {
	Run(ctx context.Context, command string, options ...runner.Option) (string, int, error)
	Close() error
}
