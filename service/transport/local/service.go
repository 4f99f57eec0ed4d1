// Package local runs jobs on this machine through a gosh local shell.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/gosh"
	glocal "github.com/viant/gosh/runner/local"
)

const Name = "local"

// Service is the local transport
type Service struct {
	workdir   *workdir.Service
	runner    transport.Runner
	commander *transport.Commander
	timeout   time.Duration
	mpirun    string
	mux       sync.Mutex
}

// StageIn is a no-op: jobs run in their working directory
func (s *Service) StageIn(ctx context.Context, job *transport.Target) error {
	return nil
}

// Execute writes job.sh and starts it detached
func (s *Service) Execute(ctx context.Context, job *transport.Target, spec *engine.LaunchSpec) (*transport.Handle, error) {
	commander, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	dir := url.Path(job.WorkDir)
	script := transport.NewScript(job.RunID+"-"+job.Stage, dir, spec, nil, s.mpirun)
	if _, err = s.workdir.Write(ctx, job.WorkDir, transport.ScriptFile, []byte(script.Render())); err != nil {
		return nil, fmt.Errorf("failed to write job script: %w", err)
	}
	handle, err := commander.Submit(ctx, job.RunID+"-"+job.Stage, dir)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("job started", "pid", handle.ID, "dir", dir)
	return handle, nil
}

// Poll reads the completion marker or checks the process
func (s *Service) Poll(ctx context.Context, job *transport.Target, handle *transport.Handle) (*transport.Status, error) {
	commander, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return commander.Poll(ctx, handle)
}

// StageOut is a no-op: artifacts are already in the working directory
func (s *Service) StageOut(ctx context.Context, job *transport.Target) error {
	return nil
}

// Cancel sends SIGTERM to the job process
func (s *Service) Cancel(ctx context.Context, job *transport.Target, handle *transport.Handle) error {
	if handle == nil {
		return nil
	}
	commander, err := s.session(ctx)
	if err != nil {
		return err
	}
	return commander.Cancel(ctx, handle)
}

// Close terminates the shell session
func (s *Service) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.commander == nil {
		return nil
	}
	err := s.commander.Close()
	s.commander = nil
	s.runner = nil
	return err
}

func (s *Service) session(ctx context.Context) (*transport.Commander, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.commander != nil && !s.commander.Broken() {
		return s.commander, nil
	}
	if s.commander != nil {
		logging.FromContext(ctx).Warn("local shell session failed, reconnecting")
		_ = s.commander.Close()
		s.commander = nil
		s.runner = nil
	}
	if s.runner == nil {
		service, err := gosh.New(ctx, glocal.New())
		if err != nil {
			return nil, transport.NewConnectError(Name, err)
		}
		s.runner = service
	}
	s.commander = transport.NewCommander(s.runner, Name, transport.SchedulerNone, s.timeout)
	return s.commander, nil
}

// New creates a local transport
func New(workdir *workdir.Service, options ...Option) *Service {
	ret := &Service{workdir: workdir, timeout: 10 * time.Second}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
