// Package remote runs jobs on ssh hosts, directly or through PBS/SLURM,
// copying working directories over scp.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/gosh"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/semaphore"
)

// Copier copies files and directories between storage URLs, implemented by afs.Service
type Copier interface {
	Copy(ctx context.Context, sourceURL, destURL string, options ...storage.Option) error
}

// Connector opens a shell session and returns the ssh config used for copies
type Connector func(ctx context.Context, host *transport.Host) (transport.Runner, *ssh.ClientConfig, error)

type session struct {
	commander *transport.Commander
	config    *ssh.ClientConfig
}

// Service is the remote transport
type Service struct {
	hosts     map[string]*transport.Host
	workdir   *workdir.Service
	copier    Copier
	connector Connector
	timeout   time.Duration
	mpirun    string
	sessions  map[string]*session
	slots     map[string]*semaphore.Weighted
	held      map[string]string
	mux       sync.Mutex
}

// StageIn recreates the remote job directory and copies the working directory
// into it, so files of an earlier attempt never come back on stage-out
func (s *Service) StageIn(ctx context.Context, job *transport.Target) error {
	host, sess, err := s.session(ctx, job.Host)
	if err != nil {
		return err
	}
	if err = sess.commander.Reset(ctx, job.RemoteDir); err != nil {
		return err
	}
	if err = s.copier.Copy(ctx, job.WorkDir, s.remoteURL(host, job.RemoteDir), option.NewDest(sess.config)); err != nil {
		return types.NewTransientError("stage-in", host.Name, err)
	}
	logging.FromContext(ctx).Debug("staged in", "host", host.Name, "dir", job.RemoteDir)
	return nil
}

// Execute acquires a host slot, uploads job.sh and submits it
func (s *Service) Execute(ctx context.Context, job *transport.Target, spec *engine.LaunchSpec) (*transport.Handle, error) {
	host, sess, err := s.session(ctx, job.Host)
	if err != nil {
		return nil, err
	}
	if !s.acquire(host.Name, job.JobID) {
		return nil, types.ErrHostBusy
	}
	handle, err := s.submit(ctx, host, sess, job, spec)
	if err != nil {
		s.release(job.JobID)
		return nil, err
	}
	return handle, nil
}

func (s *Service) submit(ctx context.Context, host *transport.Host, sess *session, job *transport.Target, spec *engine.LaunchSpec) (*transport.Handle, error) {
	name := job.RunID + "-" + job.Stage
	script := transport.NewScript(name, job.RemoteDir, spec, host, s.mpirun)
	if _, err := s.workdir.Write(ctx, job.WorkDir, transport.ScriptFile, []byte(script.Render())); err != nil {
		return nil, fmt.Errorf("failed to write job script: %w", err)
	}
	source := url.Join(job.WorkDir, transport.ScriptFile)
	dest := url.Join(s.remoteURL(host, job.RemoteDir), transport.ScriptFile)
	if err := s.copier.Copy(ctx, source, dest, option.NewDest(sess.config)); err != nil {
		return nil, types.NewTransientError("upload", host.Name, err)
	}
	handle, err := sess.commander.Submit(ctx, name, job.RemoteDir)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("job submitted", "host", host.Name, "scheduler", handle.Scheduler, "id", handle.ID)
	return handle, nil
}

// Poll checks the remote completion marker or queue state; a finished job frees its host slot
func (s *Service) Poll(ctx context.Context, job *transport.Target, handle *transport.Handle) (*transport.Status, error) {
	host, sess, err := s.session(ctx, job.Host)
	if err != nil {
		return nil, err
	}
	status, err := sess.commander.Poll(ctx, handle)
	if err != nil {
		return nil, err
	}
	if status.Running {
		s.acquire(host.Name, job.JobID)
	} else {
		s.release(job.JobID)
	}
	return status, nil
}

// StageOut copies the remote job directory back into the working directory
func (s *Service) StageOut(ctx context.Context, job *transport.Target) error {
	host, sess, err := s.session(ctx, job.Host)
	if err != nil {
		return err
	}
	if err = s.copier.Copy(ctx, s.remoteURL(host, job.RemoteDir), job.WorkDir, option.NewSource(sess.config)); err != nil {
		return types.NewTransientError("stage-out", host.Name, err)
	}
	return nil
}

// Cancel removes the job from the queue or kills it
func (s *Service) Cancel(ctx context.Context, job *transport.Target, handle *transport.Handle) error {
	defer s.release(job.JobID)
	if handle == nil {
		return nil
	}
	_, sess, err := s.session(ctx, job.Host)
	if err != nil {
		return err
	}
	return sess.commander.Cancel(ctx, handle)
}

// Close closes all ssh sessions
func (s *Service) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for name, sess := range s.sessions {
		if err := sess.commander.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", name, err))
		}
	}
	s.sessions = make(map[string]*session)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Host returns a configured host
func (s *Service) Host(name string) (*transport.Host, bool) {
	host, ok := s.hosts[name]
	return host, ok
}

func (s *Service) remoteURL(host *transport.Host, dir string) string {
	return "scp://" + host.Address + "/" + strings.TrimLeft(dir, "/")
}

func (s *Service) session(ctx context.Context, name string) (*transport.Host, *session, error) {
	host, ok := s.hosts[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown host %q", name)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if sess, ok := s.sessions[name]; ok {
		if !sess.commander.Broken() {
			return host, sess, nil
		}
		logging.FromContext(ctx).Warn("ssh session failed, reconnecting", "host", name)
		_ = sess.commander.Close()
		delete(s.sessions, name)
	}
	runner, config, err := s.connector(ctx, host)
	if err != nil {
		return nil, nil, transport.NewConnectError(host.Name, err)
	}
	sess := &session{commander: transport.NewCommander(runner, host.Name, host.Scheduler, s.timeout), config: config}
	s.sessions[name] = sess
	return host, sess, nil
}

func (s *Service) acquire(host, jobID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.held[jobID]; ok {
		return true
	}
	slots, ok := s.slots[host]
	if !ok {
		return true
	}
	if !slots.TryAcquire(1) {
		return false
	}
	s.held[jobID] = host
	return true
}

func (s *Service) release(jobID string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	host, ok := s.held[jobID]
	if !ok {
		return
	}
	delete(s.held, jobID)
	s.slots[host].Release(1)
}

// Connect opens a gosh ssh session using scy credentials
func Connect(ctx context.Context, host *transport.Host) (transport.Runner, *ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get credentials %s: %w", credentials, err)
	}
	config, err := generic.SSH.Config(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get ssh config: %w", err)
	}
	service, err := gosh.New(ctx, rssh.New(host.Address, config))
	if err != nil {
		return nil, nil, err
	}
	return service, config, nil
}

// New creates a remote transport for hosts
func New(hosts []*transport.Host, workdir *workdir.Service, options ...Option) *Service {
	ret := &Service{
		hosts:     make(map[string]*transport.Host),
		workdir:   workdir,
		copier:    afs.New(),
		connector: Connect,
		timeout:   10 * time.Second,
		sessions:  make(map[string]*session),
		slots:     make(map[string]*semaphore.Weighted),
		held:      make(map[string]string),
	}
	for _, opt := range options {
		opt(ret)
	}
	for _, host := range hosts {
		host.Init()
		ret.hosts[host.Name] = host
		if host.MaxJobs > 0 {
			ret.slots[host.Name] = semaphore.NewWeighted(int64(host.MaxJobs))
		}
	}
	return ret
}
