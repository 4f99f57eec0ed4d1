package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/chemflow/internal/idgen"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/policy"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/run"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/event"
	"github.com/viant/chemflow/service/metrics"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
)

// ErrNotRetryable is returned when retry is requested for a stage that has not failed
var ErrNotRetryable = errors.New("stage is not retryable")

// maxConflicts bounds reloads of a run saved concurrently by another process
const maxConflicts = 5

// Service orchestrates workflow runs
type Service struct {
	store       run.Store
	registry    *engine.Registry
	workdir     *workdir.Service
	workRoot    string
	transports  map[string]transport.Transport
	hosts       map[string]*transport.Host
	retry       *policy.Retry
	pollTimeout time.Duration
	maxParallel int
	tailLines   int
	events      *event.Service
	metrics     *metrics.Metrics
	logger      *slog.Logger
	locks       map[string]*sync.Mutex
	pending     map[string][]*event.Event
	mux         sync.Mutex
}

// Submit validates workflow and creates a run with one pending job per stage.
// An invalid workflow fails with GraphError before any job is created.
func (s *Service) Submit(ctx context.Context, workflow *model.Workflow, init map[string]interface{}) (*execution.Run, error) {
	if workflow == nil {
		return nil, types.NewGraphError("workflow was empty")
	}
	initValues, err := s.initValues(workflow, init)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(initValues))
	for name := range initValues {
		names = append(names, name)
	}
	if err = workflow.Validate(names...); err != nil {
		return nil, err
	}
	if err = s.validateBindings(workflow); err != nil {
		return nil, err
	}
	aRun := execution.NewRun(idgen.New(), workflow, initValues)
	for _, job := range aRun.Jobs {
		job.WorkDir = url.Join(s.workRoot, aRun.ID, job.Stage)
		if host, ok := s.hosts[job.Host]; ok {
			job.RemoteDir = host.JobDir(aRun.ID, job.Stage)
		}
	}
	if err = s.persist(ctx, aRun); err != nil {
		return nil, err
	}
	logging.FromContext(s.runContext(ctx, aRun.ID)).Info("run submitted", "workflow", workflow.Name, "stages", len(workflow.Stages))
	s.publish(ctx, event.NewRunEvent(event.TypeRunSubmitted, aRun.ID, workflow.Name))
	return aRun, nil
}

// initValues merges workflow init defaults with values supplied at submission
func (s *Service) initValues(workflow *model.Workflow, init map[string]interface{}) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(workflow.Init)+len(init))
	for _, param := range workflow.Init {
		value, err := param.Resolve(func(ref *state.Reference) (interface{}, bool) { return nil, false })
		if err != nil {
			return nil, &types.GraphError{Workflow: workflow.Name, Issues: []string{err.Error()}}
		}
		ret[param.Name] = value
	}
	for name, value := range init {
		if param, ok := workflow.Init.Get(name); ok {
			override := *param
			override.Value = value
			coerced, err := override.Resolve(func(ref *state.Reference) (interface{}, bool) { return nil, false })
			if err != nil {
				return nil, &types.GraphError{Workflow: workflow.Name, Issues: []string{err.Error()}}
			}
			value = coerced
		}
		ret[name] = value
	}
	return ret, nil
}

// validateBindings checks that every stage names a registered engine, accepted parameters and a known host
func (s *Service) validateBindings(workflow *model.Workflow) error {
	var issues []string
	for _, stage := range workflow.Stages {
		if _, err := s.registry.Lookup(stage.Engine); err != nil {
			issues = append(issues, fmt.Sprintf("stage %s: %v", stage.Name, err))
			continue
		}
		if err := s.registry.CheckParams(stage.Engine, stage.Params.Names()); err != nil {
			issues = append(issues, fmt.Sprintf("stage %s: %v", stage.Name, err))
		}
		if _, ok := s.transports[stage.Host]; !ok {
			host := stage.Host
			if host == "" {
				host = "local"
			}
			issues = append(issues, fmt.Sprintf("stage %s: no transport for host %s", stage.Name, host))
		}
	}
	if len(issues) > 0 {
		return &types.GraphError{Workflow: workflow.Name, Issues: issues}
	}
	return nil
}

// Cancel stops a run: non-terminal jobs are cancelled and no pending job is promoted afterwards
func (s *Service) Cancel(ctx context.Context, runID string) (*execution.Snapshot, error) {
	unlock := s.lock(runID)
	defer unlock()
	ctx = s.runContext(ctx, runID)
	aRun, err := s.update(ctx, runID, func(aRun *execution.Run) error {
		if aRun.State == execution.RunStateComplete {
			return nil
		}
		return s.cancel(ctx, aRun)
	})
	if err != nil {
		return nil, err
	}
	return aRun.Snapshot(), nil
}

func (s *Service) cancel(ctx context.Context, aRun *execution.Run) error {
	if !aRun.Cancelled {
		aRun.Cancelled = true
		s.queue(aRun.ID, event.NewRunEvent(event.TypeRunCancelled, aRun.ID, aRun.Workflow.Name))
	}
	for _, job := range aRun.OrderedJobs() {
		if job.State.IsTerminal() {
			continue
		}
		if job.Handle != nil && (job.State == execution.JobStateRunning || job.State == execution.JobStateCollecting) {
			if t, err := s.transport(job.Host); err == nil {
				if err = t.Cancel(ctx, target(aRun.ID, job), job.Handle); err != nil {
					logging.FromContext(ctx).Warn("failed to cancel job", "stage", job.Stage, "handle", job.Handle.ID, "error", err)
				}
			}
		}
		if err := s.transition(ctx, aRun, job, execution.JobStateCancelled, "run cancelled"); err != nil {
			return err
		}
	}
	return s.persist(ctx, aRun)
}

// Resume reconciles a persisted run with its hosts: staging jobs are restaged,
// running jobs are re-polled and fail as orphaned when their handle is gone.
// Complete and cancelled runs are returned unchanged.
func (s *Service) Resume(ctx context.Context, runID string) (*execution.Snapshot, error) {
	unlock := s.lock(runID)
	defer unlock()
	ctx = s.runContext(ctx, runID)
	logger := logging.FromContext(ctx)
	resumed := false
	aRun, err := s.update(ctx, runID, func(aRun *execution.Run) error {
		resumed = false
		if aRun.State == execution.RunStateComplete || aRun.Cancelled {
			return nil
		}
		for _, job := range aRun.OrderedJobs() {
			var err error
			switch job.State {
			case execution.JobStateStaging:
				err = s.transition(ctx, aRun, job, execution.JobStateReady, "restaged on resume")
			case execution.JobStateRunning:
				if job.Handle == nil {
					err = s.orphan(ctx, aRun, job, "")
					break
				}
				status, pErr := s.poll(ctx, aRun.ID, job)
				switch {
				case pErr != nil:
					logger.Warn("failed to poll job on resume", "stage", job.Stage, "error", pErr)
				case status.Missing:
					err = s.orphan(ctx, aRun, job, job.Handle.ID)
				}
			}
			if err != nil {
				return err
			}
		}
		resumed = true
		return s.persist(ctx, aRun)
	})
	if err != nil {
		return nil, err
	}
	if resumed {
		s.publish(ctx, event.NewRunEvent(event.TypeRunResumed, aRun.ID, aRun.Workflow.Name))
	}
	return aRun.Snapshot(), nil
}

func (s *Service) orphan(ctx context.Context, aRun *execution.Run, job *execution.Job, handle string) error {
	err := &types.OrphanedJobError{Stage: job.Stage, Handle: handle}
	logging.FromContext(ctx).Warn("orphaned job", "stage", job.Stage, "job_id", job.ID, "handle", handle)
	return s.fail(ctx, aRun, job, err)
}

// RetryStage re-enters a failed stage job into Ready with its resolved parameters
// unchanged. Files left by the failed attempt are removed; prepared inputs stay
// so the next prepare records how it changed them.
func (s *Service) RetryStage(ctx context.Context, runID, stage string) (*execution.Snapshot, error) {
	unlock := s.lock(runID)
	defer unlock()
	ctx = s.runContext(ctx, runID)
	var job *execution.Job
	aRun, err := s.update(ctx, runID, func(aRun *execution.Run) error {
		if job = aRun.Job(stage); job == nil {
			return &types.NotFoundError{Entity: "stage", ID: runID + "/" + stage}
		}
		if aRun.Cancelled || job.State != execution.JobStateFailed {
			return fmt.Errorf("%w: %s is %s", ErrNotRetryable, stage, job.State)
		}
		if err := s.clearAttempt(ctx, job); err != nil {
			return err
		}
		job.ResetForRetry()
		if err := s.transition(ctx, aRun, job, execution.JobStateReady, "retry requested"); err != nil {
			return err
		}
		return s.persist(ctx, aRun)
	})
	if err != nil {
		return nil, err
	}
	e := event.NewRunEvent(event.TypeStageRetried, aRun.ID, aRun.Workflow.Name)
	e.Stage, e.JobID = job.Stage, job.ID
	s.publish(ctx, e)
	return aRun.Snapshot(), nil
}

// clearAttempt removes everything but the job script and prepared inputs from the job working directory
func (s *Service) clearAttempt(ctx context.Context, job *execution.Job) error {
	names, err := s.workdir.List(ctx, job.WorkDir)
	if err != nil {
		logging.FromContext(ctx).Debug("nothing to clear", "stage", job.Stage, "error", err)
		return nil
	}
	keep := map[string]bool{transport.ScriptFile: true}
	if job.Launch != nil {
		for _, name := range job.Launch.Files {
			keep[name] = true
		}
	}
	var stale []string
	for _, name := range names {
		if !keep[name] {
			stale = append(stale, name)
		}
	}
	if err = s.workdir.Remove(ctx, job.WorkDir, stale...); err != nil {
		return fmt.Errorf("failed to clear previous attempt of %s: %w", job.Stage, err)
	}
	return nil
}

// Status returns a per-stage snapshot of a run
func (s *Service) Status(ctx context.Context, runID string) (*execution.Snapshot, error) {
	aRun, err := s.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return aRun.Snapshot(), nil
}

// List returns snapshots of stored runs matching parameters (State, Workflow)
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error) {
	runs, err := s.store.List(ctx, parameters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	ret := make([]*execution.Snapshot, 0, len(runs))
	for _, aRun := range runs {
		ret = append(ret, aRun.Snapshot())
	}
	return ret, nil
}

// Delete removes a run record; an active run is cancelled first
func (s *Service) Delete(ctx context.Context, runID string) error {
	unlock := s.lock(runID)
	defer unlock()
	ctx = s.runContext(ctx, runID)
	aRun, err := s.update(ctx, runID, func(aRun *execution.Run) error {
		if aRun.State.IsTerminal() {
			return nil
		}
		return s.cancel(ctx, aRun)
	})
	if err != nil {
		return err
	}
	if err = s.store.Delete(ctx, runID); err != nil {
		return s.mapError(runID, err)
	}
	s.mux.Lock()
	delete(s.locks, runID)
	delete(s.pending, runID)
	s.mux.Unlock()
	s.publish(ctx, event.NewRunEvent(event.TypeRunDeleted, aRun.ID, aRun.Workflow.Name))
	return nil
}

// Run steps runID every interval until the run is terminal or ctx is done
func (s *Service) Run(ctx context.Context, runID string, interval time.Duration) (*execution.Snapshot, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snapshot, err := s.Step(ctx, runID)
		if err != nil {
			return snapshot, err
		}
		if snapshot.State.IsTerminal() {
			return snapshot, nil
		}
		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) lock(runID string) func() {
	s.mux.Lock()
	l, ok := s.locks[runID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[runID] = l
	}
	s.mux.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) load(ctx context.Context, runID string) (*execution.Run, error) {
	aRun, err := s.store.Load(ctx, runID)
	if err != nil {
		return nil, s.mapError(runID, err)
	}
	return aRun, nil
}

// update loads runID and applies fn, which saves the run when it changes it.
// When another process saved the run first, the run is reloaded and fn runs again.
func (s *Service) update(ctx context.Context, runID string, fn func(aRun *execution.Run) error) (*execution.Run, error) {
	for attempt := 1; ; attempt++ {
		aRun, err := s.load(ctx, runID)
		if err != nil {
			return nil, err
		}
		err = fn(aRun)
		if err == nil {
			return aRun, nil
		}
		s.drain(runID)
		if !errors.Is(err, dao.ErrConflict) || attempt >= maxConflicts {
			return nil, err
		}
		logging.FromContext(ctx).Debug("run saved concurrently, reloading", "attempt", attempt)
	}
}

func (s *Service) mapError(runID string, err error) error {
	if errors.Is(err, dao.ErrNotFound) || errors.Is(err, dao.ErrInvalidID) {
		return &types.NotFoundError{Entity: "run", ID: runID}
	}
	return fmt.Errorf("run %s: %w", runID, err)
}

// persist recomputes the run state and saves the run, then publishes the
// changes queued since the previous save
func (s *Service) persist(ctx context.Context, aRun *execution.Run) error {
	previous := aRun.State
	current := aRun.Recompute()
	aRun.Touch()
	if err := s.store.Save(ctx, aRun); err != nil {
		aRun.State = previous
		s.drain(aRun.ID)
		return fmt.Errorf("failed to save run %s: %w", aRun.ID, err)
	}
	for _, e := range s.drain(aRun.ID) {
		s.publish(ctx, e)
	}
	if previous != current {
		logging.FromContext(ctx).Info("run state changed", "from", previous, "to", current)
		e := event.NewRunEvent(event.TypeRunState, aRun.ID, aRun.Workflow.Name)
		e.From, e.To = string(previous), string(current)
		s.publish(ctx, e)
		if current.IsTerminal() {
			s.metrics.RunFinished(string(current))
		}
	}
	return nil
}

// queue holds e until the run it describes is saved
func (s *Service) queue(runID string, e *event.Event) {
	if s.events == nil {
		return
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.pending[runID] = append(s.pending[runID], e)
}

func (s *Service) drain(runID string) []*event.Event {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := s.pending[runID]
	delete(s.pending, runID)
	return ret
}

func (s *Service) publish(ctx context.Context, e *event.Event) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, e)
}

func (s *Service) transport(host string) (transport.Transport, error) {
	ret, ok := s.transports[host]
	if !ok {
		return nil, fmt.Errorf("no transport for host %q", host)
	}
	return ret, nil
}

func target(runID string, job *execution.Job) *transport.Target {
	return &transport.Target{
		RunID:     runID,
		Stage:     job.Stage,
		JobID:     job.ID,
		Host:      job.Host,
		WorkDir:   job.WorkDir,
		RemoteDir: job.RemoteDir,
	}
}

// New creates an orchestrator
func New(store run.Store, registry *engine.Registry, workdir *workdir.Service, workRoot string, opts ...Option) *Service {
	ret := &Service{
		store:       store,
		registry:    registry,
		workdir:     workdir,
		workRoot:    workRoot,
		transports:  make(map[string]transport.Transport),
		hosts:       make(map[string]*transport.Host),
		retry:       policy.DefaultRetry(),
		pollTimeout: 10 * time.Second,
		tailLines:   20,
		logger:      slog.Default(),
		locks:       make(map[string]*sync.Mutex),
		pending:     make(map[string][]*event.Event),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// runContext returns ctx carrying the service logger annotated with runID
func (s *Service) runContext(ctx context.Context, runID string) context.Context {
	return logging.WithLogger(ctx, s.logger.With("run_id", runID))
}
