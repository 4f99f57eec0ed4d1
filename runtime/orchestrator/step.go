package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/chemflow/internal/clock"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/event"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/tracing"
	"golang.org/x/sync/errgroup"
)

// outcome is the result of one job phase, applied serially after dispatch
type outcome struct {
	job     *execution.Job
	from    execution.JobState
	stale   bool
	to      []execution.JobState
	reason  string
	launch  *engine.LaunchSpec
	handle  *transport.Handle
	outputs map[string]interface{}
	files   []string
	busy    bool
	err     error
}

func (o *outcome) advance(reason string, to ...execution.JobState) *outcome {
	o.to = append(o.to, to...)
	o.reason = reason
	return o
}

func (o *outcome) failed(err error) *outcome {
	o.err = err
	return o
}

// dirty returns true when applying the outcome changes the stored job
func (o *outcome) dirty() bool {
	return len(o.to) > 0 || o.err != nil || o.launch != nil || o.handle != nil || o.outputs != nil ||
		o.job.Attempts > 0 || o.job.RetryAt != nil
}

// Step advances runID by one phase and returns its snapshot
func (s *Service) Step(ctx context.Context, runID string) (snapshot *execution.Snapshot, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "chemflow.step", tracing.KindInternal)
	span.WithAttributes(map[string]string{"run_id": runID})
	defer func() {
		tracing.EndSpan(span, err)
		s.metrics.ObserveStep(time.Since(started))
	}()

	unlock := s.lock(runID)
	defer unlock()
	ctx = s.runContext(ctx, runID)
	var outcomes []*outcome
	aRun, err := s.update(ctx, runID, func(aRun *execution.Run) error {
		outcomes = nil
		if aRun.Cancelled {
			if aRun.State != execution.RunStateCancelled || aRun.Counters().Pending+aRun.ActiveCount() > 0 {
				return s.cancel(ctx, aRun)
			}
			return nil
		}
		if aRun.State.IsTerminal() {
			return nil
		}
		if err := s.promote(ctx, aRun); err != nil {
			return err
		}
		outcomes = s.dispatch(ctx, aRun)
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.WithInt("dispatched", len(outcomes))
	if aRun, err = s.commit(ctx, aRun, outcomes); err != nil {
		s.drain(runID)
		return nil, err
	}
	return aRun.Snapshot(), nil
}

// commit applies outcomes one at a time and saves the run after each change.
// When another writer saved the run first, the run is reloaded and the
// remaining outcomes are applied to the jobs they were produced for.
func (s *Service) commit(ctx context.Context, aRun *execution.Run, outcomes []*outcome) (*execution.Run, error) {
	conflicts := 0
	for i := 0; i < len(outcomes); {
		o := outcomes[i]
		if o.stale || !o.dirty() {
			s.note(ctx, o)
			i++
			continue
		}
		if err := s.apply(ctx, aRun, o); err != nil {
			if fErr := s.fail(ctx, aRun, o.job, err); fErr != nil {
				return aRun, fErr
			}
		}
		err := s.persist(ctx, aRun)
		if errors.Is(err, dao.ErrConflict) && conflicts < maxConflicts {
			conflicts++
			fresh, lErr := s.load(ctx, aRun.ID)
			if lErr != nil {
				return aRun, lErr
			}
			logging.FromContext(ctx).Debug("run saved concurrently, reapplying outcomes", "pending", len(outcomes)-i)
			s.rebind(ctx, fresh, outcomes[i:])
			aRun = fresh
			continue
		}
		if err != nil {
			return aRun, err
		}
		i++
	}
	return aRun, nil
}

// rebind points outcomes at the jobs of fresh. An outcome whose job moved on in
// the meantime is dropped, and a job it launched is cancelled.
func (s *Service) rebind(ctx context.Context, fresh *execution.Run, outcomes []*outcome) {
	for _, o := range outcomes {
		job := fresh.Job(o.job.Stage)
		if !fresh.Cancelled && job != nil && job.ID == o.job.ID && job.State == o.from {
			o.job = job
			continue
		}
		o.stale = true
		if o.handle == nil {
			continue
		}
		t, err := s.transport(o.job.Host)
		if err == nil {
			err = t.Cancel(ctx, target(fresh.ID, o.job), o.handle)
		}
		if err != nil {
			logging.FromContext(ctx).Warn("failed to cancel superseded launch", "stage", o.job.Stage, "handle", o.handle.ID, "error", err)
		}
	}
}

// note records outcome side effects that are not persisted
func (s *Service) note(ctx context.Context, o *outcome) {
	if o.busy && !o.stale {
		s.metrics.HostBusy(o.job.Host)
		logging.FromContext(ctx).Debug("host busy, job stays queued", "stage", o.job.Stage, "host", o.job.Host, "state", o.job.State)
	}
}

// promote moves pending jobs whose dependencies succeeded to ready, resolving their parameters
func (s *Service) promote(ctx context.Context, aRun *execution.Run) error {
	if aRun.Cancelled || aRun.HasFailure() {
		return nil
	}
	changed := false
	for _, job := range aRun.OrderedJobs() {
		if job.State != execution.JobStatePending || !aRun.DependenciesSucceeded(job.Stage) {
			continue
		}
		changed = true
		params, err := s.resolve(aRun, job.Stage)
		if err != nil {
			if err = s.fail(ctx, aRun, job, err); err != nil {
				return err
			}
			continue
		}
		job.Params = params
		if err = s.transition(ctx, aRun, job, execution.JobStateReady, "dependencies succeeded"); err != nil {
			return err
		}
	}
	if !changed {
		return nil
	}
	return s.persist(ctx, aRun)
}

// resolve substitutes stage parameter references with init values and upstream outputs
func (s *Service) resolve(aRun *execution.Run, stageName string) (map[string]interface{}, error) {
	stage := aRun.Workflow.Stage(stageName)
	if stage == nil {
		return nil, &types.NotFoundError{Entity: "stage", ID: stageName}
	}
	lookup := func(ref *state.Reference) (interface{}, bool) {
		if ref.IsInit() {
			value, ok := aRun.Init[ref.Name]
			return value, ok
		}
		upstream := aRun.Job(ref.Stage())
		if upstream == nil {
			return nil, false
		}
		value, ok := upstream.Outputs[ref.Name]
		return value, ok
	}
	ret := make(map[string]interface{}, len(stage.Params))
	for _, param := range stage.Params {
		value, err := param.Resolve(lookup)
		if err != nil {
			return nil, &types.GraphError{Workflow: aRun.Workflow.Name, Issues: []string{fmt.Sprintf("stage %s: %v", stageName, err)}}
		}
		ret[param.Name] = value
	}
	return ret, nil
}

// dispatch runs one phase of every active job concurrently
func (s *Service) dispatch(ctx context.Context, aRun *execution.Run) []*outcome {
	now := clock.Now()
	var jobs []*execution.Job
	for _, job := range aRun.OrderedJobs() {
		if !job.State.IsActive() {
			continue
		}
		if !job.IsDue(now) {
			continue
		}
		jobs = append(jobs, job)
	}
	outcomes := make([]*outcome, len(jobs))
	group := errgroup.Group{}
	if s.maxParallel > 0 {
		group.SetLimit(s.maxParallel)
	}
	for i, job := range jobs {
		group.Go(func() error {
			outcomes[i] = s.phase(ctx, aRun, job)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// phase performs the work of the job's current state without mutating the run
func (s *Service) phase(ctx context.Context, aRun *execution.Run, job *execution.Job) (ret *outcome) {
	ctx = logging.WithStage(ctx, job.Stage, job.ID)
	ctx, span := tracing.StartSpan(ctx, "chemflow.job."+string(job.State), tracing.KindClient)
	span.WithAttributes(map[string]string{"run_id": aRun.ID, "stage": job.Stage, "engine": job.Engine, "host": job.Host})
	defer func() { tracing.EndSpan(span, ret.err) }()

	ret = &outcome{job: job, from: job.State}
	stage := aRun.Workflow.Stage(job.Stage)
	if stage == nil {
		return ret.failed(&types.NotFoundError{Entity: "stage", ID: job.Stage})
	}
	adapter, err := s.registry.Lookup(job.Engine)
	if err != nil {
		return ret.failed(err)
	}
	t, err := s.transport(job.Host)
	if err != nil {
		return ret.failed(err)
	}
	aTarget := target(aRun.ID, job)
	switch job.State {
	case execution.JobStateReady:
		if ret.launch, err = adapter.Prepare(ctx, stage, job.Params, job.WorkDir); err != nil {
			return ret.failed(err)
		}
		if job.RemoteDir == "" {
			return s.execute(ctx, t, aTarget, ret.launch, ret, execution.JobStateRunning)
		}
		if err = t.StageIn(ctx, aTarget); err != nil {
			return ret.failed(err)
		}
		return s.execute(ctx, t, aTarget, ret.launch, ret, execution.JobStateStaging, execution.JobStateRunning)
	case execution.JobStateStaging:
		if err = t.StageIn(ctx, aTarget); err != nil {
			return ret.failed(err)
		}
		return s.execute(ctx, t, aTarget, job.Launch, ret, execution.JobStateRunning)
	case execution.JobStateRunning:
		status, err := s.poll(ctx, aRun.ID, job)
		if err != nil {
			return ret.failed(err)
		}
		switch {
		case status.Done && status.ExitCode == 0:
			return ret.advance("engine exited", execution.JobStateCollecting)
		case status.Done:
			if err = t.StageOut(ctx, aTarget); err != nil {
				logging.FromContext(ctx).Warn("failed to stage out failed job", "error", err)
			}
			return ret.failed(&types.EngineOutputError{
				Engine:    job.Engine,
				Reason:    "engine exited with non-zero status",
				ExitCode:  status.ExitCode,
				LogTail:   s.tail(ctx, job),
				Artifacts: job.WorkDir,
			})
		case status.Missing:
			handle := ""
			if job.Handle != nil {
				handle = job.Handle.ID
			}
			return ret.failed(&types.OrphanedJobError{Stage: job.Stage, Handle: handle})
		}
		return ret
	case execution.JobStateCollecting:
		if err = t.StageOut(ctx, aTarget); err != nil {
			return ret.failed(err)
		}
		outputs, err := adapter.Collect(ctx, stage, job.WorkDir)
		if err == nil {
			err = engine.CheckOutputs(job.Engine, stage, job.WorkDir, outputs)
		}
		if err != nil {
			var engineErr *types.EngineOutputError
			if errors.As(err, &engineErr) && engineErr.LogTail == "" {
				engineErr.LogTail = s.tail(ctx, job)
			}
			return ret.failed(err)
		}
		ret.outputs = outputs
		ret.files, _ = s.workdir.List(ctx, job.WorkDir)
		return ret.advance("outputs collected", execution.JobStateSucceeded)
	}
	return ret
}

// execute launches spec and advances through states on success; a busy host leaves the job where it was
func (s *Service) execute(ctx context.Context, t transport.Transport, aTarget *transport.Target, spec *engine.LaunchSpec, ret *outcome, to ...execution.JobState) *outcome {
	if spec == nil {
		return ret.failed(fmt.Errorf("stage %s: missing launch spec", aTarget.Stage))
	}
	handle, err := t.Execute(ctx, aTarget, spec)
	if errors.Is(err, types.ErrHostBusy) {
		ret.busy = true
		return ret
	}
	if err != nil {
		return ret.failed(err)
	}
	ret.handle = handle
	return ret.advance("launched "+handle.ID, to...)
}

func (s *Service) poll(ctx context.Context, runID string, job *execution.Job) (*transport.Status, error) {
	t, err := s.transport(job.Host)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()
	return t.Poll(ctx, target(runID, job), job.Handle)
}

// tail returns the last lines of the engine log, or of the job script output
func (s *Service) tail(ctx context.Context, job *execution.Job) string {
	if job.Log != "" {
		if ret := s.workdir.Tail(ctx, job.WorkDir, job.Log, s.tailLines); ret != "" {
			return ret
		}
	}
	return s.workdir.Tail(ctx, job.WorkDir, transport.ScriptOutput, s.tailLines)
}

// apply records an outcome on the run
func (s *Service) apply(ctx context.Context, aRun *execution.Run, o *outcome) error {
	job := o.job
	ctx = logging.WithStage(ctx, job.Stage, job.ID)
	if o.launch != nil {
		job.Launch = o.launch
		job.Log = o.launch.Log
		job.Changes = append(job.Changes, o.launch.Changes...)
	}
	if o.handle != nil {
		job.Handle = o.handle
	}
	s.note(ctx, o)
	if o.outputs != nil {
		job.Outputs = o.outputs
		job.Artifacts = o.files
	}
	for _, to := range o.to {
		if err := s.transition(ctx, aRun, job, to, o.reason); err != nil {
			return err
		}
	}
	if o.err == nil {
		job.Attempts = 0
		job.RetryAt = nil
		return nil
	}
	if types.IsTransient(o.err) {
		job.Attempts++
		retry := s.retry
		if stage := aRun.Workflow.Stage(job.Stage); stage != nil {
			retry = stage.Retry.Merge(s.retry)
		}
		if ok, delay := retry.Next(job.Attempts); ok {
			retryAt := clock.Now().Add(delay)
			job.RetryAt = &retryAt
			s.metrics.Retry(job.Engine, types.KindTransient)
			logging.FromContext(ctx).Warn("transient failure, retry scheduled", "attempt", job.Attempts, "delay", delay, "error", o.err)
			return nil
		}
	}
	return s.fail(ctx, aRun, job, o.err)
}

// transition moves job to state to; the change is published once the run is saved
func (s *Service) transition(ctx context.Context, aRun *execution.Run, job *execution.Job, to execution.JobState, reason string) error {
	from := job.State
	if err := job.Transition(to, reason); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("job transition", "stage", job.Stage, "from", from, "to", to, "reason", reason)
	s.metrics.Transition(job.Engine, string(from), string(to))
	s.queue(aRun.ID, event.NewJobEvent(aRun.ID, aRun.Workflow.Name, job.Stage, job.ID, string(from), string(to), reason, job.Attempts))
	return nil
}

// fail records err on job and moves it to failed
func (s *Service) fail(ctx context.Context, aRun *execution.Run, job *execution.Job, err error) error {
	from := job.State
	if tErr := job.Fail(err); tErr != nil {
		return tErr
	}
	logging.FromContext(ctx).Error("job failed", "stage", job.Stage, "kind", job.Error.Kind, "attempts", job.Attempts, "error", err)
	s.metrics.Transition(job.Engine, string(from), string(execution.JobStateFailed))
	s.queue(aRun.ID, event.NewJobEvent(aRun.ID, aRun.Workflow.Name, job.Stage, job.ID, string(from), string(execution.JobStateFailed), job.Error.Message, job.Attempts))
	return nil
}
