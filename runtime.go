package chemflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/runtime/orchestrator"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/workflow"
)

// RefreshWorkflow discards any cached copy of the workflow definition located
// at the given URL. The next LoadWorkflow call reloads it via the meta service.
func (r *Runtime) RefreshWorkflow(location string) error {
	if r == nil || r.workflowDAO == nil {
		return fmt.Errorf("runtime not initialised: workflowDAO missing")
	}
	r.workflowDAO.Refresh(location)
	return nil
}

// UpsertDefinition parses YAML data and caches the workflow under location.
// A nil data falls back to RefreshWorkflow.
func (r *Runtime) UpsertDefinition(location string, data []byte) error {
	if r == nil || r.workflowDAO == nil {
		return fmt.Errorf("runtime not initialised: workflowDAO missing")
	}
	if data == nil {
		return r.RefreshWorkflow(location)
	}
	wf, err := r.workflowDAO.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("failed to decode workflow YAML: %w", err)
	}
	if wf.Source == nil {
		wf.Source = &model.Source{URL: location}
	} else {
		wf.Source.URL = location
	}
	r.workflowDAO.Upsert(location, wf)
	return nil
}

// Runtime drives workflow runs
type Runtime struct {
	orchestrator *orchestrator.Service
	workflowDAO  *workflow.Service
	interval     time.Duration
	logger       *slog.Logger

	mux    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// LoadWorkflow loads a workflow document
func (r *Runtime) LoadWorkflow(ctx context.Context, location string) (*model.Workflow, error) {
	return r.workflowDAO.Load(ctx, location)
}

// DecodeYAMLWorkflow decodes a workflow document
func (r *Runtime) DecodeYAMLWorkflow(data []byte) (*model.Workflow, error) {
	return r.workflowDAO.DecodeYAML(data)
}

// Submit validates the workflow and creates a run with one pending job per stage
func (r *Runtime) Submit(ctx context.Context, wf *model.Workflow, init map[string]interface{}) (*execution.Run, error) {
	return r.orchestrator.Submit(ctx, wf, init)
}

// Step advances a run by one phase
func (r *Runtime) Step(ctx context.Context, runID string) (*execution.Snapshot, error) {
	return r.orchestrator.Step(ctx, runID)
}

// Run drives a run at the configured step interval until it is terminal
func (r *Runtime) Run(ctx context.Context, runID string) (*execution.Snapshot, error) {
	return r.orchestrator.Run(ctx, runID, r.interval)
}

// Cancel cancels a run
func (r *Runtime) Cancel(ctx context.Context, runID string) (*execution.Snapshot, error) {
	return r.orchestrator.Cancel(ctx, runID)
}

// Resume reconciles a persisted run with its transports
func (r *Runtime) Resume(ctx context.Context, runID string) (*execution.Snapshot, error) {
	return r.orchestrator.Resume(ctx, runID)
}

// RetryStage re-enters a failed stage
func (r *Runtime) RetryStage(ctx context.Context, runID, stage string) (*execution.Snapshot, error) {
	return r.orchestrator.RetryStage(ctx, runID, stage)
}

// Status returns a run snapshot
func (r *Runtime) Status(ctx context.Context, runID string) (*execution.Snapshot, error) {
	return r.orchestrator.Status(ctx, runID)
}

// List returns run snapshots matching parameters
func (r *Runtime) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error) {
	return r.orchestrator.List(ctx, parameters...)
}

// Delete removes a run
func (r *Runtime) Delete(ctx context.Context, runID string) error {
	return r.orchestrator.Delete(ctx, runID)
}

// Start steps every running run in the background until Shutdown
func (r *Runtime) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.cancel != nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
	return nil
}

func (r *Runtime) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.stepRunning(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runtime) stepRunning(ctx context.Context) {
	snapshots, err := r.orchestrator.List(ctx, dao.NewParameter("State", string(execution.RunStateRunning)))
	if err != nil {
		r.logger.Error("failed to list running runs", "error", err)
		return
	}
	for _, snapshot := range snapshots {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.orchestrator.Step(ctx, snapshot.RunID); err != nil {
			r.logger.Error("step failed", "run_id", snapshot.RunID, "error", err)
		}
	}
}

// Shutdown stops the background loop started by Start
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mux.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
