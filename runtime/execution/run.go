package execution

import (
	"time"

	"github.com/viant/chemflow/internal/clock"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/progress"
)

// Run is one execution attempt of a workflow: the graph snapshot plus the
// current job of every stage. Version is the stored revision the run was
// loaded from; stores advance it on every save.
type Run struct {
	ID        string                 `json:"id"`
	Workflow  *model.Workflow        `json:"workflow"`
	Init      map[string]interface{} `json:"init,omitempty"`
	State     RunState               `json:"state"`
	Cancelled bool                   `json:"cancelled,omitempty"`
	Jobs      map[string]*Job        `json:"jobs"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Version   int                    `json:"version"`

	graph *graph.Graph
}

// NewRun creates a running run with one pending job per stage
func NewRun(id string, workflow *model.Workflow, init map[string]interface{}) *Run {
	now := clock.Now()
	ret := &Run{
		ID:        id,
		Workflow:  workflow,
		Init:      init,
		State:     RunStateRunning,
		Jobs:      make(map[string]*Job, len(workflow.Stages)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, stage := range workflow.Stages {
		ret.Jobs[stage.Name] = NewJob(stage.Name, stage.Engine, stage.Host)
	}
	return ret
}

// Graph returns the dependency graph of the run workflow
func (r *Run) Graph() *graph.Graph {
	if r.graph == nil {
		r.graph = r.Workflow.Graph()
	}
	return r.graph
}

// Job returns the job of a stage
func (r *Run) Job(stage string) *Job {
	return r.Jobs[stage]
}

// OrderedJobs returns jobs in topological order
func (r *Run) OrderedJobs() []*Job {
	ret := make([]*Job, 0, len(r.Jobs))
	for name := range r.Graph().TopologicalOrder() {
		if job := r.Jobs[name]; job != nil {
			ret = append(ret, job)
		}
	}
	return ret
}

// DependenciesSucceeded returns true when every dependency of stage succeeded
func (r *Run) DependenciesSucceeded(stage string) bool {
	for _, dep := range r.Graph().Dependencies(stage) {
		job := r.Jobs[dep]
		if job == nil || job.State != JobStateSucceeded {
			return false
		}
	}
	return true
}

// HasFailure returns true when any job failed
func (r *Run) HasFailure() bool {
	for _, job := range r.Jobs {
		if job.State == JobStateFailed {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of jobs in an active state
func (r *Run) ActiveCount() int {
	count := 0
	for _, job := range r.Jobs {
		if job.State.IsActive() {
			count++
		}
	}
	return count
}

// Recompute derives the run state from job states. A failure fails the run once no
// already dispatched job is still active.
func (r *Run) Recompute() RunState {
	switch {
	case r.Cancelled:
		r.State = RunStateCancelled
	case r.allSucceeded():
		r.State = RunStateComplete
	case r.HasFailure() && r.ActiveCount() == 0:
		r.State = RunStateFailed
	default:
		r.State = RunStateRunning
	}
	return r.State
}

func (r *Run) allSucceeded() bool {
	for _, job := range r.Jobs {
		if job.State != JobStateSucceeded {
			return false
		}
	}
	return len(r.Jobs) > 0
}

// Touch marks the run as modified
func (r *Run) Touch() {
	r.UpdatedAt = clock.Now()
}

// Counters returns job counters of the run
func (r *Run) Counters() progress.Counters {
	states := make([]string, 0, len(r.Jobs))
	for _, job := range r.Jobs {
		states = append(states, string(job.State))
	}
	return progress.Count(states...)
}

// StageStatus is the operator view of a single stage
type StageStatus struct {
	Stage     string                 `json:"stage"`
	Engine    string                 `json:"engine"`
	Host      string                 `json:"host,omitempty"`
	JobID     string                 `json:"jobId"`
	State     JobState               `json:"state"`
	Attempts  int                    `json:"attempts,omitempty"`
	WorkDir   string                 `json:"workDir,omitempty"`
	Outputs   map[string]interface{} `json:"outputs,omitempty"`
	Error     *Failure               `json:"error,omitempty"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Snapshot is the operator view of a run
type Snapshot struct {
	RunID     string            `json:"runId"`
	Workflow  string            `json:"workflow"`
	State     RunState          `json:"state"`
	Cancelled bool              `json:"cancelled,omitempty"`
	Progress  progress.Counters `json:"progress"`
	Stages    []*StageStatus    `json:"stages"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Snapshot returns a per-stage status of the run
func (r *Run) Snapshot() *Snapshot {
	ret := &Snapshot{
		RunID:     r.ID,
		Workflow:  r.Workflow.Name,
		State:     r.State,
		Cancelled: r.Cancelled,
		Progress:  r.Counters(),
		UpdatedAt: r.UpdatedAt,
	}
	for _, stage := range r.Workflow.Stages {
		job := r.Jobs[stage.Name]
		if job == nil {
			continue
		}
		ret.Stages = append(ret.Stages, &StageStatus{
			Stage:     job.Stage,
			Engine:    job.Engine,
			Host:      job.Host,
			JobID:     job.ID,
			State:     job.State,
			Attempts:  job.Attempts,
			WorkDir:   job.WorkDir,
			Outputs:   job.Outputs,
			Error:     job.Error,
			UpdatedAt: job.UpdatedAt,
		})
	}
	return ret
}

// Stage returns the status of one stage, or nil
func (s *Snapshot) Stage(name string) *StageStatus {
	for _, candidate := range s.Stages {
		if candidate.Stage == name {
			return candidate
		}
	}
	return nil
}
