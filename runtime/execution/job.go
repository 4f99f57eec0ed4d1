package execution

import (
	"fmt"
	"time"

	"github.com/viant/chemflow/internal/clock"
	"github.com/viant/chemflow/internal/idgen"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
)

// Job is the executable instantiation of one stage for one run. Log is the
// engine log file relative to WorkDir; Attempts counts transient failures of
// the current phase.
type Job struct {
	ID        string                 `json:"id"`
	Stage     string                 `json:"stage"`
	Engine    string                 `json:"engine"`
	Host      string                 `json:"host,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	WorkDir   string                 `json:"workDir,omitempty"`
	RemoteDir string                 `json:"remoteDir,omitempty"`
	Log       string                 `json:"log,omitempty"`
	State     JobState               `json:"state"`
	Attempts  int                    `json:"attempts,omitempty"`
	RetryAt   *time.Time             `json:"retryAt,omitempty"`
	Launch    *engine.LaunchSpec     `json:"launch,omitempty"`
	Handle    *transport.Handle      `json:"handle,omitempty"`
	Outputs   map[string]interface{} `json:"outputs,omitempty"`
	Artifacts []string               `json:"artifacts,omitempty"`
	Changes   []*workdir.Change      `json:"changes,omitempty"`
	Error     *Failure               `json:"error,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	StartedAt *time.Time             `json:"startedAt,omitempty"`
	EndedAt   *time.Time             `json:"endedAt,omitempty"`
	History   []*Transition          `json:"history,omitempty"`
}

// Transition records a single state change
type Transition struct {
	From   JobState  `json:"from"`
	To     JobState  `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// NewJob creates a pending job for a stage
func NewJob(stage, engine, host string) *Job {
	now := clock.Now()
	return &Job{
		ID:        idgen.New(),
		Stage:     stage,
		Engine:    engine,
		Host:      host,
		State:     JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the job to state to, validating the move and recording history
func (j *Job) Transition(to JobState, reason string) error {
	if !CanTransition(j.State, to) {
		return fmt.Errorf("job %s (%s): illegal transition %s -> %s", j.ID, j.Stage, j.State, to)
	}
	now := clock.Now()
	j.History = append(j.History, &Transition{From: j.State, To: to, At: now, Reason: reason})
	j.State = to
	j.UpdatedAt = now
	switch {
	case to == JobStateRunning && j.StartedAt == nil:
		j.StartedAt = &now
	case to.IsTerminal():
		j.EndedAt = &now
	case to == JobStateReady:
		j.EndedAt = nil
	}
	return nil
}

// Fail records err and moves the job to failed
func (j *Job) Fail(err error) error {
	j.Error = NewFailure(err)
	j.RetryAt = nil
	return j.Transition(JobStateFailed, j.Error.Message)
}

// IsDue returns true when a scheduled retry time has passed
func (j *Job) IsDue(now time.Time) bool {
	return j.RetryAt == nil || !now.Before(*j.RetryAt)
}

// ResetForRetry clears per-attempt data; resolved parameters and directories stay
func (j *Job) ResetForRetry() {
	j.Attempts = 0
	j.RetryAt = nil
	j.Handle = nil
	j.Error = nil
	j.Outputs = nil
	j.Artifacts = nil
	j.StartedAt = nil
}
