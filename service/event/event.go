// Package event publishes run and job lifecycle events to a message queue.
package event

import (
	"time"

	"github.com/viant/chemflow/internal/clock"
	"github.com/viant/chemflow/internal/idgen"
)

// Type represents an event type
type Type string

const (
	TypeRunSubmitted  Type = "run.submitted"
	TypeRunState      Type = "run.state"
	TypeRunCancelled  Type = "run.cancelled"
	TypeRunResumed    Type = "run.resumed"
	TypeRunDeleted    Type = "run.deleted"
	TypeJobTransition Type = "job.transition"
	TypeStageRetried  Type = "stage.retried"
)

// Event describes a single lifecycle change
type Event struct {
	ID       string                 `json:"id"`
	Type     Type                   `json:"type"`
	RunID    string                 `json:"runId"`
	Workflow string                 `json:"workflow,omitempty"`
	Stage    string                 `json:"stage,omitempty"`
	JobID    string                 `json:"jobId,omitempty"`
	From     string                 `json:"from,omitempty"`
	To       string                 `json:"to,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
	Attempt  int                    `json:"attempt,omitempty"`
	At       time.Time              `json:"at"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewRunEvent creates a run level event
func NewRunEvent(eventType Type, runID, workflow string) *Event {
	return &Event{ID: idgen.New(), Type: eventType, RunID: runID, Workflow: workflow, At: clock.Now()}
}

// NewJobEvent creates a job transition event
func NewJobEvent(runID, workflow, stage, jobID, from, to, reason string, attempt int) *Event {
	ret := NewRunEvent(TypeJobTransition, runID, workflow)
	ret.Stage = stage
	ret.JobID = jobID
	ret.From = from
	ret.To = to
	ret.Reason = reason
	ret.Attempt = attempt
	return ret
}
