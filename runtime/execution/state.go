package execution

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateReady      JobState = "ready"
	JobStateStaging    JobState = "staging"
	JobStateRunning    JobState = "running"
	JobStateCollecting JobState = "collecting"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

var transitions = map[JobState][]JobState{
	JobStatePending:    {JobStateReady, JobStateFailed, JobStateCancelled},
	JobStateReady:      {JobStateStaging, JobStateRunning, JobStateFailed, JobStateCancelled},
	JobStateStaging:    {JobStateRunning, JobStateReady, JobStateFailed, JobStateCancelled},
	JobStateRunning:    {JobStateCollecting, JobStateFailed, JobStateCancelled},
	JobStateCollecting: {JobStateSucceeded, JobStateFailed, JobStateCancelled},
	JobStateFailed:     {JobStateReady},
}

// CanTransition reports whether a job may move from one state to another.
// Staging returns to Ready only when a resumed run re-stages; Failed returns to
// Ready only on explicit retry.
func CanTransition(from, to JobState) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for succeeded, failed and cancelled
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// IsActive returns true for states that the orchestrator advances on every step
func (s JobState) IsActive() bool {
	switch s {
	case JobStateReady, JobStateStaging, JobStateRunning, JobStateCollecting:
		return true
	}
	return false
}

// RunState represents the aggregated state of a workflow run
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateComplete  RunState = "complete"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// IsTerminal returns true for complete, failed and cancelled runs
func (s RunState) IsTerminal() bool {
	return s == RunStateComplete || s == RunStateFailed || s == RunStateCancelled
}
