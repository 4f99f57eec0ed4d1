package transport

import "time"

// Handle identifies a launched job: a process id for direct launches or a queue
// job id for scheduler submissions.
type Handle struct {
	ID          string    `json:"id"`
	Scheduler   string    `json:"scheduler,omitempty"`
	Host        string    `json:"host,omitempty"`
	Dir         string    `json:"dir"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Status is the outcome of a single poll
type Status struct {
	// Done is true once the job script touched its completion marker
	Done bool
	// ExitCode of the engine command, valid when Done
	ExitCode int
	// Running is true while the process or queued job is alive
	Running bool
	// Missing is true when the job neither finished nor exists anymore
	Missing bool
	// Detail carries scheduler state or diagnostic text
	Detail string
}
