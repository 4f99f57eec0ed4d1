// Package execution models jobs and workflow runs: the job state machine,
// persisted failures, and the run-level state derived from its jobs.
package execution
