// Package progress provides a lightweight tracker of job counters (total,
// pending, active, succeeded, failed, cancelled) for one workflow run.
package progress
