// Package types defines the error taxonomy shared by the workflow engine.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, as persisted on a failed job.
const (
	KindGraph     = "GraphError"
	KindTransient = "TransientTransportError"
	KindEngine    = "EngineOutputError"
	KindOrphaned  = "OrphanedJobError"
	KindNotFound  = "NotFoundError"
	KindInternal  = "InternalError"
	KindCancelled = "Cancelled"
)

// ErrHostBusy is returned by a transport when a host has no free job slot.
var ErrHostBusy = errors.New("host busy")

// GraphError reports an invalid workflow definition.
type GraphError struct {
	Workflow string
	Issues   []string
}

func (e *GraphError) Error() string {
	prefix := "invalid workflow"
	if e.Workflow != "" {
		prefix += " " + e.Workflow
	}
	return prefix + ": " + strings.Join(e.Issues, "; ")
}

// NewGraphError creates a GraphError with a single formatted issue.
func NewGraphError(format string, args ...interface{}) *GraphError {
	return &GraphError{Issues: []string{fmt.Sprintf(format, args...)}}
}

// TransientTransportError reports a recoverable transport failure (connection, copy, timeout).
type TransientTransportError struct {
	Op   string
	Host string
	Err  error
}

func (e *TransientTransportError) Error() string {
	host := e.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("transport %s on %s: %v", e.Op, host, e.Err)
}

func (e *TransientTransportError) Unwrap() error { return e.Err }

// NewTransientError wraps err as a TransientTransportError.
func NewTransientError(op, host string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientTransportError{Op: op, Host: host, Err: err}
}

// EngineOutputError reports that an engine ran but produced unusable output.
type EngineOutputError struct {
	Engine    string
	Reason    string
	ExitCode  int
	LogTail   string
	Artifacts string
}

func (e *EngineOutputError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Engine, e.Reason)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	return msg
}

// OrphanedJobError reports a job that persisted state believes active but no longer exists.
type OrphanedJobError struct {
	Stage  string
	Handle string
}

func (e *OrphanedJobError) Error() string {
	return fmt.Sprintf("stage %s: orphaned on resume (handle %s)", e.Stage, e.Handle)
}

// NotFoundError reports an unknown run id or stage.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsTransient reports whether err is, or wraps, a TransientTransportError.
func IsTransient(err error) bool {
	var target *TransientTransportError
	return errors.As(err, &target)
}

// KindOf classifies err into one of the taxonomy kinds.
func KindOf(err error) string {
	var (
		graphErr    *GraphError
		transient   *TransientTransportError
		engineErr   *EngineOutputError
		orphanedErr *OrphanedJobError
		notFoundErr *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &graphErr):
		return KindGraph
	case errors.As(err, &transient):
		return KindTransient
	case errors.As(err, &engineErr):
		return KindEngine
	case errors.As(err, &orphanedErr):
		return KindOrphaned
	case errors.As(err, &notFoundErr):
		return KindNotFound
	}
	return KindInternal
}
