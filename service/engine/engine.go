// Package engine defines the capability interface over simulation engines.
// An adapter writes engine input artifacts into a working directory, describes
// how to launch the engine, and parses its outputs after the run.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/workdir"
)

// Adapter translates a stage into engine artifacts and back
type Adapter interface {
	// Kind returns the engine tag selected by stages
	Kind() string
	// Prepare writes input artifacts into workDir and returns a launch spec; it never executes anything
	Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*LaunchSpec, error)
	// Collect reads output artifacts from workDir and returns declared outputs
	Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error)
}

// LaunchSpec describes how to run a prepared engine. Log names the main engine
// log used for diagnostics, relative to the working directory.
type LaunchSpec struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Stdout  string            `json:"stdout,omitempty"`
	Files   []string          `json:"files,omitempty"`
	Procs   int               `json:"procs,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Log     string            `json:"log,omitempty"`
	Changes []*workdir.Change `json:"changes,omitempty"`
}

// CommandLine renders the engine invocation, wrapped with mpirun when Procs > 1
func (l *LaunchSpec) CommandLine(mpirun string) string {
	parts := []string{l.Command}
	for _, arg := range l.Args {
		parts = append(parts, Quote(arg))
	}
	cmd := strings.Join(parts, " ")
	if l.Procs > 1 {
		if mpirun == "" {
			mpirun = "mpirun"
		}
		cmd = mpirun + " -np " + strconv.Itoa(l.Procs) + " " + cmd
	}
	if l.Stdout != "" {
		cmd += " > " + Quote(l.Stdout) + " 2>&1"
	}
	return cmd
}

// AddChange records an overwritten artifact
func (l *LaunchSpec) AddChange(change *workdir.Change) {
	if change != nil {
		l.Changes = append(l.Changes, change)
	}
}

// Quote single-quotes s for bash when it contains special characters
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == '=' || r == ':' || r == ',' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// NewOutputError creates an EngineOutputError with diagnostic context
func NewOutputError(kind, workDir, logTail, format string, args ...interface{}) *types.EngineOutputError {
	return &types.EngineOutputError{
		Engine:    kind,
		Reason:    fmt.Sprintf(format, args...),
		LogTail:   logTail,
		Artifacts: workDir,
	}
}

// CheckOutputs fails when any output declared by the stage is missing
func CheckOutputs(kind string, stage *graph.Stage, workDir string, outputs map[string]interface{}) error {
	var missing []string
	for _, name := range stage.Outputs {
		if _, ok := outputs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewOutputError(kind, workDir, "", "stage %s: missing declared outputs %v", stage.Name, missing)
	}
	return nil
}

// Scan checks log text for failure markers first, then requires every success marker.
// It returns the offending marker and false when the log is not a success.
func Scan(text string, success, failure []string) (string, bool) {
	for _, marker := range failure {
		if strings.Contains(text, marker) {
			return marker, false
		}
	}
	for _, marker := range success {
		if !strings.Contains(text, marker) {
			return marker, false
		}
	}
	return "", true
}

// LastFloat returns the first float following the last line containing marker
func LastFloat(text, marker string) (float64, bool) {
	idx := strings.LastIndex(text, marker)
	if idx == -1 {
		return 0, false
	}
	line := text[idx+len(marker):]
	if end := strings.IndexByte(line, '\n'); end != -1 {
		line = line[:end]
	}
	for _, field := range strings.Fields(strings.TrimLeft(line, " =:")) {
		if value, err := strconv.ParseFloat(field, 64); err == nil {
			return value, true
		}
	}
	return 0, false
}
