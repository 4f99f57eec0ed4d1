// Package shell runs an arbitrary command as a stage. Parameters other than
// command are exported as environment variables; the command reports outputs
// by writing outputs.json into its working directory.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/viant/afs/url"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/toolbox"
)

const (
	Kind = "shell"

	scriptFile  = "run.sh"
	logFile     = "stdout.log"
	outputsFile = "outputs.json"
)

// Adapter runs user commands
type Adapter struct {
	workdir *workdir.Service
}

func (a *Adapter) Kind() string {
	return Kind
}

// Prepare writes run.sh wrapping the command parameter
func (a *Adapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*engine.LaunchSpec, error) {
	command := strings.TrimSpace(toolbox.AsString(params["command"]))
	if params["command"] == nil || command == "" {
		return nil, fmt.Errorf("stage %s: command was empty", stage.Name)
	}
	spec := &engine.LaunchSpec{
		Command: "bash",
		Args:    []string{scriptFile},
		Stdout:  logFile,
		Log:     logFile,
		Files:   []string{scriptFile},
		Env:     map[string]string{},
	}
	var names []string
	for name := range params {
		if name != "command" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	builder := strings.Builder{}
	builder.WriteString("#!/bin/bash\nset -e\n")
	for _, name := range names {
		value, err := envValue(params[name])
		if err != nil {
			return nil, fmt.Errorf("stage %s: param %s: %w", stage.Name, name, err)
		}
		key := EnvName(name)
		spec.Env[key] = value
		builder.WriteString("export " + key + "=" + engine.Quote(value) + "\n")
	}
	builder.WriteString(command + "\n")
	change, err := a.workdir.Write(ctx, workDir, scriptFile, []byte(builder.String()))
	if err != nil {
		return nil, err
	}
	spec.AddChange(change)
	return spec, nil
}

func envValue(value interface{}) (string, error) {
	switch actual := value.(type) {
	case nil:
		return "", nil
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(actual)
		return string(data), err
	}
	return toolbox.AsString(value), nil
}

// EnvName converts a parameter name to an environment variable name
func EnvName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}

// Collect reads outputs.json; declared outputs not listed there resolve to files of the same name
func (a *Adapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	outputs := map[string]interface{}{
		"log": url.Join(workDir, logFile),
		"dir": workDir,
	}
	if a.workdir.Exists(ctx, workDir, outputsFile) {
		data, err := a.workdir.Read(ctx, workDir, outputsFile)
		if err != nil {
			return nil, err
		}
		reported := map[string]interface{}{}
		if err = json.Unmarshal(data, &reported); err != nil {
			return nil, engine.NewOutputError(Kind, workDir, a.workdir.Tail(ctx, workDir, logFile, 20), "malformed %s: %v", outputsFile, err)
		}
		for k, v := range reported {
			outputs[k] = v
		}
	}
	for _, name := range stage.Outputs {
		if _, ok := outputs[name]; !ok && a.workdir.Exists(ctx, workDir, name) {
			outputs[name] = url.Join(workDir, name)
		}
	}
	if err := engine.CheckOutputs(Kind, stage, workDir, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// New creates a shell adapter
func New(workdir *workdir.Service) *Adapter {
	return &Adapter{workdir: workdir}
}
