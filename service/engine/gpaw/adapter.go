// Package gpaw adapts GPAW ground state and LCAO real-time TDDFT calculations.
package gpaw

import (
	"context"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/workdir"
)

const Kind = "gpaw"

var (
	failureMarkers = []string{"Traceback (most recent call last)", "KohnShamConvergenceError"}
	successMarkers = map[string][]string{
		"gs": {"Converged", "Fermi level:", "Total:"},
		"td": {"Propagation"},
	}
)

// Adapter prepares and collects gpaw jobs
type Adapter struct {
	workdir *workdir.Service
	python  string
}

func (a *Adapter) Kind() string {
	return Kind
}

func (a *Adapter) Params() interface{} {
	return &Params{}
}

// Prepare writes the python driver and its inputs
func (a *Adapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*engine.LaunchSpec, error) {
	p := &Params{}
	if err := engine.DecodeParams(params, p); err != nil {
		return nil, err
	}
	p.Init()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := a.workdir.Ensure(ctx, workDir); err != nil {
		return nil, err
	}
	name := p.FileName()
	spec := &engine.LaunchSpec{
		Command: a.python,
		Args:    []string{name + ".py"},
		Stdout:  name + ".out",
		Log:     name + ".txt",
		Procs:   p.Np,
		Files:   []string{name + ".py"},
	}
	source, target := p.Geometry, geometryFile
	if p.Task == TaskRTTDDFT {
		source, target = p.Restart, restartFile
	}
	parent, fileName := url.Split(source, file.Scheme)
	data, err := a.workdir.Read(ctx, parent, fileName)
	if err != nil {
		return nil, err
	}
	change, err := a.workdir.Write(ctx, workDir, target, data)
	if err != nil {
		return nil, err
	}
	spec.AddChange(change)
	spec.Files = append(spec.Files, target)
	if change, err = a.workdir.Write(ctx, workDir, name+".py", []byte(Script(p))); err != nil {
		return nil, err
	}
	spec.AddChange(change)
	return spec, nil
}

// Collect verifies the gpaw log and extracts outputs
func (a *Adapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	name := "gs"
	if a.workdir.Exists(ctx, workDir, "td.py") {
		name = "td"
	}
	logName := name + ".txt"
	data, err := a.workdir.Read(ctx, workDir, logName)
	if err != nil {
		return nil, engine.NewOutputError(Kind, workDir, a.workdir.Tail(ctx, workDir, name+".out", 20), "missing log %s", logName)
	}
	text := string(data)
	if marker, ok := engine.Scan(text, successMarkers[name], failureMarkers); !ok {
		return nil, engine.NewOutputError(Kind, workDir, workdir.Tail(text, 20), "log %s failed marker check: %q", logName, marker)
	}
	outputs := map[string]interface{}{
		"log": url.Join(workDir, logName),
		"dir": workDir,
	}
	if a.workdir.Exists(ctx, workDir, name+".gpw") {
		outputs["gpw"] = url.Join(workDir, name+".gpw")
	}
	if name == "gs" {
		if energy, ok := engine.LastFloat(text, "Extrapolated:"); ok {
			outputs["energy"] = energy
		}
	} else if a.workdir.Exists(ctx, workDir, dipoleFile) {
		outputs["dipole"] = url.Join(workDir, dipoleFile)
	}
	if err = engine.CheckOutputs(Kind, stage, workDir, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// New creates a gpaw adapter, python defaults to python3
func New(workdir *workdir.Service, python string) *Adapter {
	if python == "" {
		python = "python3"
	}
	return &Adapter{workdir: workdir, python: python}
}
