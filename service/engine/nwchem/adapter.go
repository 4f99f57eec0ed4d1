// Package nwchem adapts NWChem ground state and real-time TDDFT calculations.
package nwchem

import (
	"context"
	"path"
	"strings"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/workdir"
)

const Kind = "nwchem"

var (
	failureMarkers = []string{"For further details see manual", "There is an error"}
	successMarkers = map[string][]string{
		"gs": {"Total DFT energy"},
		"td": {"Propagation finished"},
	}
)

// Adapter prepares and collects nwchem jobs
type Adapter struct {
	workdir *workdir.Service
	command string
}

func (a *Adapter) Kind() string {
	return Kind
}

func (a *Adapter) Params() interface{} {
	return &Params{}
}

// Prepare writes the input deck and its geometry and restart vectors
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
		Command: a.command,
		Args:    []string{name + ".nwi"},
		Stdout:  name + ".nwo",
		Log:     name + ".nwo",
		Procs:   p.Np,
		Files:   []string{name + ".nwi", geometryFile},
	}
	geometry := p.Geometry
	if geometry == "" {
		parent, _ := url.Split(p.Restart, file.Scheme)
		geometry = url.Join(parent, geometryFile)
	}
	if err := a.copy(ctx, geometry, workDir, geometryFile, spec); err != nil {
		return nil, err
	}
	if p.Task == TaskRTTDDFT {
		if err := a.copy(ctx, movecs(p.Restart), workDir, restartFile, spec); err != nil {
			return nil, err
		}
		spec.Files = append(spec.Files, restartFile)
	}
	change, err := a.workdir.Write(ctx, workDir, name+".nwi", []byte(Input(p)))
	if err != nil {
		return nil, err
	}
	spec.AddChange(change)
	return spec, nil
}

func (a *Adapter) copy(ctx context.Context, source, workDir, target string, spec *engine.LaunchSpec) error {
	parent, name := url.Split(source, file.Scheme)
	data, err := a.workdir.Read(ctx, parent, name)
	if err != nil {
		return err
	}
	change, err := a.workdir.Write(ctx, workDir, target, data)
	if err != nil {
		return err
	}
	spec.AddChange(change)
	return nil
}

func movecs(restart string) string {
	if strings.HasSuffix(restart, ".movecs") {
		return restart
	}
	return strings.TrimSuffix(restart, path.Ext(restart)) + ".movecs"
}

// Collect verifies the nwchem log and extracts outputs
func (a *Adapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	name := "gs"
	if a.workdir.Exists(ctx, workDir, "td.nwo") {
		name = "td"
	}
	logName := name + ".nwo"
	data, err := a.workdir.Read(ctx, workDir, logName)
	if err != nil {
		return nil, engine.NewOutputError(Kind, workDir, "", "missing log %s", logName)
	}
	text := string(data)
	if marker, ok := engine.Scan(text, successMarkers[name], failureMarkers); !ok {
		return nil, engine.NewOutputError(Kind, workDir, workdir.Tail(text, 20), "log %s failed marker check: %q", logName, marker)
	}
	outputs := map[string]interface{}{
		"log": url.Join(workDir, logName),
		"dir": workDir,
	}
	if energy, ok := engine.LastFloat(text, "Total DFT energy ="); ok {
		outputs["energy"] = energy
	}
	if a.workdir.Exists(ctx, workDir, name+".movecs") {
		outputs["movecs"] = url.Join(workDir, name+".movecs")
	}
	if err = engine.CheckOutputs(Kind, stage, workDir, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// New creates an nwchem adapter, command defaults to nwchem
func New(workdir *workdir.Service, command string) *Adapter {
	if command == "" {
		command = "nwchem"
	}
	return &Adapter{workdir: workdir, command: command}
}
