// Package octopus adapts Octopus real-space ground state and time-dependent runs.
package octopus

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/workdir"
)

const (
	Kind = "octopus"

	TaskGroundState = "ground_state"
	TaskRTTDDFT     = "rt_tddft"

	inputFile    = "inp"
	geometryFile = "geometry.xyz"
	logFile      = "out.log"
)

// Params represents octopus stage parameters
type Params struct {
	Task         string  `json:"task"`
	Geometry     string  `json:"geometry,omitempty"`
	Spacing      float64 `json:"spacing,omitempty"`
	Radius       float64 `json:"radius,omitempty"`
	Restart      string  `json:"restart,omitempty"`
	TimeStep     float64 `json:"timeStep,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	Polarization string  `json:"polarization,omitempty"`
	Strength     float64 `json:"strength,omitempty"`
	Np           int     `json:"np,omitempty"`
}

func (p *Params) init() error {
	if p.Spacing == 0 {
		p.Spacing = 0.23
	}
	if p.Radius == 0 {
		p.Radius = 4
	}
	if p.TimeStep == 0 {
		p.TimeStep = 0.003
	}
	if p.Steps == 0 {
		p.Steps = 1000
	}
	if p.Strength == 0 {
		p.Strength = 0.01
	}
	switch strings.ToLower(p.Polarization) {
	case "", "x":
		p.Polarization = "1"
	case "y":
		p.Polarization = "2"
	case "z":
		p.Polarization = "3"
	default:
		return fmt.Errorf("invalid polarization %q", p.Polarization)
	}
	switch p.Task {
	case TaskGroundState:
		if p.Geometry == "" {
			return fmt.Errorf("%s: geometry was empty", p.Task)
		}
	case TaskRTTDDFT:
		if p.Restart == "" {
			return fmt.Errorf("%s: restart was empty", p.Task)
		}
	default:
		return fmt.Errorf("unsupported task %q, expected %s or %s", p.Task, TaskGroundState, TaskRTTDDFT)
	}
	return nil
}

// Input renders the octopus inp file
func Input(p *Params) string {
	builder := strings.Builder{}
	mode := "gs"
	if p.Task == TaskRTTDDFT {
		mode = "td"
	}
	builder.WriteString("CalculationMode = " + mode + "\n")
	builder.WriteString("UnitsOutput = eV_Angstrom\n")
	builder.WriteString(fmt.Sprintf("XYZCoordinates = %q\n", geometryFile))
	builder.WriteString(fmt.Sprintf("Spacing = %v*angstrom\n", p.Spacing))
	builder.WriteString(fmt.Sprintf("Radius = %v*angstrom\n", p.Radius))
	builder.WriteString("BoxShape = minimum\n")
	if mode == "gs" {
		return builder.String()
	}
	builder.WriteString("\n%RestartOptions\n")
	builder.WriteString(fmt.Sprintf("  restart_gs | %q\n", p.Restart))
	builder.WriteString("%\n")
	builder.WriteString(fmt.Sprintf("TDTimeStep = %v\n", p.TimeStep))
	builder.WriteString(fmt.Sprintf("TDMaxSteps = %d\n", p.Steps))
	builder.WriteString("TDDeltaStrength = " + fmt.Sprint(p.Strength) + "/angstrom\n")
	builder.WriteString("TDPolarizationDirection = " + p.Polarization + "\n")
	builder.WriteString("%TDOutput\n  multipoles\n%\n")
	return builder.String()
}

// Adapter prepares and collects octopus jobs
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

// Prepare writes inp and the geometry; td runs restart from the sibling ground state directory
func (a *Adapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*engine.LaunchSpec, error) {
	p := &Params{}
	if err := engine.DecodeParams(params, p); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	spec := &engine.LaunchSpec{
		Command: a.command,
		Stdout:  logFile,
		Log:     logFile,
		Procs:   p.Np,
		Files:   []string{inputFile, geometryFile},
	}
	geometry := p.Geometry
	if p.Task == TaskRTTDDFT {
		gsDir := strings.TrimRight(p.Restart, "/")
		_, stageDir := url.Split(gsDir, file.Scheme)
		geometry = url.Join(gsDir, geometryFile)
		p.Restart = "../" + stageDir + "/restart"
	}
	parent, name := url.Split(geometry, file.Scheme)
	data, err := a.workdir.Read(ctx, parent, name)
	if err != nil {
		return nil, err
	}
	change, err := a.workdir.Write(ctx, workDir, geometryFile, data)
	if err != nil {
		return nil, err
	}
	spec.AddChange(change)
	if change, err = a.workdir.Write(ctx, workDir, inputFile, []byte(Input(p))); err != nil {
		return nil, err
	}
	spec.AddChange(change)
	return spec, nil
}

// Collect checks static/info or td.general/multipoles and extracts outputs
func (a *Adapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	input, err := a.workdir.Read(ctx, workDir, inputFile)
	if err != nil {
		return nil, engine.NewOutputError(Kind, workDir, "", "missing %s", inputFile)
	}
	logTail := a.workdir.Tail(ctx, workDir, logFile, 20)
	outputs := map[string]interface{}{
		"log": url.Join(workDir, logFile),
		"dir": workDir,
	}
	if strings.Contains(string(input), "CalculationMode = td") {
		multipoles := url.Join(workDir, "td.general")
		if !a.workdir.Exists(ctx, multipoles, "multipoles") {
			return nil, engine.NewOutputError(Kind, workDir, logTail, "missing td.general/multipoles")
		}
		outputs["multipoles"] = url.Join(multipoles, "multipoles")
	} else {
		static := url.Join(workDir, "static")
		data, err := a.workdir.Read(ctx, static, "info")
		if err != nil {
			return nil, engine.NewOutputError(Kind, workDir, logTail, "missing static/info")
		}
		text := string(data)
		if marker, ok := engine.Scan(text, []string{"SCF converged"}, nil); !ok {
			return nil, engine.NewOutputError(Kind, workDir, workdir.Tail(text, 20), "static/info failed marker check: %q", marker)
		}
		outputs["info"] = url.Join(static, "info")
		if energy, ok := engine.LastFloat(text, "Total       ="); ok {
			outputs["energy"] = energy
		}
	}
	if err = engine.CheckOutputs(Kind, stage, workDir, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// New creates an octopus adapter, command defaults to octopus
func New(workdir *workdir.Service, command string) *Adapter {
	if command == "" {
		command = "octopus"
	}
	return &Adapter{workdir: workdir, command: command}
}
