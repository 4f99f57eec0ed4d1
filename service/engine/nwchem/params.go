package nwchem

import (
	"fmt"
	"strings"
)

const (
	TaskGroundState = "ground_state"
	TaskRTTDDFT     = "rt_tddft"

	attosecondToAU = 1 / 24.188843265857
)

// Params represents nwchem stage parameters
type Params struct {
	Task         string  `json:"task"`
	Label        string  `json:"label,omitempty"`
	Geometry     string  `json:"geometry,omitempty"`
	Basis        string  `json:"basis,omitempty"`
	XC           string  `json:"xc,omitempty"`
	Charge       int     `json:"charge,omitempty"`
	Multiplicity int     `json:"multiplicity,omitempty"`
	EnergyConv   float64 `json:"energyConv,omitempty"`
	DensityConv  float64 `json:"densityConv,omitempty"`
	MaxIter      int     `json:"maxIter,omitempty"`
	Restart      string  `json:"restart,omitempty"`
	//TimeStep in attoseconds
	TimeStep     float64 `json:"timeStep,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	Polarization string  `json:"polarization,omitempty"`
	Strength     float64 `json:"strength,omitempty"`
	Np           int     `json:"np,omitempty"`
}

// Init sets defaults
func (p *Params) Init() {
	if p.Label == "" {
		p.Label = "chemflow"
	}
	if p.Basis == "" {
		p.Basis = "6-31g"
	}
	if p.XC == "" {
		p.XC = "b3lyp"
	}
	if p.Multiplicity == 0 {
		p.Multiplicity = 1
	}
	if p.EnergyConv == 0 {
		p.EnergyConv = 1e-5
	}
	if p.DensityConv == 0 {
		p.DensityConv = 1e-7
	}
	if p.MaxIter == 0 {
		p.MaxIter = 300
	}
	if p.TimeStep == 0 {
		p.TimeStep = 10
	}
	if p.Steps == 0 {
		p.Steps = 1000
	}
	if p.Polarization == "" {
		p.Polarization = "x"
	}
	if p.Strength == 0 {
		p.Strength = 1e-4
	}
	p.Polarization = strings.ToLower(p.Polarization)
}

// Validate checks required parameters
func (p *Params) Validate() error {
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
	switch p.Polarization {
	case "x", "y", "z":
	default:
		return fmt.Errorf("invalid polarization %q", p.Polarization)
	}
	return nil
}

// FileName returns the input/output base name for the task
func (p *Params) FileName() string {
	if p.Task == TaskRTTDDFT {
		return "td"
	}
	return "gs"
}
