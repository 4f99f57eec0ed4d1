package gpaw

import (
	"fmt"
	"strings"
)

const (
	TaskGroundState = "ground_state"
	TaskRTTDDFT     = "rt_tddft"
)

// Params represents gpaw stage parameters
type Params struct {
	Task         string  `json:"task"`
	Geometry     string  `json:"geometry,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	XC           string  `json:"xc,omitempty"`
	Spacing      float64 `json:"spacing,omitempty"`
	Vacuum       float64 `json:"vacuum,omitempty"`
	Restart      string  `json:"restart,omitempty"`
	TimeStep     float64 `json:"timeStep,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	Polarization string  `json:"polarization,omitempty"`
	Strength     float64 `json:"strength,omitempty"`
	Np           int     `json:"np,omitempty"`
}

// Init sets defaults
func (p *Params) Init() {
	if p.Mode == "" {
		p.Mode = "lcao"
	}
	if p.XC == "" {
		p.XC = "PBE"
	}
	if p.Spacing == 0 {
		p.Spacing = 0.3
	}
	if p.Vacuum == 0 {
		p.Vacuum = 6
	}
	if p.TimeStep == 0 {
		p.TimeStep = 10
	}
	if p.Steps == 0 {
		p.Steps = 2000
	}
	if p.Polarization == "" {
		p.Polarization = "x"
	}
	if p.Strength == 0 {
		p.Strength = 1e-5
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
		switch p.Mode {
		case "fd", "lcao", "pw":
		default:
			return fmt.Errorf("unsupported mode %q", p.Mode)
		}
	case TaskRTTDDFT:
		if p.Restart == "" {
			return fmt.Errorf("%s: restart was empty", p.Task)
		}
	default:
		return fmt.Errorf("unsupported task %q, expected %s or %s", p.Task, TaskGroundState, TaskRTTDDFT)
	}
	if p.kick() == "" {
		return fmt.Errorf("invalid polarization %q", p.Polarization)
	}
	return nil
}

func (p *Params) kick() string {
	switch p.Polarization {
	case "x":
		return "[%v, 0.0, 0.0]"
	case "y":
		return "[0.0, %v, 0.0]"
	case "z":
		return "[0.0, 0.0, %v]"
	}
	return ""
}

// FileName returns the script and log base name for the task
func (p *Params) FileName() string {
	if p.Task == TaskRTTDDFT {
		return "td"
	}
	return "gs"
}
