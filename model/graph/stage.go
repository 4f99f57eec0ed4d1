package graph

import (
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/policy"
)

// Stage represents one declared computational step. An empty Host runs the
// stage on this machine; any other value names a configured host.
type Stage struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Engine      string           `json:"engine" yaml:"engine"`
	Host        string           `json:"host,omitempty" yaml:"host,omitempty"`
	DependsOn   []string         `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Params      state.Parameters `json:"params,omitempty" yaml:"params,omitempty"`
	Outputs     []string         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Retry       *policy.Retry    `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// HasOutput returns true if the stage declares output name
func (s *Stage) HasOutput(name string) bool {
	for _, candidate := range s.Outputs {
		if candidate == name {
			return true
		}
	}
	return false
}

// References returns all stage output references used by the stage parameters
func (s *Stage) References() []*state.Reference {
	var result []*state.Reference
	for _, param := range s.Params {
		result = append(result, param.References...)
	}
	return result
}

// DependsOnStage returns true if name is an explicit dependency
func (s *Stage) DependsOnStage(name string) bool {
	for _, dep := range s.DependsOn {
		if dep == name {
			return true
		}
	}
	return false
}
