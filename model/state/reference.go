package state

import (
	"github.com/viant/bindly/state"
)

// Reference locations.
const (
	LocationOutput = "output"
	LocationInit   = "init"
)

// Reference points at a prior stage output (${stage.output}) or an init parameter (${name}).
type Reference struct {
	Expr     string          `json:"expr" yaml:"expr"`
	Name     string          `json:"name" yaml:"name"`
	Location *state.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// NewOutputReference creates a reference to output of stage.
func NewOutputReference(expr, stage, output string) *Reference {
	return &Reference{Expr: expr, Name: output, Location: &state.Location{Kind: LocationOutput, In: stage}}
}

// NewInitReference creates a reference to an init parameter.
func NewInitReference(expr, name string) *Reference {
	return &Reference{Expr: expr, Name: name, Location: &state.Location{Kind: LocationInit}}
}

// Stage returns the referenced stage, or empty for init references.
func (r *Reference) Stage() string {
	if r.Location == nil || r.Location.Kind != LocationOutput {
		return ""
	}
	return r.Location.In
}

// IsInit returns true for init parameter references.
func (r *Reference) IsInit() bool {
	return r.Location == nil || r.Location.Kind == LocationInit
}
