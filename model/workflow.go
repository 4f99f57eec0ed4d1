package model

import (
	"errors"

	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/model/types"
)

// Source describes where a workflow definition came from
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Workflow represents a workflow definition
type Workflow struct {
	// Source provides information about the origin of the workflow
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`
	// Name is the workflow identifier
	Name string `json:"name" yaml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Init parameters are externally supplied values stages may reference
	Init state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`

	// Stages in declaration order
	Stages []*graph.Stage `json:"stages" yaml:"stages"`
}

// Graph builds the dependency graph of the workflow stages
func (w *Workflow) Graph() *graph.Graph {
	return graph.New(w.Stages...)
}

// Validate validates the stage graph against the workflow init parameters and any
// extra init names supplied at submission time.
func (w *Workflow) Validate(extraInit ...string) error {
	names := append(w.Init.Names(), extraInit...)
	err := w.Graph().Validate(names...)
	var graphErr *types.GraphError
	if errors.As(err, &graphErr) && graphErr.Workflow == "" {
		graphErr.Workflow = w.Name
	}
	return err
}

// Stage returns a stage by name
func (w *Workflow) Stage(name string) *graph.Stage {
	for _, stage := range w.Stages {
		if stage.Name == name {
			return stage
		}
	}
	return nil
}
