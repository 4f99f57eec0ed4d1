package graph

import (
	"fmt"
	"iter"

	"github.com/viant/chemflow/model/types"
)

// Graph is the dependency graph of stages. It is read-only once validated.
type Graph struct {
	stages []*Stage
	index  map[string]int
}

// New creates a graph from stages in declaration order. Output references imply a
// dependency on the referenced stage.
func New(stages ...*Stage) *Graph {
	g := &Graph{stages: stages, index: make(map[string]int, len(stages))}
	for i, stage := range stages {
		if _, ok := g.index[stage.Name]; !ok {
			g.index[stage.Name] = i
		}
		var deps []string
		for _, dep := range stage.DependsOn {
			if !contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		for _, ref := range stage.References() {
			if dep := ref.Stage(); dep != "" && !contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		stage.DependsOn = deps
	}
	return g
}

// Stages returns stages in declaration order
func (g *Graph) Stages() []*Stage {
	return g.stages
}

// Stage returns a stage by name
func (g *Graph) Stage(name string) (*Stage, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.stages[i], true
}

// Dependencies returns direct dependencies of stage
func (g *Graph) Dependencies(name string) []string {
	stage, ok := g.Stage(name)
	if !ok {
		return nil
	}
	return stage.DependsOn
}

// Dependents returns stages that directly depend on name, in declaration order
func (g *Graph) Dependents(name string) []string {
	var result []string
	for _, stage := range g.stages {
		if stage.DependsOnStage(name) {
			result = append(result, stage.Name)
		}
	}
	return result
}

// Ancestors returns the transitive dependencies of a stage
func (g *Graph) Ancestors(name string) map[string]bool {
	result := map[string]bool{}
	var visit func(string)
	visit = func(current string) {
		for _, dep := range g.Dependencies(current) {
			if result[dep] {
				continue
			}
			result[dep] = true
			visit(dep)
		}
	}
	visit(name)
	return result
}

// Validate checks stage uniqueness, dependencies, cycles and that every reference
// is satisfied by an ancestor output or an init parameter.
func (g *Graph) Validate(initNames ...string) error {
	var issues []string
	if len(g.stages) == 0 {
		issues = append(issues, "workflow has no stages")
	}
	inits := map[string]bool{}
	for _, name := range initNames {
		inits[name] = true
	}
	seen := map[string]bool{}
	for _, stage := range g.stages {
		if stage.Name == "" {
			issues = append(issues, "stage with empty name")
			continue
		}
		if seen[stage.Name] {
			issues = append(issues, fmt.Sprintf("duplicate stage %s", stage.Name))
		}
		seen[stage.Name] = true
		if stage.Engine == "" {
			issues = append(issues, fmt.Sprintf("stage %s: engine is required", stage.Name))
		}
		for _, dep := range stage.DependsOn {
			if dep == stage.Name {
				issues = append(issues, fmt.Sprintf("stage %s depends on itself", stage.Name))
			} else if _, ok := g.index[dep]; !ok {
				issues = append(issues, fmt.Sprintf("stage %s depends on unknown stage %s", stage.Name, dep))
			}
		}
	}
	if len(issues) == 0 {
		if cycle := g.cycle(); len(cycle) > 0 {
			issues = append(issues, fmt.Sprintf("dependency cycle: %v", cycle))
		}
	}
	if len(issues) == 0 {
		for _, stage := range g.stages {
			ancestors := g.Ancestors(stage.Name)
			for _, ref := range stage.References() {
				if ref.IsInit() {
					if !inits[ref.Name] {
						issues = append(issues, fmt.Sprintf("stage %s: %s references unknown init parameter", stage.Name, ref.Expr))
					}
					continue
				}
				source, ok := g.Stage(ref.Stage())
				if !ok || !ancestors[source.Name] {
					issues = append(issues, fmt.Sprintf("stage %s: %s references a stage that is not an ancestor", stage.Name, ref.Expr))
					continue
				}
				if !source.HasOutput(ref.Name) {
					issues = append(issues, fmt.Sprintf("stage %s: %s references undeclared output", stage.Name, ref.Expr))
				}
			}
		}
	}
	if len(issues) > 0 {
		return &types.GraphError{Issues: issues}
	}
	return nil
}

// cycle returns one dependency cycle or nil, using white/grey/black DFS colouring.
func (g *Graph) cycle() []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	colour := make(map[string]int, len(g.stages))
	var path []string
	var found []string
	var visit func(name string) bool
	visit = func(name string) bool {
		colour[name] = grey
		path = append(path, name)
		for _, dep := range g.Dependencies(name) {
			switch colour[dep] {
			case grey:
				for i, candidate := range path {
					if candidate == dep {
						found = append(append([]string{}, path[i:]...), dep)
						break
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colour[name] = black
		return false
	}
	for _, stage := range g.stages {
		if colour[stage.Name] == white && visit(stage.Name) {
			return found
		}
	}
	return nil
}

// TopologicalOrder lazily yields stage names so that every stage follows its
// dependencies; independent stages come out in declaration order. On a cyclic
// graph the sequence stops before the first stage on a cycle.
func (g *Graph) TopologicalOrder() iter.Seq[string] {
	return func(yield func(string) bool) {
		indegree := make([]int, len(g.stages))
		for i, stage := range g.stages {
			for _, dep := range stage.DependsOn {
				if _, ok := g.index[dep]; ok {
					indegree[i]++
				}
			}
		}
		emitted := make([]bool, len(g.stages))
		for {
			next := -1
			for i := range g.stages {
				if !emitted[i] && indegree[i] == 0 {
					next = i
					break
				}
			}
			if next == -1 {
				return
			}
			emitted[next] = true
			name := g.stages[next].Name
			if !yield(name) {
				return
			}
			for i, stage := range g.stages {
				if !emitted[i] && stage.DependsOnStage(name) {
					indegree[i]--
				}
			}
		}
	}
}

func contains(items []string, item string) bool {
	for _, candidate := range items {
		if candidate == item {
			return true
		}
	}
	return false
}
