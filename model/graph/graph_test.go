package graph

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/model/types"
)

func stage(name string, deps ...string) *Stage {
	return &Stage{Name: name, Engine: "shell", DependsOn: deps, Outputs: []string{"x"}}
}

func refParam(name, expr, stageName, output string) *state.Parameter {
	return &state.Parameter{Name: name, Kind: state.KindReference, Value: expr,
		References: []*state.Reference{state.NewOutputReference(expr, stageName, output)}}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	testCases := []struct {
		description string
		stages      []*Stage
		expected    []string
	}{
		{
			description: "independent stages keep declaration order",
			stages:      []*Stage{stage("c"), stage("a"), stage("b")},
			expected:    []string{"c", "a", "b"},
		},
		{
			description: "chain declared backwards",
			stages:      []*Stage{stage("spectrum", "td"), stage("td", "gs"), stage("gs")},
			expected:    []string{"gs", "td", "spectrum"},
		},
		{
			description: "diamond",
			stages:      []*Stage{stage("gs"), stage("left", "gs"), stage("right", "gs"), stage("join", "right", "left")},
			expected:    []string{"gs", "left", "right", "join"},
		},
		{
			description: "reference implies dependency",
			stages: []*Stage{
				{Name: "b", Engine: "shell", Params: state.Parameters{refParam("x", "${a.x}", "a", "x")}},
				stage("a"),
			},
			expected: []string{"a", "b"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			g := New(tc.stages...)
			assert.NoError(t, g.Validate())
			actual := slices.Collect(g.TopologicalOrder())
			assert.Equal(t, tc.expected, actual)
			position := map[string]int{}
			for i, name := range actual {
				position[name] = i
			}
			for _, s := range g.Stages() {
				for _, dep := range s.DependsOn {
					assert.Less(t, position[dep], position[s.Name])
				}
			}
		})
	}
}

func TestGraph_TopologicalOrder_Lazy(t *testing.T) {
	g := New(stage("a"), stage("b", "a"), stage("c", "b"))
	var visited []string
	for name := range g.TopologicalOrder() {
		visited = append(visited, name)
		if name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestGraph_Validate(t *testing.T) {
	testCases := []struct {
		description string
		stages      []*Stage
		init        []string
		issue       string
	}{
		{
			description: "cycle",
			stages:      []*Stage{stage("a", "c"), stage("b", "a"), stage("c", "b")},
			issue:       "dependency cycle",
		},
		{
			description: "self dependency",
			stages:      []*Stage{stage("a", "a")},
			issue:       "depends on itself",
		},
		{
			description: "unknown dependency",
			stages:      []*Stage{stage("a", "missing")},
			issue:       "unknown stage missing",
		},
		{
			description: "duplicate stage",
			stages:      []*Stage{stage("a"), stage("a")},
			issue:       "duplicate stage a",
		},
		{
			description: "undeclared output",
			stages: []*Stage{
				stage("a"),
				{Name: "b", Engine: "shell", Params: state.Parameters{refParam("y", "${a.y}", "a", "y")}},
			},
			issue: "undeclared output",
		},
		{
			description: "unknown init parameter",
			stages: []*Stage{
				{Name: "a", Engine: "shell", Params: state.Parameters{{Name: "g", Kind: state.KindReference, Value: "${geometry}",
					References: []*state.Reference{state.NewInitReference("${geometry}", "geometry")}}}},
			},
			issue: "unknown init parameter",
		},
		{
			description: "missing engine",
			stages:      []*Stage{{Name: "a"}},
			issue:       "engine is required",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			err := New(tc.stages...).Validate(tc.init...)
			var graphErr *types.GraphError
			assert.True(t, errors.As(err, &graphErr))
			assert.Contains(t, err.Error(), tc.issue)
		})
	}
}

func TestGraph_Validate_InitReference(t *testing.T) {
	g := New(&Stage{Name: "a", Engine: "shell", Params: state.Parameters{{Name: "g", Kind: state.KindReference, Value: "${geometry}",
		References: []*state.Reference{state.NewInitReference("${geometry}", "geometry")}}}})
	assert.NoError(t, g.Validate("geometry"))
}

func TestGraph_Relations(t *testing.T) {
	g := New(stage("gs"), stage("td", "gs"), stage("spec", "td"), stage("pop", "td"))
	assert.Equal(t, []string{"spec", "pop"}, g.Dependents("td"))
	assert.Equal(t, map[string]bool{"td": true, "gs": true}, g.Ancestors("spec"))
	_, ok := g.Stage("missing")
	assert.False(t, ok)
}
