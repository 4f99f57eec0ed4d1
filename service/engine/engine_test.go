package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/model/types"
)

type testParams struct {
	Task  string  `json:"task"`
	Basis string  `json:"basis,omitempty"`
	Np    int     `json:"np,omitempty"`
	Conv  float64 `json:"conv,omitempty"`
}

type testAdapter struct{}

func (t *testAdapter) Kind() string { return "Test" }

func (t *testAdapter) Params() interface{} { return &testParams{} }

func (t *testAdapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*LaunchSpec, error) {
	return &LaunchSpec{Command: "true"}, nil
}

func (t *testAdapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	return nil, nil
}

type untypedAdapter struct{}

func (u *untypedAdapter) Kind() string { return "untyped" }

func (u *untypedAdapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*LaunchSpec, error) {
	return &LaunchSpec{Command: "true"}, nil
}

func (u *untypedAdapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(&testAdapter{})
	registry.Register(&untypedAdapter{})
	assert.Equal(t, []string{"test", "untyped"}, registry.Kinds())

	adapter, err := registry.Lookup("TEST")
	require.NoError(t, err)
	assert.Equal(t, "Test", adapter.Kind())
	_, err = registry.Lookup("vasp")
	assert.Error(t, err)

	assert.Equal(t, []string{"task", "basis", "np", "conv"}, registry.ParamNames("test"))
	assert.NoError(t, registry.CheckParams("test", []string{"task", "Basis"}))
	assert.Error(t, registry.CheckParams("test", []string{"task", "xc"}))
	assert.NoError(t, registry.CheckParams("untyped", []string{"anything"}))
}

func TestDecodeParams(t *testing.T) {
	params := &testParams{}
	err := DecodeParams(map[string]interface{}{"task": "ground_state", "np": 4, "conv": 1e-6}, params)
	require.NoError(t, err)
	assert.Equal(t, &testParams{Task: "ground_state", Np: 4, Conv: 1e-6}, params)
}

func TestLaunchSpec_CommandLine(t *testing.T) {
	testCases := []struct {
		description string
		spec        *LaunchSpec
		mpirun      string
		expect      string
	}{
		{description: "serial", spec: &LaunchSpec{Command: "nwchem", Args: []string{"gs.nwi"}, Stdout: "gs.nwo"}, expect: "nwchem gs.nwi > gs.nwo 2>&1"},
		{description: "single proc", spec: &LaunchSpec{Command: "octopus", Procs: 1}, expect: "octopus"},
		{description: "mpi", spec: &LaunchSpec{Command: "nwchem", Args: []string{"gs.nwi"}, Procs: 8}, mpirun: "/opt/mpi/bin/mpirun", expect: "/opt/mpi/bin/mpirun -np 8 nwchem gs.nwi"},
		{description: "quoted arg", spec: &LaunchSpec{Command: "echo", Args: []string{"a b"}}, expect: "echo 'a b'"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.spec.CommandLine(tc.mpirun))
		})
	}
}

func TestScan(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		marker      string
		ok          bool
	}{
		{description: "success", text: "Converged\nFermi level: 1\nTotal: 2", ok: true},
		{description: "missing success marker", text: "Converged\nTotal: 2", marker: "Fermi level:"},
		{description: "failure marker wins", text: "Converged\nFermi level:\nTotal:\nThere is an error", marker: "There is an error"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			marker, ok := Scan(tc.text, []string{"Converged", "Fermi level:", "Total:"}, []string{"There is an error"})
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.marker, marker)
		})
	}
}

func TestLastFloat(t *testing.T) {
	text := "Total DFT energy =   -75.1\nstep\nTotal DFT energy =   -76.419737926 \nend"
	value, ok := LastFloat(text, "Total DFT energy =")
	assert.True(t, ok)
	assert.Equal(t, -76.419737926, value)
	_, ok = LastFloat(text, "Dipole")
	assert.False(t, ok)
}

func TestCheckOutputs(t *testing.T) {
	stage := &graph.Stage{Name: "gs", Outputs: []string{"energy", "log"}}
	assert.NoError(t, CheckOutputs("nwchem", stage, "/w", map[string]interface{}{"energy": 1.0, "log": "/w/gs.nwo"}))
	err := CheckOutputs("nwchem", stage, "/w", map[string]interface{}{"log": "/w/gs.nwo"})
	assert.Equal(t, types.KindEngine, types.KindOf(err))
}
