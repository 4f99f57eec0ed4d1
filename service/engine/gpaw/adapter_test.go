package gpaw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/service/workdir"
)

func TestScript(t *testing.T) {
	testCases := []struct {
		description string
		params      *Params
		expect      []string
	}{
		{
			description: "ground state",
			params:      &Params{Task: TaskGroundState, Geometry: "h2o.xyz"},
			expect:      []string{"read('geometry.xyz')", "mode='lcao'", "xc='PBE'", "calc.write('gs.gpw', mode='all')"},
		},
		{
			description: "delta kick along y",
			params:      &Params{Task: TaskRTTDDFT, Restart: "gs.gpw", Polarization: "Y", Strength: 0.001, Steps: 100},
			expect:      []string{"LCAOTDDFT('restart.gpw'", "absorption_kick([0.0, 0.001, 0.0])", "propagate(10, 100)"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			tc.params.Init()
			require.NoError(t, tc.params.Validate())
			script := Script(tc.params)
			for _, fragment := range tc.expect {
				assert.Contains(t, script, fragment)
			}
		})
	}
}

func TestAdapter_PrepareCollect(t *testing.T) {
	ctx := context.Background()
	wd := workdir.New(afs.New())
	adapter := New(wd, "")
	gsDir := "mem://localhost/gpaw/run1/gs"
	_, err := wd.Write(ctx, "mem://localhost/gpaw/data", "h2o.xyz", []byte("3\n\nO 0 0 0\nH 0 0.75 -0.47\nH 0 -0.75 -0.47\n"))
	require.NoError(t, err)

	stage := &graph.Stage{Name: "gs", Engine: Kind, Outputs: []string{"gpw", "energy"}}
	spec, err := adapter.Prepare(ctx, stage, map[string]interface{}{
		"task":     "ground_state",
		"geometry": "mem://localhost/gpaw/data/h2o.xyz",
	}, gsDir)
	require.NoError(t, err)
	assert.Equal(t, "python3 gs.py > gs.out 2>&1", spec.CommandLine(""))
	assert.ElementsMatch(t, []string{"gs.py", "geometry.xyz"}, spec.Files)

	_, err = adapter.Collect(ctx, stage, gsDir)
	assert.Error(t, err, "no log yet")

	_, err = wd.Write(ctx, gsDir, "gs.txt", []byte("Converged after 12 iterations.\nFermi level: -2.1\nTotal: 0.0\nExtrapolated:  -14.223\n"))
	require.NoError(t, err)
	_, err = wd.Write(ctx, gsDir, "gs.gpw", []byte("gpw"))
	require.NoError(t, err)
	outputs, err := adapter.Collect(ctx, stage, gsDir)
	require.NoError(t, err)
	assert.Equal(t, -14.223, outputs["energy"])
	assert.Equal(t, gsDir+"/gs.gpw", outputs["gpw"])

	tdDir := "mem://localhost/gpaw/run1/td"
	tdStage := &graph.Stage{Name: "td", Engine: Kind, Outputs: []string{"dipole"}}
	_, err = adapter.Prepare(ctx, tdStage, map[string]interface{}{"task": "rt_tddft", "restart": outputs["gpw"]}, tdDir)
	require.NoError(t, err)
	assert.True(t, wd.Exists(ctx, tdDir, "restart.gpw"))

	_, err = wd.Write(ctx, tdDir, "td.txt", []byte("Propagation\nTraceback (most recent call last)\n"))
	require.NoError(t, err)
	_, err = adapter.Collect(ctx, tdStage, tdDir)
	assert.Error(t, err)
}
