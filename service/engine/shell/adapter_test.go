package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/workdir"
)

func TestAdapter_Prepare(t *testing.T) {
	ctx := context.Background()
	wd := workdir.New(afs.New())
	adapter := New(wd)
	dir := "mem://localhost/shell/run1/spectrum"
	stage := &graph.Stage{Name: "spectrum", Engine: Kind}

	spec, err := adapter.Prepare(ctx, stage, map[string]interface{}{
		"command":  "python3 spectrum.py $SOURCE",
		"source":   "/runs/run1/td/td.nwo",
		"damping":  0.1,
		"axes":     []interface{}{"x", "y"},
		"my-label": "it's",
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, "bash run.sh > stdout.log 2>&1", spec.CommandLine(""))
	assert.Equal(t, "0.1", spec.Env["DAMPING"])
	assert.Equal(t, `["x","y"]`, spec.Env["AXES"])

	script, err := wd.Read(ctx, dir, "run.sh")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\nset -e\n"+
		"export AXES='[\"x\",\"y\"]'\n"+
		"export DAMPING=0.1\n"+
		"export MY_LABEL='it'\"'\"'s'\n"+
		"export SOURCE=/runs/run1/td/td.nwo\n"+
		"python3 spectrum.py $SOURCE\n", string(script))

	_, err = adapter.Prepare(ctx, stage, map[string]interface{}{"source": "x"}, dir)
	assert.Error(t, err)
}

func TestAdapter_Collect(t *testing.T) {
	ctx := context.Background()
	wd := workdir.New(afs.New())
	adapter := New(wd)

	testCases := []struct {
		description string
		dir         string
		files       map[string]string
		outputs     []string
		expect      map[string]interface{}
		expectKind  string
	}{
		{
			description: "outputs.json",
			dir:         "mem://localhost/shell/collect/json",
			files:       map[string]string{"outputs.json": `{"x": 5, "label": "h2o"}`},
			outputs:     []string{"x"},
			expect:      map[string]interface{}{"x": float64(5), "label": "h2o"},
		},
		{
			description: "declared output file",
			dir:         "mem://localhost/shell/collect/file",
			files:       map[string]string{"spectrum.dat": "0 0\n"},
			outputs:     []string{"spectrum.dat"},
			expect:      map[string]interface{}{"spectrum.dat": "mem://localhost/shell/collect/file/spectrum.dat"},
		},
		{
			description: "malformed outputs.json",
			dir:         "mem://localhost/shell/collect/malformed",
			files:       map[string]string{"outputs.json": `{"x":`},
			expectKind:  types.KindEngine,
		},
		{
			description: "missing declared output",
			dir:         "mem://localhost/shell/collect/missing",
			files:       map[string]string{"stdout.log": "done\n"},
			outputs:     []string{"x"},
			expectKind:  types.KindEngine,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			for name, content := range tc.files {
				_, err := wd.Write(ctx, tc.dir, name, []byte(content))
				require.NoError(t, err)
			}
			outputs, err := adapter.Collect(ctx, &graph.Stage{Name: "s", Engine: Kind, Outputs: tc.outputs}, tc.dir)
			if tc.expectKind != "" {
				assert.Equal(t, tc.expectKind, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			for k, v := range tc.expect {
				assert.Equal(t, v, outputs[k], k)
			}
		})
	}
}
