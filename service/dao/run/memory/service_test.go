package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv := New()
	workflow := &model.Workflow{Name: "h2o", Stages: []*graph.Stage{{Name: "gs", Engine: "nwchem"}}}
	run := execution.NewRun("run1", workflow, nil)
	require.NoError(t, srv.Save(ctx, run))

	run.Jobs["gs"].State = execution.JobStateReady
	loaded, err := srv.Load(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, execution.JobStatePending, loaded.Jobs["gs"].State, "store keeps its own copy")

	loaded.Jobs["gs"].State = execution.JobStateFailed
	again, err := srv.Load(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, execution.JobStatePending, again.Jobs["gs"].State, "loaded runs are copies")

	runs, err := srv.List(ctx, dao.NewParameter("Workflow", "h2o"))
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	runs, err = srv.List(ctx, dao.NewParameter("Workflow", "co2"))
	require.NoError(t, err)
	assert.Empty(t, runs)

	stale, err := srv.Load(ctx, "run1")
	require.NoError(t, err)
	require.NoError(t, srv.Save(ctx, again))
	assert.Equal(t, 2, again.Version)
	assert.True(t, errors.Is(srv.Save(ctx, stale), dao.ErrConflict))
	assert.Equal(t, 1, stale.Version)

	assert.True(t, errors.Is(srv.Save(ctx, nil), dao.ErrNilEntity))
	require.NoError(t, srv.Delete(ctx, "run1"))
	_, err = srv.Load(ctx, "run1")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}
