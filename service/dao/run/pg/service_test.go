package pg

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
)

func TestService(t *testing.T) {
	dsn := os.Getenv("CHEMFLOW_TEST_DB_URL")
	if dsn == "" {
		t.Skip("CHEMFLOW_TEST_DB_URL not set")
	}
	ctx := context.Background()
	srv, err := New(ctx, dsn)
	require.NoError(t, err)
	defer srv.Close()

	workflow := &model.Workflow{Name: "pg", Stages: []*graph.Stage{{Name: "a", Engine: "shell"}}}
	run := execution.NewRun("pg-test-run", workflow, nil)
	_ = srv.Delete(ctx, run.ID)
	require.NoError(t, srv.Save(ctx, run))
	run.State = execution.RunStateFailed
	run.Touch()
	require.NoError(t, srv.Save(ctx, run))

	loaded, err := srv.Load(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.RunStateFailed, loaded.State)
	assert.Equal(t, 2, loaded.Version)

	stale := *loaded
	stale.Version = 1
	assert.True(t, errors.Is(srv.Save(ctx, &stale), dao.ErrConflict))

	runs, err := srv.List(ctx, dao.NewParameter("Workflow", "pg"))
	require.NoError(t, err)
	assert.NotEmpty(t, runs)

	require.NoError(t, srv.Delete(ctx, run.ID))
	_, err = srv.Load(ctx, run.ID)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}
