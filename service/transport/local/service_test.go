package local

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/gosh/runner"
)

type fakeRunner struct {
	commands []string
	outputs  []string
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, command string, options ...runner.Option) (string, int, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", -1, f.err
	}
	output := ""
	if len(f.outputs) > 0 {
		output, f.outputs = f.outputs[0], f.outputs[1:]
	}
	return output, 0, nil
}

func (f *fakeRunner) Close() error { return nil }

func TestService(t *testing.T) {
	ctx := context.Background()
	wd := workdir.New(afs.New())
	fake := &fakeRunner{outputs: []string{"999\n", "done=0\n", ""}}
	srv := New(wd, WithRunner(fake), WithMpirun("mpiexec"))
	job := &transport.Target{RunID: "run1", Stage: "gs", JobID: "j1", WorkDir: "mem://localhost/local/run1/gs"}

	require.NoError(t, srv.StageIn(ctx, job))
	handle, err := srv.Execute(ctx, job, &engine.LaunchSpec{Command: "nwchem", Args: []string{"gs.nwi"}, Procs: 2})
	require.NoError(t, err)
	assert.Equal(t, "999", handle.ID)
	assert.Equal(t, "local", handle.Host)
	assert.Equal(t, "/local/run1/gs", handle.Dir)

	script, err := wd.Read(ctx, job.WorkDir, transport.ScriptFile)
	require.NoError(t, err)
	assert.Contains(t, string(script), "mpiexec -np 2 nwchem gs.nwi")

	status, err := srv.Poll(ctx, job, handle)
	require.NoError(t, err)
	assert.True(t, status.Done)
	require.NoError(t, srv.StageOut(ctx, job))
	require.NoError(t, srv.Cancel(ctx, job, handle))
	assert.Contains(t, fake.commands[2], "kill -TERM '999'")
	assert.NoError(t, srv.Close())
}

func TestService_Shell(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	ctx := context.Background()
	dir := t.TempDir()
	wd := workdir.New(afs.New())
	srv := New(wd, WithRunner(&fakeRunner{err: errors.New("shell exited")}))
	defer srv.Close()
	job := &transport.Target{RunID: "run1", Stage: "gs", JobID: "j1", WorkDir: "file://" + filepath.ToSlash(filepath.Join(dir, "run1", "gs"))}

	_, err := srv.Poll(ctx, job, &transport.Handle{ID: "1", Dir: dir})
	assert.True(t, types.IsTransient(err))

	handle, err := srv.Execute(ctx, job, &engine.LaunchSpec{Command: "echo", Args: []string{"hello"}, Stdout: "gs.out"})
	require.NoError(t, err, "failed session is replaced")
	var status *transport.Status
	assert.Eventually(t, func() bool {
		status, err = srv.Poll(ctx, job, handle)
		return err == nil && status.Done
	}, 10*time.Second, 20*time.Millisecond)
	require.NotNil(t, status)
	assert.Equal(t, 0, status.ExitCode)

	orphan := &transport.Handle{ID: "999999", Dir: filepath.Join(dir, "run1", "removed")}
	status, err = srv.Poll(ctx, job, orphan)
	require.NoError(t, err)
	assert.True(t, status.Missing)

	status, err = srv.Poll(ctx, job, handle)
	require.NoError(t, err, "session survives a missing directory")
	assert.True(t, status.Done)
}
