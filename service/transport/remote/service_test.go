package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
	"github.com/viant/gosh/runner"
	"golang.org/x/crypto/ssh"
)

type fakeRunner struct {
	commands []string
	respond  func(command string) string
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, command string, options ...runner.Option) (string, int, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", -1, f.err
	}
	return f.respond(command), 0, nil
}

func (f *fakeRunner) Close() error { return nil }

type copyCall struct {
	source string
	dest   string
}

type fakeCopier struct {
	copies []copyCall
	err    error
}

func (f *fakeCopier) Copy(ctx context.Context, sourceURL, destURL string, options ...storage.Option) error {
	f.copies = append(f.copies, copyCall{source: sourceURL, dest: destURL})
	return f.err
}

func newService(copier *fakeCopier, fake *fakeRunner, hosts ...*transport.Host) *Service {
	connector := func(ctx context.Context, host *transport.Host) (transport.Runner, *ssh.ClientConfig, error) {
		return fake, &ssh.ClientConfig{User: "chem"}, nil
	}
	return New(hosts, workdir.New(afs.New()), WithCopier(copier), WithConnector(connector))
}

func target(jobID, stage string) *transport.Target {
	return &transport.Target{
		RunID:     "run1",
		Stage:     stage,
		JobID:     jobID,
		Host:      "hpc",
		WorkDir:   "mem://localhost/remote/run1/" + stage,
		RemoteDir: "/scratch/run1/" + stage,
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	copier := &fakeCopier{}
	fake := &fakeRunner{respond: func(command string) string {
		switch {
		case strings.Contains(command, "qsub"):
			return "101.pbs\n"
		case strings.Contains(command, "qstat"):
			return "alive\n"
		}
		return ""
	}}
	srv := newService(copier, fake, &transport.Host{Name: "hpc", Address: "hpc.example.org", Scheduler: transport.SchedulerPBS})
	job := target("j1", "gs")

	require.NoError(t, srv.StageIn(ctx, job))
	assert.Equal(t, "rm -rf '/scratch/run1/gs' && mkdir -p '/scratch/run1/gs'", fake.commands[0])
	assert.Equal(t, copyCall{source: job.WorkDir, dest: "scp://hpc.example.org:22/scratch/run1/gs"}, copier.copies[0])

	handle, err := srv.Execute(ctx, job, &engine.LaunchSpec{Command: "nwchem", Args: []string{"gs.nwi"}})
	require.NoError(t, err)
	assert.Equal(t, "101.pbs", handle.ID)
	assert.Equal(t, "/scratch/run1/gs", handle.Dir)
	assert.Equal(t, "scp://hpc.example.org:22/scratch/run1/gs/job.sh", copier.copies[1].dest)

	status, err := srv.Poll(ctx, job, handle)
	require.NoError(t, err)
	assert.True(t, status.Running)

	require.NoError(t, srv.StageOut(ctx, job))
	assert.Equal(t, copyCall{source: "scp://hpc.example.org:22/scratch/run1/gs", dest: job.WorkDir}, copier.copies[2])
	require.NoError(t, srv.Cancel(ctx, job, handle))
	assert.Equal(t, "qdel '101.pbs'", fake.commands[len(fake.commands)-1])
}

func TestService_HostCap(t *testing.T) {
	ctx := context.Background()
	pid := 0
	fake := &fakeRunner{respond: func(command string) string {
		if strings.Contains(command, "nohup") {
			pid++
			return []string{"", "201", "202"}[pid] + "\n"
		}
		return "done=0\n"
	}}
	srv := newService(&fakeCopier{}, fake, &transport.Host{Name: "hpc", MaxJobs: 1})
	spec := &engine.LaunchSpec{Command: "true"}

	first, err := srv.Execute(ctx, target("j1", "a"), spec)
	require.NoError(t, err)
	_, err = srv.Execute(ctx, target("j2", "b"), spec)
	assert.True(t, errors.Is(err, types.ErrHostBusy))

	status, err := srv.Poll(ctx, target("j1", "a"), first)
	require.NoError(t, err)
	assert.True(t, status.Done)

	second, err := srv.Execute(ctx, target("j2", "b"), spec)
	require.NoError(t, err, "slot released once the first job finished")
	assert.Equal(t, "202", second.ID)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRunner{respond: func(command string) string { return "" }}
	srv := newService(&fakeCopier{err: errors.New("scp: connection refused")}, fake, &transport.Host{Name: "hpc"})

	err := srv.StageIn(ctx, target("j1", "gs"))
	assert.True(t, types.IsTransient(err))

	job := target("j1", "gs")
	job.Host = "unknown"
	assert.Error(t, srv.StageIn(ctx, job))
}

func TestService_Reconnect(t *testing.T) {
	ctx := context.Background()
	dropped := &fakeRunner{err: errors.New("ssh: connection lost")}
	healthy := &fakeRunner{respond: func(command string) string { return "" }}
	var connects int
	connector := func(ctx context.Context, host *transport.Host) (transport.Runner, *ssh.ClientConfig, error) {
		connects++
		if connects == 1 {
			return dropped, &ssh.ClientConfig{}, nil
		}
		return healthy, &ssh.ClientConfig{}, nil
	}
	srv := New([]*transport.Host{{Name: "hpc"}}, workdir.New(afs.New()), WithCopier(&fakeCopier{}), WithConnector(connector))

	err := srv.StageIn(ctx, target("j1", "gs"))
	assert.True(t, types.IsTransient(err))
	require.NoError(t, srv.StageIn(ctx, target("j1", "gs")), "failed session is replaced")
	assert.Equal(t, 2, connects)
	assert.Len(t, healthy.commands, 1)

	require.NoError(t, srv.StageIn(ctx, target("j1", "gs")))
	assert.Equal(t, 2, connects, "healthy session is reused")
}
