package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/gosh/runner"
)

type fakeRunner struct {
	commands []string
	outputs  []string
	status   int
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
	return output, f.status, nil
}

func (f *fakeRunner) Close() error { return nil }

func TestScript_Render(t *testing.T) {
	spec := &engine.LaunchSpec{Command: "nwchem", Args: []string{"gs.nwi"}, Stdout: "gs.nwo", Procs: 4}
	testCases := []struct {
		description string
		host        *Host
		expect      []string
		absent      []string
	}{
		{
			description: "direct",
			expect:      []string{"#!/bin/bash\n", "cd /w/run1/gs\n", "mpirun -np 4 nwchem gs.nwi > gs.nwo 2>&1\n", "echo $? > .exitcode\ntouch Done\n"},
			absent:      []string{"#PBS", "#SBATCH", "module load"},
		},
		{
			description: "pbs with modules",
			host:        &Host{Name: "hpc", Scheduler: SchedulerPBS, Queue: "short", Walltime: "01:00:00", Modules: []string{"nwchem/7.2"}, Mpirun: "/opt/mpi/mpirun"},
			expect:      []string{"#PBS -N run1-gs\n", "#PBS -l nodes=1:ppn=4\n", "#PBS -q short\n", "#PBS -l walltime=01:00:00\n", "module load nwchem/7.2\n", "/opt/mpi/mpirun -np 4 nwchem"},
		},
		{
			description: "slurm",
			host:        &Host{Name: "hpc", Scheduler: SchedulerSLURM, Queue: "gpu"},
			expect:      []string{"#SBATCH --job-name=run1-gs\n", "#SBATCH --ntasks=4\n", "#SBATCH --partition=gpu\n"},
			absent:      []string{"#PBS"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			text := NewScript("run1-gs", "/w/run1/gs", spec, tc.host, "").Render()
			assert.True(t, strings.HasPrefix(text, "#!/bin/bash\n"))
			for _, fragment := range tc.expect {
				assert.Contains(t, text, fragment)
			}
			for _, fragment := range tc.absent {
				assert.NotContains(t, text, fragment)
			}
			assert.True(t, strings.HasSuffix(text, "touch Done\n"))
		})
	}
}

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		description string
		output      string
		expect      *Status
		expectErr   bool
	}{
		{description: "done", output: "done=0\n", expect: &Status{Done: true}},
		{description: "done non zero", output: "motd\ndone=3", expect: &Status{Done: true, ExitCode: 3}},
		{description: "alive", output: "alive", expect: &Status{Running: true}},
		{description: "missing", output: "missing\n", expect: &Status{Missing: true, Detail: "job is neither running nor finished"}},
		{description: "garbage", output: "bash: syntax error", expectErr: true},
		{description: "bad code", output: "done=x", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			status, err := ParseStatus(tc.output)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, status)
		})
	}
}

func TestParseJobID(t *testing.T) {
	testCases := []struct {
		description string
		output      string
		expect      string
		expectErr   bool
	}{
		{description: "pid", output: "12345\n", expect: "12345"},
		{description: "pbs", output: "4567.pbs-server\n", expect: "4567.pbs-server"},
		{description: "slurm parsable", output: "890;cluster", expect: "890"},
		{description: "empty", output: "  \n", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			id, err := ParseJobID(tc.output)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.Equal(t, tc.expect, id)
		})
	}
}

func TestCommander(t *testing.T) {
	ctx := context.Background()

	fake := &fakeRunner{outputs: []string{"4242\n", "alive\n", "done=1\n"}}
	commander := NewCommander(fake, "localhost", SchedulerNone, time.Second)
	handle, err := commander.Submit(ctx, "run1-gs", "/w/run1/gs")
	require.NoError(t, err)
	assert.Equal(t, "4242", handle.ID)
	assert.Equal(t, "none", handle.Scheduler)
	assert.Contains(t, fake.commands[0], "nohup bash job.sh")
	assert.Contains(t, fake.commands[0], "rm -f Done .exitcode")

	status, err := commander.Poll(ctx, handle)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Contains(t, fake.commands[1], "kill -0 '4242'")
	assert.NotContains(t, fake.commands[1], "exit", "poll never exits the session shell")
	assert.True(t, strings.HasPrefix(fake.commands[1], "("), "poll runs in a subshell")
	status, err = commander.Poll(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, &Status{Done: true, ExitCode: 1}, status, "engine exit code is not a transport error")

	require.NoError(t, commander.Reset(ctx, "/w/run1/gs"))
	assert.Equal(t, "rm -rf '/w/run1/gs' && mkdir -p '/w/run1/gs'", fake.commands[len(fake.commands)-1])
	assert.Error(t, commander.Reset(ctx, "/"))
	assert.Error(t, commander.Reset(ctx, "scratch"))

	slurm := &fakeRunner{outputs: []string{"77;c1\n"}}
	handle, err = NewCommander(slurm, "hpc", SchedulerSLURM, time.Second).Submit(ctx, "run1-td", "/w/run1/td")
	require.NoError(t, err)
	assert.Equal(t, "77", handle.ID)
	assert.Contains(t, slurm.commands[0], "sbatch --parsable job.sh")
	require.NoError(t, NewCommander(slurm, "hpc", SchedulerSLURM, time.Second).Cancel(ctx, handle))
	assert.Equal(t, "scancel '77'", slurm.commands[1])

	broken := &fakeRunner{err: errors.New("connection reset")}
	brokenCommander := NewCommander(broken, "hpc", SchedulerPBS, time.Second)
	_, err = brokenCommander.Submit(ctx, "run1-gs", "/w")
	assert.True(t, types.IsTransient(err))
	assert.True(t, brokenCommander.Broken(), "runner failure marks the session broken")

	failing := &fakeRunner{status: 2, outputs: []string{"qsub: unknown queue"}}
	failingCommander := NewCommander(failing, "hpc", SchedulerPBS, time.Second)
	_, err = failingCommander.Submit(ctx, "run1-gs", "/w")
	assert.True(t, types.IsTransient(err))
	assert.Contains(t, err.Error(), "unknown queue")
	assert.False(t, failingCommander.Broken(), "non-zero exit keeps the session")
}

func TestHost(t *testing.T) {
	host := &Host{Name: "hpc"}
	host.Init()
	assert.Equal(t, "hpc:22", host.Address)
	assert.Equal(t, SchedulerNone, host.Scheduler)
	assert.Equal(t, "/tmp/chemflow/run1/gs", host.JobDir("run1", "gs"))
	assert.NoError(t, host.Validate())
	assert.Error(t, (&Host{Name: "x", Scheduler: "lsf"}).Validate())
}
