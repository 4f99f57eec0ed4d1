package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/viant/chemflow/internal/clock"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/gosh/runner"
)

// Commander issues job control commands through a shell runner. A runner
// failure marks the commander broken; transports replace broken sessions.
type Commander struct {
	runner    Runner
	host      string
	scheduler Scheduler
	timeout   time.Duration
	broken    atomic.Bool
}

// Broken returns true once the underlying shell session failed
func (c *Commander) Broken() bool {
	return c.broken.Load()
}

func (c *Commander) run(ctx context.Context, op, command string) (string, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", types.NewTransientError(op, c.host, context.DeadlineExceeded)
	}
	started := time.Now()
	output, status, err := c.runner.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if err != nil {
		c.broken.Store(true)
	}
	if err == nil && time.Since(started) > timeout {
		err = fmt.Errorf("command timed out after %s", time.Since(started))
	}
	if err != nil {
		return output, types.NewTransientError(op, c.host, err)
	}
	if status != 0 {
		return output, types.NewTransientError(op, c.host, fmt.Errorf("exit status %d: %s", status, strings.TrimSpace(output)))
	}
	return output, nil
}

// Reset replaces dir with an empty directory
func (c *Commander) Reset(ctx context.Context, dir string) error {
	if !strings.HasPrefix(dir, "/") || strings.Trim(dir, "/") == "" {
		return fmt.Errorf("refusing to reset job directory %q", dir)
	}
	_, err := c.run(ctx, "reset", "rm -rf "+quote(dir)+" && mkdir -p "+quote(dir))
	return err
}

// Submit launches the job script in dir and returns its handle
func (c *Commander) Submit(ctx context.Context, name, dir string) (*Handle, error) {
	var command string
	switch c.scheduler {
	case SchedulerPBS:
		command = fmt.Sprintf("cd %s && rm -f %s %s && qsub -N %s %s", quote(dir), DoneMarker, ExitCodeFile, quote(name), ScriptFile)
	case SchedulerSLURM:
		command = fmt.Sprintf("cd %s && rm -f %s %s && sbatch --parsable %s", quote(dir), DoneMarker, ExitCodeFile, ScriptFile)
	default:
		command = fmt.Sprintf("cd %s && rm -f %s %s && { nohup bash %s > %s 2>&1 < /dev/null & echo $!; }", quote(dir), DoneMarker, ExitCodeFile, ScriptFile, ScriptOutput)
	}
	output, err := c.run(ctx, "execute", command)
	if err != nil {
		return nil, err
	}
	id, err := ParseJobID(output)
	if err != nil {
		return nil, types.NewTransientError("execute", c.host, err)
	}
	return &Handle{ID: id, Scheduler: string(c.scheduler), Host: c.host, Dir: dir, SubmittedAt: clock.Now()}, nil
}

// Poll checks the completion marker, then whether the job is still alive.
// The check runs in a subshell so the session keeps its working directory.
func (c *Commander) Poll(ctx context.Context, handle *Handle) (*Status, error) {
	done := fmt.Sprintf(`[ -f %s ] && echo "done=$(cat %s 2>/dev/null || echo 255)"`, DoneMarker, ExitCodeFile)
	command := fmt.Sprintf(`(if [ ! -d %s ]; then echo missing; elif cd %s; then if [ -f %s ]; then %s; elif %s; then echo alive; else %s || echo missing; fi; else echo missing; fi)`,
		quote(handle.Dir), quote(handle.Dir), DoneMarker, done, c.alive(handle), done)
	output, err := c.run(ctx, "poll", command)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(output)
	if err != nil {
		return nil, types.NewTransientError("poll", c.host, err)
	}
	return status, nil
}

func (c *Commander) alive(handle *Handle) string {
	switch Scheduler(handle.Scheduler) {
	case SchedulerPBS:
		return "qstat " + quote(handle.ID) + " > /dev/null 2>&1"
	case SchedulerSLURM:
		return `[ -n "$(squeue -h -j ` + quote(handle.ID) + ` 2>/dev/null)" ]`
	}
	return "kill -0 " + quote(handle.ID) + " 2>/dev/null"
}

// Cancel terminates the job
func (c *Commander) Cancel(ctx context.Context, handle *Handle) error {
	var command string
	switch Scheduler(handle.Scheduler) {
	case SchedulerPBS:
		command = "qdel " + quote(handle.ID)
	case SchedulerSLURM:
		command = "scancel " + quote(handle.ID)
	default:
		command = "kill -TERM " + quote(handle.ID) + " 2>/dev/null || true"
	}
	_, err := c.run(ctx, "cancel", command)
	return err
}

// Close closes the underlying runner
func (c *Commander) Close() error {
	return c.runner.Close()
}

// ParseJobID extracts a pid or queue job id from submission output
func ParseJobID(output string) (string, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	id := strings.TrimSpace(lines[len(lines)-1])
	if idx := strings.Index(id, ";"); idx != -1 {
		id = id[:idx]
	}
	if id == "" || strings.ContainsAny(id, " \t") {
		return "", fmt.Errorf("unexpected submission output: %q", output)
	}
	return id, nil
}

// ParseStatus parses poll output
func ParseStatus(output string) (*Status, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	switch {
	case strings.HasPrefix(line, "done="):
		code, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "done=")))
		if err != nil {
			return nil, fmt.Errorf("invalid exit code: %q", line)
		}
		return &Status{Done: true, ExitCode: code}, nil
	case line == "alive":
		return &Status{Running: true}, nil
	case line == "missing":
		return &Status{Missing: true, Detail: "job is neither running nor finished"}, nil
	}
	return nil, fmt.Errorf("unexpected poll output: %q", output)
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// NewCommander creates a commander; timeout bounds every command
func NewCommander(runner Runner, host string, scheduler Scheduler, timeout time.Duration) *Commander {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if scheduler == "" {
		scheduler = SchedulerNone
	}
	return &Commander{runner: runner, host: host, scheduler: scheduler, timeout: timeout}
}

// NewConnectError reports a failure to open a shell session
func NewConnectError(host string, err error) error {
	return types.NewTransientError("connect", host, err)
}
