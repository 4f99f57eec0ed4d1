package transport

import (
	"sort"
	"strconv"
	"strings"

	"github.com/viant/chemflow/service/engine"
)

// Scheduler is the batch system a host submits jobs through
type Scheduler string

const (
	SchedulerNone  Scheduler = "none"
	SchedulerPBS   Scheduler = "pbs"
	SchedulerSLURM Scheduler = "slurm"

	ScriptFile   = "job.sh"
	ScriptOutput = "job.out"
	DoneMarker   = "Done"
	ExitCodeFile = ".exitcode"
)

// Script renders a job script
type Script struct {
	Name      string
	Dir       string
	Command   string
	Scheduler Scheduler
	Queue     string
	Walltime  string
	Nodes     int
	Procs     int
	Modules   []string
	Env       map[string]string
}

// NewScript creates a job script running spec in dir
func NewScript(name, dir string, spec *engine.LaunchSpec, host *Host, mpirun string) *Script {
	ret := &Script{
		Name:      name,
		Dir:       dir,
		Scheduler: SchedulerNone,
		Procs:     spec.Procs,
		Env:       spec.Env,
	}
	if host != nil {
		if host.Mpirun != "" {
			mpirun = host.Mpirun
		}
		ret.Scheduler = host.Scheduler
		ret.Queue = host.Queue
		ret.Walltime = host.Walltime
		ret.Nodes = host.Nodes
		ret.Modules = host.Modules
	}
	ret.Command = spec.CommandLine(mpirun)
	return ret
}

// Render returns the bash job script
func (s *Script) Render() string {
	builder := strings.Builder{}
	builder.WriteString("#!/bin/bash\n")
	procs := s.Procs
	if procs < 1 {
		procs = 1
	}
	nodes := s.Nodes
	if nodes < 1 {
		nodes = 1
	}
	switch s.Scheduler {
	case SchedulerPBS:
		builder.WriteString("#PBS -N " + s.Name + "\n")
		builder.WriteString("#PBS -l nodes=" + strconv.Itoa(nodes) + ":ppn=" + strconv.Itoa(procs) + "\n")
		if s.Walltime != "" {
			builder.WriteString("#PBS -l walltime=" + s.Walltime + "\n")
		}
		if s.Queue != "" {
			builder.WriteString("#PBS -q " + s.Queue + "\n")
		}
		builder.WriteString("#PBS -o " + ScriptOutput + "\n#PBS -j oe\n")
	case SchedulerSLURM:
		builder.WriteString("#SBATCH --job-name=" + s.Name + "\n")
		builder.WriteString("#SBATCH --nodes=" + strconv.Itoa(nodes) + "\n")
		builder.WriteString("#SBATCH --ntasks=" + strconv.Itoa(procs) + "\n")
		if s.Walltime != "" {
			builder.WriteString("#SBATCH --time=" + s.Walltime + "\n")
		}
		if s.Queue != "" {
			builder.WriteString("#SBATCH --partition=" + s.Queue + "\n")
		}
		builder.WriteString("#SBATCH --output=" + ScriptOutput + "\n")
	}
	if len(s.Modules) > 0 {
		builder.WriteString("\n")
		for _, module := range s.Modules {
			builder.WriteString("module load " + module + "\n")
		}
	}
	if len(s.Env) > 0 {
		keys := make([]string, 0, len(s.Env))
		for k := range s.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		builder.WriteString("\n")
		for _, k := range keys {
			builder.WriteString("export " + k + "=" + engine.Quote(s.Env[k]) + "\n")
		}
	}
	builder.WriteString("\ncd " + engine.Quote(s.Dir) + "\n")
	builder.WriteString(s.Command + "\n")
	builder.WriteString("echo $? > " + ExitCodeFile + "\n")
	builder.WriteString("touch " + DoneMarker + "\n")
	return builder.String()
}
