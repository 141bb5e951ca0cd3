// Package jobfile builds SGE job-control scripts that wrap a test command,
// optionally under an MPI launcher.
package jobfile

import (
	"fmt"
	"strings"
)

// Defaults for Options fields left empty.
const (
	DefaultShell       = "/bin/bash"
	DefaultParallelEnv = "ompi"
	DefaultMPILauncher = "mpirun"
)

// SlotsVar is the scheduler variable holding the granted slot count.
const SlotsVar = "$NSLOTS"

// Options controls site-specific parts of the rendered job file.
type Options struct {
	Shell       string // Shell for the -S directive
	ParallelEnv string // Parallel environment name for the -pe directive
	MPILauncher string // Launcher prefixed to the command in MPI form
}

func (o Options) withDefaults() Options {
	if o.Shell == "" {
		o.Shell = DefaultShell
	}
	if o.ParallelEnv == "" {
		o.ParallelEnv = DefaultParallelEnv
	}
	if o.MPILauncher == "" {
		o.MPILauncher = DefaultMPILauncher
	}
	return o
}

// JobFile is a rendered job-control script.
type JobFile struct {
	JobName  string   // Value of the -N directive
	FileName string   // Base file name, <jobName>-<pid>.job
	UseMPI   bool     // Whether the MPI form was chosen
	Lines    []string // Script lines in order
}

// Content returns the script text with a trailing newline.
func (j *JobFile) Content() string {
	return strings.Join(j.Lines, "\n") + "\n"
}

// CommandLine returns the last line of the script.
func (j *JobFile) CommandLine() string {
	if len(j.Lines) == 0 {
		return ""
	}
	return j.Lines[len(j.Lines)-1]
}

// Build renders the job file for inv. It does not touch the filesystem.
func Build(inv Invocation, opts Options) (*JobFile, error) {
	if inv.NumProcs < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidProcessCount, inv.NumProcs)
	}
	if strings.TrimSpace(inv.Command) == "" {
		return nil, ErrMissingCommand
	}
	if strings.ContainsAny(inv.Command, "\r\n") {
		return nil, fmt.Errorf("%w: command spans more than one line", ErrInvalidCommand)
	}
	opts = opts.withDefaults()

	name := JobName(inv.TestSpec)
	useMPI := inv.UseMPI()

	lines := []string{
		"#!/bin/bash",
		fmt.Sprintf("#$ -N %s", name),
		"#$ -cwd",
		fmt.Sprintf("#$ -S %s", opts.Shell),
		"#$ -V",
	}
	if useMPI {
		lines = append(lines, fmt.Sprintf("#$ -pe %s %d", opts.ParallelEnv, inv.NumProcs))
		lines = append(lines, fmt.Sprintf("%s -n %s %s", opts.MPILauncher, SlotsVar, inv.Command))
	} else {
		lines = append(lines, inv.Command)
	}

	return &JobFile{
		JobName:  name,
		FileName: FileName(name, inv.PID),
		UseMPI:   useMPI,
		Lines:    lines,
	}, nil
}

// FileName returns the job file name for a job name and process id.
func FileName(jobName string, pid int) string {
	return fmt.Sprintf("%s-%d.job", safeJobName(jobName), pid)
}

// safeJobName converts a job name to a filesystem-safe string by replacing "/" with "--".
func safeJobName(name string) string {
	return strings.ReplaceAll(name, "/", "--")
}
