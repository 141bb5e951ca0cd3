// Package scheduler submits job files to a qsub-style batch scheduler
package scheduler

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// SchedulerType represents the type of job scheduler
type SchedulerType string

const (
	SchedulerUnknown SchedulerType = ""
	SchedulerSGE     SchedulerType = "SGE"
)

// SchedulerInfo holds information about the detected scheduler
type SchedulerInfo struct {
	Type      string // Scheduler type (e.g., "SGE")
	Binary    string // Path to the submit binary (e.g., "/opt/sge/bin/qsub")
	Version   string // Scheduler version line (if available)
	InJob     bool   // Whether we're currently inside a scheduled job
	Available bool   // Whether the submit binary can be used
}

// SubmitResult is what the scheduler reported for an accepted job
type SubmitResult struct {
	JobID  string // Job ID parsed from the scheduler output (may be empty)
	Output string // Raw scheduler output
}

// Submitter hands a job file to the scheduler.
//
// Submit is not retried by callers: a job that was accepted but reported
// as failed would otherwise be queued twice.
type Submitter interface {
	// Submit submits the job file at scriptPath
	Submit(ctx context.Context, scriptPath string) (*SubmitResult, error)

	// GetInfo returns information about the scheduler
	GetInfo() *SchedulerInfo
}

var (
	// "Your job 12345 ("TestCase") has been submitted"
	sgeJobIDRe = regexp.MustCompile(`(?m)^Your job(?:-array)? (\d+)`)
	// qsub -terse prints the bare ID
	terseJobIDRe = regexp.MustCompile(`^(\d+)(?:\.\S*)?$`)
)

// ParseJobID extracts the job ID from qsub output.
// Returns "" when the output does not contain one.
func ParseJobID(output string) string {
	if m := sgeJobIDRe.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	trimmed := strings.TrimSpace(output)
	if m := terseJobIDRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return ""
}

// DetectScheduler returns an SGE scheduler for preferredBin, or for qsub
// found on PATH when preferredBin is empty.
func DetectScheduler(preferredBin string) (Submitter, error) {
	if preferredBin != "" {
		return NewSgeSchedulerWithBinary(preferredBin)
	}
	return NewSgeScheduler()
}

// DetectType returns the type of scheduler available on the system without initializing it.
func DetectType() SchedulerType {
	if _, err := exec.LookPath("qsub"); err == nil {
		return SchedulerSGE
	}
	return SchedulerUnknown
}

// IsInsideJob checks if we're currently running inside an SGE job.
func IsInsideJob() bool {
	_, hasJobID := os.LookupEnv("JOB_ID")
	_, hasWorkDir := os.LookupEnv("SGE_O_WORKDIR")
	return hasJobID && hasWorkDir
}
