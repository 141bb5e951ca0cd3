package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/utils"
)

// SgeScheduler submits job files with Sun Grid Engine's qsub
type SgeScheduler struct {
	qsubBin string
}

// NewSgeScheduler creates a new SGE scheduler instance using qsub from PATH
func NewSgeScheduler() (*SgeScheduler, error) {
	return newSgeSchedulerWithBinary("")
}

// NewSgeSchedulerWithBinary creates an SGE scheduler using an explicit qsub path
func NewSgeSchedulerWithBinary(qsubBin string) (*SgeScheduler, error) {
	return newSgeSchedulerWithBinary(qsubBin)
}

func newSgeSchedulerWithBinary(qsubBin string) (*SgeScheduler, error) {
	binPath := qsubBin
	if binPath == "" || !strings.ContainsRune(binPath, filepath.Separator) {
		name := binPath
		if name == "" {
			name = "qsub"
		}
		var err error
		binPath, err = exec.LookPath(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
	} else {
		if absPath, err := filepath.Abs(binPath); err == nil {
			binPath = absPath
		}
		info, err := os.Stat(binPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrSchedulerNotFound, binPath)
		}
	}

	return &SgeScheduler{qsubBin: binPath}, nil
}

// Binary returns the qsub path in use
func (s *SgeScheduler) Binary() string {
	return s.qsubBin
}

// GetInfo returns information about the SGE scheduler
func (s *SgeScheduler) GetInfo() *SchedulerInfo {
	info := &SchedulerInfo{
		Type:      string(SchedulerSGE),
		Binary:    s.qsubBin,
		InJob:     IsInsideJob(),
		Available: s.qsubBin != "",
	}
	if version, err := s.getVersion(); err == nil {
		info.Version = version
	}
	return info
}

// getVersion returns the first line of `qsub -help`, which names the SGE release
// (e.g. "SGE 8.1.9" or "GE 6.2u5").
func (s *SgeScheduler) getVersion() (string, error) {
	// qsub -help exits non-zero on some releases while still printing the banner
	output, _ := exec.Command(s.qsubBin, "-help").CombinedOutput()
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if line == "" {
		return "", fmt.Errorf("no version output from %s", s.qsubBin)
	}
	return strings.TrimSpace(line), nil
}

// Submit runs qsub on the job file. The job file is passed as-is: every
// option lives in its #$ directives.
func (s *SgeScheduler) Submit(ctx context.Context, scriptPath string) (*SubmitResult, error) {
	arg := scriptArg(scriptPath)
	utils.PrintDebug("Executing: %s", utils.StyleCommand(s.qsubBin+" "+arg))

	// -cwd binds the job to the directory qsub runs in, so keep ours
	cmd := exec.CommandContext(ctx, s.qsubBin, arg)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, NewSubmissionError(string(SchedulerSGE), filepath.Base(scriptPath), string(output), err)
	}

	result := &SubmitResult{
		JobID:  ParseJobID(string(output)),
		Output: strings.TrimSpace(string(output)),
	}
	if result.JobID == "" {
		utils.PrintDebug("%v: %s", ErrJobIDParseFailed, result.Output)
	}
	return result, nil
}

// scriptArg keeps a relative job file path from being parsed as a qsub option.
func scriptArg(scriptPath string) string {
	if strings.HasPrefix(scriptPath, "-") {
		return "." + string(filepath.Separator) + scriptPath
	}
	return scriptPath
}
