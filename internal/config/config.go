package config

import (
	"github.com/OpenMDAO/qsubrun/internal/jobfile"
)

const VERSION = "1.1.0"

// Config holds global application settings
type Config struct {
	Debug         bool
	SubmitJob     bool
	Version       string
	QsubBin       string
	MPILauncher   string
	ParallelEnv   string
	Shell         string
	JobDir        string
	DeleteJobFile bool
	Runners       []string
}

// Global holds the singleton configuration instance
var Global Config

// LoadDefaults resets Global to built-in defaults.
func LoadDefaults() {
	Global = Config{
		Debug:         false,
		SubmitJob:     true,
		Version:       VERSION,
		QsubBin:       "qsub",
		MPILauncher:   jobfile.DefaultMPILauncher,
		ParallelEnv:   jobfile.DefaultParallelEnv,
		Shell:         jobfile.DefaultShell,
		JobDir:        ".",
		DeleteJobFile: false,
		Runners:       append([]string(nil), jobfile.DefaultRunners...),
	}
}

// JobOptions returns the rendering options derived from Global.
func (c Config) JobOptions() jobfile.Options {
	return jobfile.Options{
		Shell:       c.Shell,
		ParallelEnv: c.ParallelEnv,
		MPILauncher: c.MPILauncher,
	}
}
