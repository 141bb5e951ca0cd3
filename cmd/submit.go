package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/config"
	"github.com/OpenMDAO/qsubrun/internal/jobfile"
	"github.com/OpenMDAO/qsubrun/internal/scheduler"
	"github.com/OpenMDAO/qsubrun/internal/utils"
	"github.com/spf13/cobra"
)

// SubmitFlags holds the per-invocation flags of the root command
type SubmitFlags struct {
	NumProcs    int
	TestSpec    string
	Command     string
	Launcher    string
	ParallelEnv string
	Shell       string
	JobDir      string
	QsubBin     string
	Delete      bool
	DryRun      bool
}

var submitFlags SubmitFlags

// registerSubmitFlags registers the job flags on a cobra command
func registerSubmitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&submitFlags.NumProcs, "nprocs", "n", 1, "Number of processes; more than 1 submits an MPI job")
	f.StringVar(&submitFlags.TestSpec, "test-spec", "", "Test specification used for the job name (default: last command argument)")
	f.StringVarP(&submitFlags.Command, "command", "c", "", "Command string to run verbatim instead of positional arguments")
	f.StringVar(&submitFlags.Launcher, "launcher", jobfile.DefaultMPILauncher, "MPI launcher used when nprocs > 1")
	f.StringVar(&submitFlags.ParallelEnv, "pe", jobfile.DefaultParallelEnv, "SGE parallel environment for MPI jobs")
	f.StringVar(&submitFlags.Shell, "shell", jobfile.DefaultShell, "Shell for the job (-S directive)")
	f.StringVar(&submitFlags.JobDir, "job-dir", ".", "Directory the job file is written to")
	f.StringVar(&submitFlags.QsubBin, "qsub", "qsub", "qsub binary used for submission")
	f.BoolVar(&submitFlags.Delete, "delete", false, "Delete the job file after a successful submission")
	f.BoolVar(&submitFlags.DryRun, "dry-run", false, "Write and print the job file without submitting it")
	f.BoolVar(&submitFlags.DryRun, "local", false, "Alias for --dry-run")
}

// buildInvocation turns the parsed flags and positional arguments into an Invocation.
func buildInvocation(cmd *cobra.Command, args []string) (jobfile.Invocation, error) {
	var command, testSpec string

	if submitFlags.Command != "" {
		if len(args) > 0 {
			utils.PrintDebug("Ignoring positional arguments (--command given): %s", strings.Join(args, " "))
		}
		var err error
		command, testSpec, err = jobfile.CommandFromString(submitFlags.Command)
		if err != nil {
			return jobfile.Invocation{}, err
		}
	} else {
		tokens, skipped := jobfile.SplitCommand(args, config.Global.Runners)
		if len(skipped) > 0 {
			utils.PrintDebug("Skipping unrecognized arguments: %s", strings.Join(skipped, " "))
		}
		if len(tokens) == 0 {
			return jobfile.Invocation{}, jobfile.ErrMissingCommand
		}
		command = jobfile.CommandFromTokens(tokens)
		testSpec = jobfile.TestSpecFromTokens(tokens)
	}

	if cmd.Flags().Changed("test-spec") {
		testSpec = submitFlags.TestSpec
	}

	return jobfile.NewInvocation(submitFlags.NumProcs, command, testSpec, os.Getpid())
}

// activeSubmitter returns the registered submitter, detecting qsub on first use.
func activeSubmitter() (scheduler.Submitter, error) {
	if sched := scheduler.ActiveScheduler(); sched != nil {
		return sched, nil
	}
	sched, err := scheduler.DetectScheduler(config.Global.QsubBin)
	if err != nil {
		return nil, err
	}
	scheduler.SetActiveScheduler(sched)
	utils.PrintDebug("Scheduler initialized: %s", sched.GetInfo().Binary)
	return sched, nil
}

// runSubmit is the whole pipeline: parse, build, write, print, submit.
func runSubmit(cmd *cobra.Command, _ []string) error {
	if help, _ := cmd.Flags().GetBool("help"); help {
		return cmd.Help()
	}
	if version, _ := cmd.Flags().GetBool("version"); version {
		fmt.Fprintf(cmd.OutOrStdout(), "qsubrun version %s\n", config.VERSION)
		return nil
	}
	args := cmd.Flags().Args()

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	inv, err := buildInvocation(cmd, args)
	if err != nil {
		return err
	}
	utils.PrintDebug("Invocation: nprocs=%d spec=%q command=%q pid=%d", inv.NumProcs, inv.TestSpec, inv.Command, inv.PID)

	jf, err := jobfile.Build(inv, config.Global.JobOptions())
	if err != nil {
		return err
	}
	if jf.JobName == "" {
		utils.PrintWarning("No test specification given; the job name is empty")
	}

	scriptPath, err := jobfile.Write(config.Global.JobDir, jf)
	if err != nil {
		return err
	}

	// Always echo the job file so failures can be diagnosed by inspection
	fmt.Fprint(cmd.OutOrStdout(), jf.Content())

	if submitFlags.DryRun || !config.Global.SubmitJob {
		utils.PrintNote("Job submission disabled; job file kept at %s", utils.StylePath(scriptPath))
		return nil
	}

	sched, err := activeSubmitter()
	if err != nil {
		return err
	}
	if scheduler.IsInsideJob() {
		utils.PrintWarning("Submitting from inside an SGE job (JOB_ID=%s)", os.Getenv("JOB_ID"))
	}

	result, err := sched.Submit(cmd.Context(), scriptPath)
	if err != nil {
		// The job file stays for inspection regardless of delete_job_file
		return err
	}
	if result.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	}
	if result.JobID != "" {
		utils.PrintSuccess("Submitted %s as job %s", utils.StylePath(scriptPath), utils.StyleNumber(result.JobID))
	} else {
		utils.PrintSuccess("Submitted %s", utils.StylePath(scriptPath))
	}

	if config.Global.DeleteJobFile {
		if err := jobfile.Remove(scriptPath); err != nil {
			utils.PrintWarning("Failed to remove job file %s: %v", scriptPath, err)
		}
	}
	return nil
}
