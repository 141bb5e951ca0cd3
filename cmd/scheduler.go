package cmd

import (
	"fmt"

	"github.com/OpenMDAO/qsubrun/internal/config"
	"github.com/OpenMDAO/qsubrun/internal/utils"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:     "scheduler",
	Aliases: []string{"sched"},
	Short:   "Display scheduler information",
	Long: `Display information about the qsub used for submission.

Shows the binary path, the SGE release it reports, and whether qsubrun is
running inside an SGE job.`,
	Example: `  qsubrun scheduler           # Show scheduler information
  qsubrun sched              # Short alias`,
	Run: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()

	sched, err := activeSubmitter()
	if err != nil {
		utils.PrintMessage("Scheduler Status: %s", utils.StyleError("Not Found"))
		utils.PrintMessage("")
		utils.PrintMessage("qsub (%s) was not found. Set qsub_bin or use --qsub.", config.Global.QsubBin)
		return
	}

	info := sched.GetInfo()

	fmt.Fprintln(out, utils.StyleTitle("Scheduler Information:"))
	fmt.Fprintf(out, "  Type:      %s\n", utils.StyleInfo(info.Type))
	fmt.Fprintf(out, "  Binary:    %s\n", utils.StylePath(info.Binary))
	if info.Version != "" {
		fmt.Fprintf(out, "  Version:   %s\n", utils.StyleNumber(info.Version))
	}

	switch {
	case info.InJob:
		fmt.Fprintf(out, "  Status:    %s (inside job)\n", utils.StyleWarning("Available"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "You are currently inside an SGE job (detected via JOB_ID).")
		fmt.Fprintln(out, "Jobs submitted from here are queued as independent jobs.")
	case info.Available:
		fmt.Fprintf(out, "  Status:    %s\n", utils.StyleSuccess("Available"))
	default:
		fmt.Fprintf(out, "  Status:    %s\n", utils.StyleError("Unavailable"))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.StyleTitle("Job File Settings:"))
	fmt.Fprintf(out, "  Parallel Env: %s\n", utils.StyleName(config.Global.ParallelEnv))
	fmt.Fprintf(out, "  MPI Launcher: %s\n", utils.StylePath(config.Global.MPILauncher))
	fmt.Fprintf(out, "  Shell:        %s\n", utils.StylePath(config.Global.Shell))
}
