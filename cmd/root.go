package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/config"
	"github.com/OpenMDAO/qsubrun/internal/jobfile"
	"github.com/OpenMDAO/qsubrun/internal/scheduler"
	"github.com/OpenMDAO/qsubrun/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	debugMode bool
	quietMode bool
	cfgFile   string
)

// Exit codes used by Execute
const (
	// Generic error code
	ExitCodeError = 1
	// Malformed invocation (missing command, bad process count)
	ExitCodeUsage = 2
)

// viperFlags maps config keys to the root flags that override them.
var viperFlags = map[string]string{
	"qsub_bin":        "qsub",
	"mpi_launcher":    "launcher",
	"parallel_env":    "pe",
	"shell":           "shell",
	"job_dir":         "job-dir",
	"delete_job_file": "delete",
}

var rootCmd = &cobra.Command{
	Use:   "qsubrun [flags] [-n count] <runner> [args...] <test-spec>",
	Short: "qsubrun: write an SGE job file for a test command and submit it with qsub",
	Long: `Write an SGE job file that runs a test command and submit it with qsub.

The command starts at the first argument naming a known runner (see the
'runners' config key); earlier positional arguments are ignored. The last
argument of the command is taken as the test specification, and the part
after its final '.' becomes the job name.

With -n greater than 1 the job requests that many slots from the parallel
environment and the command runs under the MPI launcher with $NSLOTS.`,
	Example: `  qsubrun pytest mysuite.TestCase            # serial job named TestCase
  qsubrun -n 4 testflo pkg/test_a.py:Case.test_x # 4-slot MPI job named test_x
  qsubrun -n 2 --command "python run.py sweep.Big" --dry-run
  qsubrun -n 8 -- ./run_case.sh cases.Large`,
	Version:       config.VERSION,
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,

	// Flags are parsed by parseRootFlags so unknown ones cannot eat the runner
	DisableFlagParsing: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var dropped []string
		if !cmd.HasParent() {
			var err error
			if dropped, err = parseRootFlags(cmd, args); err != nil {
				return err
			}
		}

		utils.DebugMode = debugMode
		utils.QuietMode = quietMode
		if len(dropped) > 0 {
			utils.PrintDebug("Ignoring unknown flags: %s", strings.Join(dropped, " "))
		}

		// Step 1: Load defaults
		config.LoadDefaults()

		// Step 2: Bind command-line flags (highest priority)
		for key, name := range viperFlags {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := viper.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}

		// Step 3: Read config file and environment
		if err := config.InitViper(cfgFile); err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			utils.PrintDebug("Using config file: %s", utils.StylePath(used))
		}
		if msg := config.CheckConfigVersion(); msg != "" {
			utils.PrintWarning("%s", msg)
		}

		// Step 4: Load values from Viper into Global config
		config.LoadFromViper()
		config.Global.Debug = debugMode

		if debugMode {
			utils.PrintDebug("qsubrun Version: %s", utils.StyleInfo(config.VERSION))
			utils.PrintDebug("qsub Binary: %s", config.Global.QsubBin)
			utils.PrintDebug("MPI Launcher: %s", config.Global.MPILauncher)
			utils.PrintDebug("Parallel Environment: %s", config.Global.ParallelEnv)
			utils.PrintDebug("Job Directory: %s", config.Global.JobDir)
			utils.PrintDebug("Runners: %s", strings.Join(config.Global.Runners, ", "))
		}

		return nil
	},
	RunE: runSubmit,
}

// parseRootFlags parses the flags in front of the wrapped command and
// returns the unknown flags it skipped.
func parseRootFlags(cmd *cobra.Command, args []string) ([]string, error) {
	known, dropped := dropUnknownFlags(cmd.Flags(), args)
	if err := cmd.Flags().Parse(known); err != nil {
		return nil, fmt.Errorf("%w: %v", jobfile.ErrInvalidFlag, err)
	}
	return dropped, nil
}

// dropUnknownFlags removes unknown flags ahead of the first positional
// argument, one token each. Known flags keep their values. The first
// positional argument, or "--", and everything after it are kept as is.
func dropUnknownFlags(fs *pflag.FlagSet, args []string) (kept, dropped []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" || arg == "-" || !strings.HasPrefix(arg, "-") {
			return append(kept, args[i:]...), dropped
		}

		flag, inline := lookupFlagArg(fs, arg)
		if flag == nil {
			dropped = append(dropped, arg)
			continue
		}
		kept = append(kept, arg)
		if !inline && flag.NoOptDefVal == "" && i+1 < len(args) {
			i++
			kept = append(kept, args[i])
		}
	}
	return kept, dropped
}

// lookupFlagArg returns the flag a token names and whether the token
// already carries its value ("--pe=orte", "-n4").
func lookupFlagArg(fs *pflag.FlagSet, arg string) (*pflag.Flag, bool) {
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		name, _, hasValue := strings.Cut(name, "=")
		return fs.Lookup(name), hasValue
	}
	return fs.ShorthandLookup(arg[1:2]), len(arg) > 2
}

// Execute runs the root command and exits with a status matching the failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(exitCodeFor(err))
	}
}

// reportError prints err for the user. Scheduler output is shown verbatim.
func reportError(err error) {
	var se *scheduler.SubmissionError
	if errors.As(err, &se) {
		if out := strings.TrimSpace(se.Output); out != "" {
			fmt.Fprintln(os.Stderr, out)
		}
		utils.PrintError("%s submission of %s failed: %v", se.Scheduler, se.JobName, se.Err)
		return
	}

	utils.PrintError("%v", err)
	if jobfile.IsUsageError(err) {
		fmt.Fprint(os.Stderr, rootCmd.UsageString())
	}
}

// exitCodeFor maps an error to the process exit status. A failed qsub
// propagates its own exit status.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := scheduler.ExitCode(err); ok && code > 0 {
		return code
	}
	if jobfile.IsUsageError(err) {
		return ExitCodeUsage
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational messages")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: search ~/.config/qsubrun, ~/.qsubrun, /etc/qsubrun, .)")

	registerSubmitFlags(rootCmd)

	// Everything after the first positional argument belongs to the wrapped command
	rootCmd.Flags().SetInterspersed(false)
}
