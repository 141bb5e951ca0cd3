package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/config"
	"github.com/OpenMDAO/qsubrun/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	showPath  bool
	initForce bool
)

// effectiveConfig is the YAML view printed by 'config show'
type effectiveConfig struct {
	QsubBin       string   `yaml:"qsub_bin"`
	MPILauncher   string   `yaml:"mpi_launcher"`
	ParallelEnv   string   `yaml:"parallel_env"`
	Shell         string   `yaml:"shell"`
	JobDir        string   `yaml:"job_dir"`
	DeleteJobFile bool     `yaml:"delete_job_file"`
	SubmitJob     bool     `yaml:"submit_job"`
	Runners       []string `yaml:"runners"`
}

// configKeysCompletion returns config keys for shell completion
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.Keys, cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 1 {
		return configValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// configValueCompletion returns suggested values for a config key
func configValueCompletion(key string) []string {
	switch key {
	case "submit_job", "delete_job_file":
		return []string{"true", "false"}
	case "parallel_env":
		return []string{"ompi", "mpi", "orte", "smp"}
	case "mpi_launcher":
		return []string{"mpirun", "mpiexec"}
	case "shell":
		return []string{"/bin/bash", "/bin/sh"}
	default:
		return nil
	}
}

// getConfigEnvVars returns the environment variable name for every config key.
func getConfigEnvVars() []string {
	vars := make([]string, 0, len(config.Keys))
	for _, key := range config.Keys {
		vars = append(vars, config.EnvPrefix+"_"+strings.ToUpper(key))
	}
	sort.Strings(vars)
	return vars
}

func currentEffectiveConfig() effectiveConfig {
	g := config.Global
	return effectiveConfig{
		QsubBin:       g.QsubBin,
		MPILauncher:   g.MPILauncher,
		ParallelEnv:   g.ParallelEnv,
		Shell:         g.Shell,
		JobDir:        g.JobDir,
		DeleteJobFile: g.DeleteJobFile,
		SubmitJob:     g.SubmitJob,
		Runners:       g.Runners,
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage qsubrun configuration",
	Long: `Manage qsubrun configuration settings.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (QSUBRUN_*)
  3. Config file (--config, or the first of ~/.config/qsubrun/config.yaml,
     ~/.qsubrun/config.yaml, /etc/qsubrun/config.yaml, ./config.yaml)
  4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration as YAML, followed by the config
file in use and any QSUBRUN_* environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if showPath {
			configPath, err := config.GetUserConfigPath()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			fmt.Fprintln(out, configPath)
			return nil
		}

		data, err := yaml.Marshal(currentEffectiveConfig())
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# config file: %s\n", used)
		} else {
			fmt.Fprintln(out, "# config file: none (defaults)")
		}
		for _, envVar := range getConfigEnvVars() {
			if val, ok := os.LookupEnv(envVar); ok {
				fmt.Fprintf(out, "# env override: %s=%s\n", envVar, val)
			}
		}
		fmt.Fprint(out, string(data))

		if err := config.Validate(); err != nil {
			utils.PrintWarning("Configuration is invalid: %v", err)
		}
		if config.Global.SubmitJob && !config.ValidateBinary(config.Global.QsubBin) {
			utils.PrintWarning("qsub_bin %s is not an executable; submissions will fail", config.Global.QsubBin)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value.

Examples:
  qsubrun config get mpi_launcher
  qsubrun config get runners`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := viper.Get(key)
		if value == nil {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if key == "runners" {
			value = strings.Join(viper.GetStringSlice(key), ",")
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save to the user config file.

Examples:
  qsubrun config set parallel_env orte
  qsubrun config set mpi_launcher /opt/openmpi/bin/mpirun
  qsubrun config set delete_job_file true
  qsubrun config set runners testflo,pytest`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]

		value, err := parseConfigValue(key, raw)
		if err != nil {
			return err
		}
		viper.Set(key, value)

		config.LoadFromViper()
		if err := config.Validate(); err != nil {
			return fmt.Errorf("refusing to save invalid configuration: %w", err)
		}

		configPath, err := config.SaveSetting(key, value)
		if err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		utils.PrintSuccess("Set %s = %s", utils.StyleInfo(key), utils.StyleInfo(raw))
		utils.PrintNote("Config saved to: %s", utils.StylePath(configPath))
		return nil
	},
}

// parseConfigValue converts a command-line value to the type stored for key.
func parseConfigValue(key, raw string) (interface{}, error) {
	switch key {
	case "submit_job", "delete_job_file":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case "runners":
		var runners []string
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				runners = append(runners, r)
			}
		}
		return runners, nil
	}
	for _, k := range config.Keys {
		if k == key {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("unknown config key: %s", key)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with defaults",
	Long: `Create the user config file with default values. qsub is detected
from the current PATH and recorded as qsub_bin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		if utils.FileExists(configPath) && !initForce {
			utils.PrintHint("Use --force to overwrite it")
			return fmt.Errorf("config file already exists: %s", configPath)
		}

		if _, err := config.ForceDetectAndSave(); err != nil {
			return err
		}
		if config.DetectQsubBin() == "" {
			utils.PrintWarning("qsub was not found on PATH; set qsub_bin before submitting")
		}
		utils.PrintSuccess("Config file created: %s", utils.StylePath(configPath))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
		return nil
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables that override configuration",
	Run: func(cmd *cobra.Command, args []string) {
		for _, v := range getConfigEnvVars() {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configInitCmd, configPathCmd, configEnvCmd)

	configShowCmd.Flags().BoolVarP(&showPath, "path", "p", false, "Only print the user config file path")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
}
