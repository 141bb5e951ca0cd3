package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/jobfile"
	"github.com/OpenMDAO/qsubrun/internal/utils"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"golang.org/x/mod/semver"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// EnvPrefix is the prefix for environment variable overrides (QSUBRUN_SHELL, ...)
const EnvPrefix = "QSUBRUN"

// Keys lists every configuration key in display order.
var Keys = []string{
	"qsub_bin",
	"mpi_launcher",
	"parallel_env",
	"shell",
	"job_dir",
	"delete_job_file",
	"submit_job",
	"runners",
}

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (bound with viper.BindPFlag)
// 2. Environment variables (QSUBRUN_*)
// 3. Config file (cfgFile if given, else the first config.yaml found below)
// 4. Defaults
//
// Search paths: ~/.config/qsubrun, ~/.qsubrun, /etc/qsubrun, current directory.
func InitViper(cfgFile string) error {
	setDefaults(viper.GetViper())

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("invalid config path %s: %w", cfgFile, err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "qsubrun"))
	}
	if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".qsubrun"))
	}
	viper.AddConfigPath("/etc/qsubrun")
	viper.AddConfigPath(".")

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults(v *viper.Viper) {
	v.SetDefault("qsub_bin", "qsub")
	v.SetDefault("mpi_launcher", jobfile.DefaultMPILauncher)
	v.SetDefault("parallel_env", jobfile.DefaultParallelEnv)
	v.SetDefault("shell", jobfile.DefaultShell)
	v.SetDefault("job_dir", ".")
	v.SetDefault("delete_job_file", false)
	v.SetDefault("submit_job", true)
	v.SetDefault("runners", jobfile.DefaultRunners)
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".qsubrun", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "qsubrun", ConfigFilename+"."+ConfigType), nil
}

// SaveSetting stores key=value in the user config file and returns its path.
// Keys already in that file are kept. Environment and flag overrides are
// never written.
func SaveSetting(key string, value interface{}) (string, error) {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}

	stored, err := readConfigFile(configPath)
	if err != nil {
		return "", err
	}
	stored.Set(key, value)
	return configPath, SaveConfigAs(configPath, stored)
}

// readConfigFile loads only the values stored in configPath, which may not exist yet.
func readConfigFile(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(ConfigType)
	if !utils.FileExists(configPath) {
		return v, nil
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}
	return v, nil
}

// SaveConfigAs writes the settings held by v, stamped with VERSION, to path.
func SaveConfigAs(configPath string, v *viper.Viper) error {
	if err := os.MkdirAll(filepath.Dir(configPath), utils.PermDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v.Set("version", VERSION)
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateBinary checks if a binary exists and is executable
func ValidateBinary(binPath string) bool {
	if binPath == "" {
		return false
	}

	// If it's a full path, check directly
	if filepath.IsAbs(binPath) {
		info, err := os.Stat(binPath)
		if err != nil {
			return false
		}
		return !info.IsDir() && info.Mode()&0111 != 0
	}

	_, err := exec.LookPath(binPath)
	return err == nil
}

// DetectQsubBin returns the absolute path of qsub on PATH, or "".
func DetectQsubBin() string {
	if path, err := exec.LookPath("qsub"); err == nil {
		return path
	}
	return ""
}

// ForceDetectAndSave writes the built-in defaults to the user config file,
// with qsub_bin set to the qsub found on the current PATH. Returns the path
// written.
func ForceDetectAndSave() (string, error) {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if detected := DetectQsubBin(); detected != "" {
		v.Set("qsub_bin", detected)
	}
	return configPath, SaveConfigAs(configPath, v)
}

// expandPath expands a leading "~" in configured paths.
func expandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		utils.PrintWarning("Could not expand %s: %v", path, err)
		return path
	}
	return expanded
}

// LoadFromViper loads config from Viper into Global struct
func LoadFromViper() {
	if bin := viper.GetString("qsub_bin"); bin != "" {
		Global.QsubBin = expandPath(bin)
	}
	if launcher := viper.GetString("mpi_launcher"); launcher != "" {
		Global.MPILauncher = expandPath(launcher)
	}
	Global.ParallelEnv = viper.GetString("parallel_env")
	Global.Shell = viper.GetString("shell")

	if dir := viper.GetString("job_dir"); dir != "" {
		Global.JobDir = expandPath(dir)
	}

	Global.DeleteJobFile = viper.GetBool("delete_job_file")
	Global.SubmitJob = viper.GetBool("submit_job")

	if runners := viper.GetStringSlice("runners"); len(runners) > 0 {
		Global.Runners = runners
	}
}

// Validate reports every invalid setting in Global at once.
func Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(Global.Shell) == "" {
		result = multierror.Append(result, errors.New("shell must not be empty"))
	}
	if Global.ParallelEnv == "" || strings.ContainsAny(Global.ParallelEnv, " \t\n") {
		result = multierror.Append(result, fmt.Errorf("parallel_env %q must be a single non-empty word", Global.ParallelEnv))
	}
	if strings.TrimSpace(Global.MPILauncher) == "" {
		result = multierror.Append(result, errors.New("mpi_launcher must not be empty"))
	}
	if len(Global.Runners) == 0 {
		result = multierror.Append(result, errors.New("runners must list at least one command"))
	}
	if Global.JobDir != "" && utils.FileExists(Global.JobDir) {
		result = multierror.Append(result, fmt.Errorf("job_dir %s is a file", Global.JobDir))
	}

	return result.ErrorOrNil()
}

// CheckConfigVersion compares the version recorded in the config file with
// VERSION. It returns a warning message when the major versions differ and
// "" otherwise (including when no version was recorded).
func CheckConfigVersion() string {
	recorded := viper.GetString("version")
	if recorded == "" {
		return ""
	}
	if isMajorChange(recorded, VERSION) {
		return fmt.Sprintf("config file %s was written by qsubrun %s; this is %s. Run 'qsubrun config init' to refresh it.",
			viper.ConfigFileUsed(), recorded, VERSION)
	}
	return ""
}

// canonicalVersion returns the semver form of a version with or without a leading 'v'.
func canonicalVersion(version string) string {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.Canonical(version)
}

// isMajorChange reports whether the major version component has changed.
// It returns false if either version cannot be parsed.
func isMajorChange(oldVersion, newVersion string) bool {
	c1 := canonicalVersion(oldVersion)
	c2 := canonicalVersion(newVersion)
	if c1 == "" || c2 == "" {
		return false
	}
	return semver.Major(c1) != semver.Major(c2)
}
