package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// resetConfig gives each test a clean viper instance and default Global.
// The home directory cache is dropped too since tests move HOME around.
func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	homedir.Reset()
	LoadDefaults()
	t.Cleanup(func() {
		viper.Reset()
		homedir.Reset()
		LoadDefaults()
	})
}

func TestLoadFromViperDefaults(t *testing.T) {
	resetConfig(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	if err := InitViper(""); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	LoadFromViper()

	if Global.MPILauncher != "mpirun" {
		t.Errorf("MPILauncher = %q; want mpirun", Global.MPILauncher)
	}
	if Global.ParallelEnv != "ompi" {
		t.Errorf("ParallelEnv = %q; want ompi", Global.ParallelEnv)
	}
	if Global.Shell != "/bin/bash" {
		t.Errorf("Shell = %q; want /bin/bash", Global.Shell)
	}
	if Global.DeleteJobFile {
		t.Error("DeleteJobFile should default to false (retain job files)")
	}
	if !Global.SubmitJob {
		t.Error("SubmitJob should default to true")
	}
	if err := Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	resetConfig(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("QSUBRUN_PARALLEL_ENV", "orte")
	t.Setenv("QSUBRUN_MPI_LAUNCHER", "~/openmpi/bin/mpirun")
	t.Setenv("QSUBRUN_RUNNERS", "testflo nosetests")
	t.Setenv("QSUBRUN_DELETE_JOB_FILE", "true")

	if err := InitViper(""); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	LoadFromViper()

	if Global.ParallelEnv != "orte" {
		t.Errorf("ParallelEnv = %q; want orte", Global.ParallelEnv)
	}
	if want := filepath.Join(home, "openmpi/bin/mpirun"); Global.MPILauncher != want {
		t.Errorf("MPILauncher = %q; want %q", Global.MPILauncher, want)
	}
	if !reflect.DeepEqual(Global.Runners, []string{"testflo", "nosetests"}) {
		t.Errorf("Runners = %v", Global.Runners)
	}
	if !Global.DeleteJobFile {
		t.Error("DeleteJobFile should be true from environment")
	}
}

func TestInitViperExplicitFile(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "site.yaml")
	content := "parallel_env: mpi\nshell: /bin/sh\njob_dir: /scratch/jobs\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InitViper(path); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	LoadFromViper()

	if Global.ParallelEnv != "mpi" || Global.Shell != "/bin/sh" || Global.JobDir != "/scratch/jobs" {
		t.Errorf("config file not applied: %+v", Global)
	}
}

func TestInitViperMissingExplicitFile(t *testing.T) {
	resetConfig(t)
	if err := InitViper(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	resetConfig(t)
	Global.Shell = ""
	Global.ParallelEnv = "two words"
	Global.MPILauncher = " "
	Global.Runners = nil

	err := Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("Expected *multierror.Error, got %T", err)
	}
	if len(merr.Errors) != 4 {
		t.Errorf("Expected 4 errors, got %d: %v", len(merr.Errors), err)
	}
}

func TestSaveConfigAsStampsVersion(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "qsubrun", "config.yaml")
	v := viper.New()
	setDefaults(v)

	if err := SaveConfigAs(path, v); err != nil {
		t.Fatalf("SaveConfigAs failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "version: "+VERSION) {
		t.Errorf("saved config missing version stamp:\n%s", data)
	}
	if !strings.Contains(string(data), "parallel_env: ompi") {
		t.Errorf("saved config missing defaults:\n%s", data)
	}
}

func TestCheckConfigVersion(t *testing.T) {
	resetConfig(t)

	if msg := CheckConfigVersion(); msg != "" {
		t.Errorf("no recorded version should give no warning, got %q", msg)
	}

	viper.Set("version", VERSION)
	if msg := CheckConfigVersion(); msg != "" {
		t.Errorf("same version should give no warning, got %q", msg)
	}

	viper.Set("version", "0.9.0")
	if msg := CheckConfigVersion(); msg == "" {
		t.Error("Expected a warning for a different major version")
	}
}

func TestIsMajorChange(t *testing.T) {
	tests := []struct {
		old, new string
		want     bool
	}{
		{"1.0.0", "1.4.2", false},
		{"v1.0.0", "2.0.0", true},
		{"0.9", "1.0.0", true},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := isMajorChange(tt.old, tt.new); got != tt.want {
			t.Errorf("isMajorChange(%q, %q) = %v; want %v", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestJobOptions(t *testing.T) {
	resetConfig(t)
	Global.Shell = "/bin/zsh"
	opts := Global.JobOptions()
	if opts.Shell != "/bin/zsh" || opts.ParallelEnv != "ompi" || opts.MPILauncher != "mpirun" {
		t.Errorf("JobOptions = %+v", opts)
	}
}

func TestValidateBinary(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "qsub")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"executable", exe, true},
		{"not executable", plain, false},
		{"directory", dir, false},
		{"missing", filepath.Join(dir, "absent"), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateBinary(tt.path); got != tt.want {
				t.Errorf("ValidateBinary(%q) = %v; want %v", tt.path, got, tt.want)
			}
		})
	}

	t.Setenv("PATH", dir)
	if !ValidateBinary("qsub") {
		t.Error("expected qsub to be found on PATH")
	}
}

func TestSaveSettingWritesOnlyFileValues(t *testing.T) {
	resetConfig(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	path, err := GetUserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("shell: /bin/zsh\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QSUBRUN_MPI_LAUNCHER", "/opt/env/mpirun")
	if err := InitViper(""); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	viper.Set("parallel_env", "orte")

	written, err := SaveSetting("parallel_env", "orte")
	if err != nil {
		t.Fatalf("SaveSetting failed: %v", err)
	}
	if written != path {
		t.Errorf("SaveSetting wrote %s; want %s", written, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"shell: /bin/zsh", "parallel_env: orte", "version: " + VERSION} {
		if !strings.Contains(content, want) {
			t.Errorf("saved config missing %q:\n%s", want, content)
		}
	}
	for _, unwanted := range []string{"mpi_launcher", "runners", "job_dir"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("saved config should not contain %q:\n%s", unwanted, content)
		}
	}
}

func TestForceDetectAndSaveIgnoresEnvironment(t *testing.T) {
	resetConfig(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PATH", t.TempDir())
	t.Setenv("QSUBRUN_PARALLEL_ENV", "from-env")
	if err := InitViper(""); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}

	path, err := ForceDetectAndSave()
	if err != nil {
		t.Fatalf("ForceDetectAndSave failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "from-env") {
		t.Errorf("environment override leaked into config file:\n%s", data)
	}
	if !strings.Contains(string(data), "parallel_env: ompi") {
		t.Errorf("config file missing defaults:\n%s", data)
	}
}
