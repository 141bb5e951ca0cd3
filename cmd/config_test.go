package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/OpenMDAO/qsubrun/internal/config"
)

func TestConfigValueCompletion(t *testing.T) {
	opts := configValueCompletion("delete_job_file")
	if !reflect.DeepEqual(opts, []string{"true", "false"}) {
		t.Errorf("unexpected completion for delete_job_file: %v", opts)
	}
	if configValueCompletion("runners") != nil {
		t.Error("runners should have no value completion")
	}
}

func TestGetConfigEnvVars(t *testing.T) {
	vars := getConfigEnvVars()
	expected := make([]string, 0, len(config.Keys))
	for _, key := range config.Keys {
		expected = append(expected, "QSUBRUN_"+strings.ToUpper(key))
	}
	sort.Strings(expected)

	if !reflect.DeepEqual(vars, expected) {
		t.Errorf("getConfigEnvVars() = %v; want %v", vars, expected)
	}
}

func TestParseConfigValue(t *testing.T) {
	v, err := parseConfigValue("delete_job_file", "true")
	if err != nil || v != true {
		t.Errorf("parseConfigValue(delete_job_file) = %v, %v", v, err)
	}
	if _, err := parseConfigValue("submit_job", "maybe"); err == nil {
		t.Error("expected error for a non-boolean value")
	}
	v, err = parseConfigValue("runners", "testflo, pytest,,")
	if err != nil || !reflect.DeepEqual(v, []string{"testflo", "pytest"}) {
		t.Errorf("parseConfigValue(runners) = %v, %v", v, err)
	}
	if _, err := parseConfigValue("no_such_key", "x"); err == nil {
		t.Error("expected error for an unknown key")
	}
}

func TestConfigShowPrintsYAML(t *testing.T) {
	t.Setenv("QSUBRUN_PARALLEL_ENV", "smp")
	out, _, err := runRoot(t, nil, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{
		"parallel_env: smp",
		"mpi_launcher: mpirun",
		"delete_job_file: false",
		"# env override: QSUBRUN_PARALLEL_ENV=smp",
		"- testflo",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigSetWritesUserConfig(t *testing.T) {
	_, _, err := runRoot(t, nil, "config", "set", "parallel_env", "orte")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "parallel_env: orte") {
		t.Errorf("config file missing new value:\n%s", data)
	}
	if !strings.Contains(string(data), "version: "+config.VERSION) {
		t.Errorf("config file missing version stamp:\n%s", data)
	}
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	_, _, err := runRoot(t, nil, "config", "set", "parallel_env", "two words")
	if err == nil {
		t.Fatal("expected invalid parallel_env to be rejected")
	}
	path, _ := config.GetUserConfigPath()
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("invalid configuration must not be saved")
	}
}

func TestConfigFileIsRead(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(cfg, []byte("mpi_launcher: /opt/mpi/bin/mpirun\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, dir, err := runRoot(t, &fakeSubmitter{}, "--config", cfg, "-n", "2", "pytest", "a.B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := readFile(t, expectedJobPath(dir, "B"))
	if !strings.HasSuffix(content, "/opt/mpi/bin/mpirun -n $NSLOTS pytest a.B\n") {
		t.Errorf("launcher from config file not applied:\n%s", content)
	}
}

func TestConfigSetDoesNotPersistOverrides(t *testing.T) {
	t.Setenv("QSUBRUN_MPI_LAUNCHER", "/opt/session/mpirun")
	_, _, err := runRoot(t, nil, "config", "set", "delete_job_file", "true")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "delete_job_file: true") {
		t.Errorf("config file missing new value:\n%s", data)
	}
	if strings.Contains(string(data), "/opt/session/mpirun") {
		t.Errorf("environment override was saved:\n%s", data)
	}
}
