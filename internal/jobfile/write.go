package jobfile

import (
	"os"
	"path/filepath"

	"github.com/OpenMDAO/qsubrun/internal/utils"
)

// Write stores jf in dir under jf.FileName and returns its absolute path.
// The file appears complete or not at all.
func Write(dir string, jf *JobFile) (string, error) {
	if dir == "" {
		dir = "."
	}
	scriptPath := filepath.Join(dir, jf.FileName)
	// An empty job name gives "-<pid>.job", which qsub would read as an option
	if abs, err := filepath.Abs(scriptPath); err == nil {
		scriptPath = abs
	}

	if err := utils.EnsureDir(dir); err != nil {
		return "", NewScriptCreationError(jf.JobName, dir, err)
	}
	if err := utils.WriteFileAtomic(scriptPath, []byte(jf.Content()), utils.PermFile); err != nil {
		return "", NewScriptCreationError(jf.JobName, scriptPath, err)
	}

	utils.PrintDebug("Wrote job file %s", utils.StylePath(scriptPath))
	return scriptPath, nil
}

// Remove deletes a job file written by Write. A missing file is not an error.
func Remove(scriptPath string) error {
	if err := os.Remove(scriptPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	utils.PrintDebug("Removed job file %s", utils.StylePath(scriptPath))
	return nil
}
