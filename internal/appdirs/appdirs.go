package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "axiom"
	// DataDirVar overrides the per-user data directory.
	DataDirVar = "AXIOM_DATA_DIR"
)

func DataDir() (string, error) {
	if override := os.Getenv(DataDirVar); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// ConfigSearchPath lists where axiom.yaml is looked up, first match wins.
func ConfigSearchPath(dataDir string) []string {
	dirs := []string{dataDir}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}
