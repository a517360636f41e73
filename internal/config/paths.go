package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "MESHINV_CONFIG"
	// ConfigFileName is the config file name looked up in the working directory
	ConfigFileName = "meshinv.yaml"
	// ConfigDirName is the config directory name under XDG and /etc
	ConfigDirName = "meshinv"
)

// searchPaths lists config file candidates in priority order. Unset
// environment variables contribute no candidate.
func searchPaths() []string {
	var paths []string

	// 1. Explicit path from the environment
	if path := os.Getenv(EnvConfigPath); path != "" {
		paths = append(paths, path)
	}

	// 2. Working directory, reported as an absolute path when possible
	local := ConfigFileName
	if abs, err := filepath.Abs(local); err == nil {
		local = abs
	}
	paths = append(paths, local)

	// 3. XDG config home
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		paths = append(paths, filepath.Join(xdgHome, ConfigDirName, "config.yaml"))
	}

	// 4. Default XDG location (~/.config)
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}

	// 5. System-wide, where packaged deployments put it
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing file from searchPaths, or the
// empty string when there is none and defaults apply.
func FindConfigPath() string {
	for _, path := range searchPaths() {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// EnsureConfigDir creates the parent directory of path. It is also used for
// the SQLite database file.
func EnsureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
