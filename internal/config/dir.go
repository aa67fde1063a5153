// Package config locates and reads the claudesync configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Dir returns the claudesync configuration directory.
//
// Resolution:
//   - $CLAUDESYNC_CONFIG_HOME if set (explicit override)
//   - $XDG_CONFIG_HOME/claudesync if set (respects XDG on any platform)
//   - %AppData%/claudesync on Windows
//   - ~/.config/claudesync on macOS and Linux
func Dir() string {
	if dir := os.Getenv("CLAUDESYNC_CONFIG_HOME"); dir != "" {
		return dir
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claudesync")
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "claudesync")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "claudesync")
}

// Files inside the configuration directory.
const (
	ConfigFile = "config.yaml"
	EnvFile    = "env"
	LockFile   = "repo.lock"
	LogFile    = "daemon.log"
	RepoDir    = "repo"
)
