package configs

import (
	"os"
	"path/filepath"
)

const appDirName = "chatvault"

// ConfigDir returns $XDG_CONFIG_HOME/chatvault (or the platform equivalent).
func ConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "."+appDirName)
	}
	return filepath.Join(configDir, appDirName)
}

// DataDir returns $XDG_DATA_HOME/chatvault, falling back to ~/.local/share.
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "."+appDirName)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, appDirName)
}

// DefaultConfigPath is where Load looks when no --config flag is given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
