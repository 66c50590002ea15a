// Package config maps viper settings onto component configurations.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the config directory and the default database file.
const AppName = "ledger"

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// Dir returns the configuration directory, $HOME/.config/ledger.
func Dir() string {
	return ExpandPath(filepath.Join("~", ".config", AppName))
}

// DefaultDatabasePath is where the ledger is stored when database.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(Dir(), AppName+".db")
}
