package config

import (
	"os"
	"path/filepath"

	"github.com/josephgoksu/jenos-mcp/types"
)

// GetGlobalConfigDir returns ~/.jenos. It's a variable to allow overriding
// in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".jenos"), nil
}

// DataDir resolves where local state (SQLite store, crash logs, telemetry
// state) lives. Resolution order:
// 1. Explicit dataDir
// 2. XDG_DATA_HOME/jenos (if XDG_DATA_HOME is set)
// 3. ~/.jenos
// 4. ./.jenos
func DataDir(cfg *types.AppConfig) string {
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "jenos")
	}
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return ".jenos"
	}
	return dir
}
