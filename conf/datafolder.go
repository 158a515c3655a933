package conf

import (
	"os"
	"path/filepath"
)

// defaultDataFolder is a per-user config directory, created on first use.
func defaultDataFolder() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "renderd")
}
