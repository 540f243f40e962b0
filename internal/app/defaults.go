package app

import (
	"fmt"
	"os"
	"path/filepath"

	colfs "colsync/internal/fs"
)

// Defaults are the well-known locations of one colsync installation.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	IgnoreFile string
	LockFile   string
}

// GetDefaults resolves the installation paths. COLSYNC_CONFIG_PATH overrides
// the config file (~/.config/colsync.toml) and COLSYNC_HOME the base
// directory (~/.local/share/colsync).
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("COLSYNC_CONFIG_PATH")
	baseDir := os.Getenv("COLSYNC_HOME")
	if configPath == "" || baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".config", "colsync.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(home, ".local", "share", "colsync")
		}
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		IgnoreFile: ignoreFilePath(baseDir),
		LockFile:   lockFilePath(baseDir),
	}, nil
}

func ignoreFilePath(baseDir string) string {
	return filepath.Join(baseDir, colfs.IgnoreFileName)
}

func lockFilePath(baseDir string) string {
	return filepath.Join(baseDir, "colsync.lock")
}
