package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("COLSYNC_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("COLSYNC_HOME", "/custom/colsync")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		want := Defaults{
			ConfigPath: "/custom/config.toml",
			BaseDir:    "/custom/colsync",
			LogDir:     "/custom/colsync/log",
			IgnoreFile: "/custom/colsync/ignore",
			LockFile:   "/custom/colsync/colsync.lock",
		}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("home directory layout", func(t *testing.T) {
		t.Setenv("COLSYNC_CONFIG_PATH", "")
		t.Setenv("COLSYNC_HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, ".config", "colsync.toml"); d.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, want)
		}
		if want := filepath.Join(home, ".local", "share", "colsync"); d.BaseDir != want {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, want)
		}
	})

	t.Run("only config path overridden", func(t *testing.T) {
		t.Setenv("COLSYNC_CONFIG_PATH", "/etc/colsync.toml")
		t.Setenv("COLSYNC_HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if d.ConfigPath != "/etc/colsync.toml" {
			t.Errorf("ConfigPath = %q", d.ConfigPath)
		}
		if d.LockFile != filepath.Join(d.BaseDir, "colsync.lock") {
			t.Errorf("LockFile = %q not below BaseDir %q", d.LockFile, d.BaseDir)
		}
	})
}
