package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite(t *testing.T) {
	original := NewConfig("test-host-abc", "/home/user/.local/share/colsync")
	original.Scan.AlbumDateFrom = "average"
	original.Scan.IgnoreDirectories = []string{"@eaDir", "*.tmp"}
	original.Scan.ImageFilters = []string{"jpg", "png"}
	original.Snapshot.Enabled = true
	original.Snapshot.Vault = VaultConfig{Type: "s3", Name: "remote", S3Bucket: "photos", S3Prefix: "catalog", S3Region: "eu-west-1"}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.Scan.AlbumDateFrom != "average" {
		t.Errorf("Scan.AlbumDateFrom = %q, want %q", got.Scan.AlbumDateFrom, "average")
	}
	if !got.Scan.FastScan {
		t.Error("Scan.FastScan = false, want true")
	}
	if len(got.Scan.IgnoreDirectories) != 2 {
		t.Errorf("len(Scan.IgnoreDirectories) = %d, want 2", len(got.Scan.IgnoreDirectories))
	}
	if got.Snapshot.Vault.S3Bucket != "photos" {
		t.Errorf("Snapshot.Vault.S3Bucket = %q, want %q", got.Snapshot.Vault.S3Bucket, "photos")
	}
	if got.Scan.ForceDeleteAfterScans != 10 {
		t.Errorf("Scan.ForceDeleteAfterScans = %d, want 10", got.Scan.ForceDeleteAfterScans)
	}
}

func TestManager_ReadSections(t *testing.T) {
	input := `
host_id = "h"
base_dir = "/b"

[database]
type = "memory"

[scan]
fast_scan = false
deferred_file_scanning = true
album_date_from = "newest"

[watch]
enabled = true
debounce_ms = 250

[deferred]
type = "memory"
`
	got, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Database.Type != "memory" {
		t.Errorf("Database.Type = %q, want memory", got.Database.Type)
	}
	if got.Scan.FastScan || !got.Scan.DeferredFileScanning {
		t.Errorf("Scan = %+v, want fast_scan off and deferred on", got.Scan)
	}
	if !got.Watch.Enabled || got.Watch.DebounceMS != 250 {
		t.Errorf("Watch = %+v", got.Watch)
	}
	if got.Deferred.Type != "memory" {
		t.Errorf("Deferred.Type = %q, want memory", got.Deferred.Type)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/colsync")

	tests := []struct {
		name, got, want string
	}{
		{"LogDir", cfg.LogDir, "/data/colsync/log"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/colsync/db"},
		{"Deferred.QueueDir", cfg.Deferred.QueueDir, "/data/colsync/deferred"},
		{"Snapshot.Vault.FSVaultRoot", cfg.Snapshot.Vault.FSVaultRoot, "/data/colsync/vault"},
		{"Snapshot.Encryption.PublicKeyPath", cfg.Snapshot.Encryption.PublicKeyPath, "/data/colsync/keys/colsync.pub"},
		{"Snapshot.Encryption.PrivateKeyPath", cfg.Snapshot.Encryption.PrivateKeyPath, "/data/colsync/keys/colsync.key"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Scan.RemoveAfterDays != 7 || cfg.Scan.ForceDeleteAfterDays != 30 {
		t.Errorf("removal defaults = %d/%d, want 7/30", cfg.Scan.RemoveAfterDays, cfg.Scan.ForceDeleteAfterDays)
	}
	if cfg.Snapshot.Enabled {
		t.Error("Snapshot.Enabled = true, want false by default")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "colsync.toml")

		if err := Init(path, NewConfig("h1", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "colsync.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "colsync.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/colsync.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
