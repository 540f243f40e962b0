package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"colsync/internal/snapshot"
)

func TestNewFileSystemVault(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if info, err := os.Stat(filepath.Join(root, "snapshots")); err != nil || !info.IsDir() {
		t.Errorf("snapshots directory not created: %v", err)
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestFileSystemVault_PutSnapshot(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	tests := []struct {
		name    string
		id      string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "valid snapshot", id: "s1", data: "ciphertext", size: 10},
		{name: "size mismatch", id: "s2", data: "short", size: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := snapshot.Manifest{ID: tt.id, HostID: "host-123", CreatedAt: t0, Size: tt.size, SHA256: "abc"}
			err := v.PutSnapshot(m, strings.NewReader(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutSnapshot() error = %v, wantErr %v", err, tt.wantErr)
			}

			payload := filepath.Join(v.snapshotsDir, "host-123", tt.id+".age")
			manifestPath := filepath.Join(v.snapshotsDir, "host-123", tt.id+".toml")
			if tt.wantErr {
				if _, err := os.Stat(manifestPath); !errors.Is(err, os.ErrNotExist) {
					t.Error("failed put should not write a manifest")
				}
				return
			}

			data, err := os.ReadFile(payload)
			if err != nil {
				t.Fatalf("failed to read payload file: %v", err)
			}
			if string(data) != tt.data {
				t.Errorf("payload = %q, want %q", string(data), tt.data)
			}
			if _, err := os.Stat(manifestPath); err != nil {
				t.Errorf("manifest missing: %v", err)
			}
		})
	}
}

func TestFileSystemVault_GetSnapshot(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("retrieve existing snapshot", func(t *testing.T) {
		data := "hello world"
		m := snapshot.Manifest{ID: "s1", HostID: "host-123", CreatedAt: t0, Size: int64(len(data))}
		if err := v.PutSnapshot(m, strings.NewReader(data)); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("host-123", "s1", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("payload = %q, want %q", buf.String(), data)
		}
	})

	t.Run("snapshot not found", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetSnapshot("host-123", "nonexistent", &buf)
		if !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
		}
	})
}

func TestFileSystemVault_ListSnapshots(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	if list, err := v.ListSnapshots("host-123"); err != nil || len(list) != 0 {
		t.Fatalf("ListSnapshots() on empty vault = %v, %v", list, err)
	}

	for i, id := range []string{"newer", "older"} {
		m := snapshot.Manifest{
			ID:          id,
			HostID:      "host-123",
			CreatedAt:   t0.Add(time.Duration(1-i) * time.Hour),
			OperationID: int64(i + 1),
			Size:        1,
			SHA256:      "sum",
		}
		if err := v.PutSnapshot(m, strings.NewReader("x")); err != nil {
			t.Fatalf("PutSnapshot(%s) error = %v", id, err)
		}
	}
	// Leftover temp files and payloads without manifests are not listed.
	os.WriteFile(filepath.Join(v.snapshotsDir, "host-123", "orphan.age"), []byte("x"), 0644)

	list, err := v.ListSnapshots("host-123")
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "older" || list[1].ID != "newer" {
		t.Fatalf("ListSnapshots() = %v, want [older newer]", list)
	}
	if !list[1].CreatedAt.Equal(t0.Add(time.Hour)) || list[1].OperationID != 1 || list[1].SHA256 != "sum" {
		t.Errorf("manifest did not round-trip: %+v", list[1])
	}
}

func TestFileSystemVault_DeleteSnapshot(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	m := snapshot.Manifest{ID: "s1", HostID: "host-123", CreatedAt: t0, Size: 1}
	if err := v.PutSnapshot(m, strings.NewReader("x")); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	if err := v.DeleteSnapshot("host-123", "s1"); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if err := v.DeleteSnapshot("host-123", "s1"); err != nil {
		t.Errorf("second DeleteSnapshot() error = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(v.snapshotsDir, "host-123"))
	if len(entries) != 0 {
		t.Errorf("files left after delete: %v", entries)
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("removed root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")
		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		os.RemoveAll(root)
		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for removed root")
		}
	})

	t.Run("snapshots path is a file", func(t *testing.T) {
		root := t.TempDir()
		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		os.RemoveAll(v.snapshotsDir)
		os.WriteFile(v.snapshotsDir, []byte("x"), 0644)
		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error when snapshots is a file")
		}
	})
}
