package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"colsync/internal/collection"
)

func TestOSFilesystemManager_ReadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "album"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "album"), filepath.Join(dir, "linked")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken")); err != nil {
		t.Fatal(err)
	}

	m := NewOSFilesystemManager()
	infos, err := m.ReadDir(filepath.ToSlash(dir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	got := map[string]bool{}
	var names []string
	for _, info := range infos {
		got[info.Name()] = info.IsDir()
		names = append(names, info.Name())
	}
	sort.Strings(names)
	want := []string{"a.jpg", "album", "linked"}
	if len(names) != len(want) {
		t.Fatalf("ReadDir() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if !got["linked"] {
		t.Error("symlinked directory should be reported as directory")
	}
}

func TestOSFilesystemManager_StatAndOpen(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(p, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewOSFilesystemManager()

	info, err := m.Stat(filepath.ToSlash(p))
	if err != nil || info.Size() != 7 {
		t.Fatalf("Stat() = %v, %v", info, err)
	}

	_, err = m.Stat(filepath.ToSlash(filepath.Join(dir, "missing")))
	if !errors.Is(err, iofs.ErrNotExist) {
		t.Errorf("Stat(missing) error = %v, want ErrNotExist", err)
	}

	rc, err := m.Open(filepath.ToSlash(p))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystemManager()

	p, err := m.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !p.IsDir() {
		t.Error("IsDir() = false, want true")
	}

	if _, err := m.Resolve(filepath.Join(dir, "missing")); err == nil {
		t.Error("Resolve(missing) expected error")
	}
}

func TestProbeCaseSensitivity(t *testing.T) {
	dir := t.TempDir()
	got := ProbeCaseSensitivity(filepath.ToSlash(dir))
	if got == collection.CaseUnknown {
		t.Fatal("ProbeCaseSensitivity() = unknown for writable dir")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}

	if ProbeCaseSensitivity(filepath.Join(dir, "missing")) != collection.CaseUnknown {
		t.Error("ProbeCaseSensitivity(missing) should be unknown")
	}
}
