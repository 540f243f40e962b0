package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"colsync/internal/collection"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// Symlinks are followed: a linked directory is scanned as an album.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*collection.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return collection.NewPath(filepath.ToSlash(absPath), info.IsDir(), info), nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(filepath.FromSlash(path))
}

// ReadDir lists the regular files and directories in path. Broken links
// and special files are left out.
func (m *OSFilesystemManager) ReadDir(path string) ([]fs.FileInfo, error) {
	dir := filepath.FromSlash(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		var info fs.FileInfo
		if entry.Type()&os.ModeSymlink != 0 {
			info, err = os.Stat(filepath.Join(dir, entry.Name()))
		} else {
			info, err = entry.Info()
		}
		if err != nil {
			continue
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			continue
		}
		infos = append(infos, namedInfo{FileInfo: info, name: entry.Name()})
	}
	return infos, nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.FromSlash(path))
}

// namedInfo keeps the link name for entries reached through a symlink.
type namedInfo struct {
	fs.FileInfo
	name string
}

func (i namedInfo) Name() string { return i.name }

// ProbeCaseSensitivity creates a probe file in dir and checks whether it
// can be found under an upper-cased name.
func ProbeCaseSensitivity(dir string) collection.CaseSensitivity {
	f, err := os.CreateTemp(filepath.FromSlash(dir), ".colsync-case-*")
	if err != nil {
		return collection.CaseUnknown
	}
	name := f.Name()
	f.Close()
	defer os.Remove(name)

	upper := filepath.Join(filepath.Dir(name), strings.ToUpper(filepath.Base(name)))
	if upper == name {
		return collection.CaseUnknown
	}
	if _, err := os.Stat(upper); err == nil {
		return collection.CaseInsensitive
	}
	return collection.CaseSensitive
}

// Compile-time check that OSFilesystemManager implements collection.FilesystemManager interface
var _ collection.FilesystemManager = (*OSFilesystemManager)(nil)
