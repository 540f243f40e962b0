package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"colsync/internal/collection"
)

// DefaultModTime is the mtime given to entries added without one.
var DefaultModTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute with forward slashes. Parent directories are created
// on demand. Safe for concurrent use.
type MockFilesystemManager struct {
	mu           sync.Mutex
	files        map[string]*MockFile
	opens        map[string]int
	readDirCalls int
	// foldCase makes Stat match names case-insensitively.
	foldCase bool
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
		opens: make(map[string]int),
	}
}

// AddFile adds a file with DefaultModTime.
func (m *MockFilesystemManager) AddFile(p string, content []byte) {
	m.AddFileAt(p, content, DefaultModTime)
}

// AddFileAt adds a file with the given mtime.
func (m *MockFilesystemManager) AddFileAt(p string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureParents(p)
	m.files[p] = &MockFile{Content: content, Permissions: 0644, ModTime: modTime}
}

// AddDirectory adds a directory with DefaultModTime.
func (m *MockFilesystemManager) AddDirectory(p string) {
	m.AddDirectoryAt(p, DefaultModTime)
}

// AddDirectoryAt adds a directory with the given mtime.
func (m *MockFilesystemManager) AddDirectoryAt(p string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureParents(p)
	m.files[p] = &MockFile{Permissions: 0755, ModTime: modTime, IsDirectory: true}
}

func (m *MockFilesystemManager) ensureParents(p string) {
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if _, ok := m.files[dir]; ok {
			continue
		}
		m.files[dir] = &MockFile{Permissions: 0755, ModTime: DefaultModTime, IsDirectory: true}
	}
}

// SetModTime changes the mtime of an existing entry.
func (m *MockFilesystemManager) SetModTime(p string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[p]; ok {
		f.ModTime = modTime
	}
}

// WriteFile replaces the content of a file and sets its mtime.
func (m *MockFilesystemManager) WriteFile(p string, content []byte, modTime time.Time) {
	m.AddFileAt(p, content, modTime)
}

// Remove deletes an entry and everything below it.
func (m *MockFilesystemManager) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.files {
		if name == p || strings.HasPrefix(name, p+"/") {
			delete(m.files, name)
		}
	}
}

// Rename moves an entry and everything below it.
func (m *MockFilesystemManager) Rename(oldPath, newPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := make(map[string]*MockFile)
	for name, f := range m.files {
		if name == oldPath || strings.HasPrefix(name, oldPath+"/") {
			moved[newPath+strings.TrimPrefix(name, oldPath)] = f
			delete(m.files, name)
		}
	}
	m.ensureParents(newPath)
	for name, f := range moved {
		m.files[name] = f
	}
}

// SetCaseInsensitive makes Stat resolve names regardless of case, as on
// macOS or Windows volumes. ReadDir keeps reporting the stored names.
func (m *MockFilesystemManager) SetCaseInsensitive(fold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foldCase = fold
}

func (m *MockFilesystemManager) lookup(p string) (*MockFile, bool) {
	if f, ok := m.files[p]; ok {
		return f, true
	}
	if !m.foldCase {
		return nil, false
	}
	for name, f := range m.files {
		if strings.EqualFold(name, p) {
			return f, true
		}
	}
	return nil, false
}

// OpenCount reports how often a file was opened.
func (m *MockFilesystemManager) OpenCount(p string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[p]
}

// TotalOpens reports how many files were opened in total.
func (m *MockFilesystemManager) TotalOpens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.opens {
		n += c
	}
	return n
}

// ReadDirCalls reports how many directory listings were made.
func (m *MockFilesystemManager) ReadDirCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readDirCalls
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*collection.Path, error) {
	info, err := m.Stat(rawPath)
	if err != nil {
		return nil, err
	}
	return collection.NewPath(path.Clean(rawPath), info.IsDir(), info), nil
}

func (m *MockFilesystemManager) Stat(p string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if p == "/" {
		return &mockFileInfo{name: "/", mode: fs.ModeDir | 0755, modTime: DefaultModTime, isDir: true}, nil
	}
	f, ok := m.lookup(p)
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
	}
	return newMockFileInfo(path.Base(p), f), nil
}

func (m *MockFilesystemManager) ReadDir(p string) ([]fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirCalls++
	p = path.Clean(p)
	if p != "/" {
		f, ok := m.files[p]
		if !ok {
			return nil, fmt.Errorf("reading directory %s: %w", p, fs.ErrNotExist)
		}
		if !f.IsDirectory {
			return nil, fmt.Errorf("not a directory: %s", p)
		}
	}

	var infos []fs.FileInfo
	for name, f := range m.files {
		if path.Dir(name) == p && name != p {
			infos = append(infos, newMockFileInfo(path.Base(name), f))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (m *MockFilesystemManager) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", p)
	}
	m.opens[p]++
	return readSeekNopCloser{bytes.NewReader(f.Content)}, nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(name string, f *MockFile) *mockFileInfo {
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    name,
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ collection.FilesystemManager = (*MockFilesystemManager)(nil)
