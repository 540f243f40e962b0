package collection

import (
	"io"
	"io/fs"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
// All paths are absolute and use forward slashes.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	Resolve(rawPath string) (*Path, error)

	// Stat returns fresh file info for a path. A missing path yields an
	// error matching fs.ErrNotExist.
	Stat(path string) (fs.FileInfo, error)

	// ReadDir lists the entries of a directory in no particular order.
	ReadDir(path string) ([]fs.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)
}

// Matcher reports whether a relative path is excluded.
type Matcher interface {
	Match(relativePath string) bool
}
