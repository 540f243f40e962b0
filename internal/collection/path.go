package collection

import (
	"io/fs"
	"strings"
)

// Path is a resolved, existing filesystem path in slash form together with
// the stat info taken when it was resolved.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath is used by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: strings.TrimSuffix(absPath, "/"), isDir: isDir, info: info}
}

func (p *Path) String() string    { return p.absPath }
func (p *Path) IsDir() bool       { return p.isDir }
func (p *Path) Info() fs.FileInfo { return p.info }

// RootForPath returns the album root containing p, preferring the deepest
// root when roots are nested, or nil.
func RootForPath(roots []*AlbumRoot, p string) *AlbumRoot {
	var best *AlbumRoot
	for _, root := range roots {
		if p == root.Path || strings.HasPrefix(p, root.Path+"/") {
			if best == nil || len(root.Path) > len(best.Path) {
				best = root
			}
		}
	}
	return best
}

// AlbumForPath returns the album path of directory p inside root:
// RootAlbumPath for the root itself, "/a/b" below it.
func AlbumForPath(root *AlbumRoot, p string) string {
	rel := strings.TrimPrefix(p, root.Path)
	if rel == "" {
		return RootAlbumPath
	}
	return rel
}

// ChildAlbum returns the album path of directory name inside parent.
func ChildAlbum(parent, name string) string {
	if parent == RootAlbumPath {
		return "/" + name
	}
	return parent + "/" + name
}

// IsInAlbum reports whether album equals parent or lies below it.
func IsInAlbum(album, parent string) bool {
	if parent == RootAlbumPath || album == parent {
		return true
	}
	return strings.HasPrefix(album, parent+"/")
}
