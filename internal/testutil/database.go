package testutil

import (
	"path"
	"testing"

	"colsync/internal/collection"
	"colsync/internal/database"
)

// NewTestCatalog creates a new in-memory SQLite catalog with migrations applied.
// The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) *database.SQLiteCatalog {
	t.Helper()

	c, err := database.NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	t.Cleanup(func() {
		c.Close()
	})

	return c
}

// AddAlbumRoot registers a case-sensitive album root or fails the test.
func AddAlbumRoot(t *testing.T, c collection.Catalog, rootPath string) *collection.AlbumRoot {
	t.Helper()

	root, err := c.AddAlbumRoot(path.Base(rootPath), rootPath, collection.CaseSensitive)
	if err != nil {
		t.Fatalf("failed to add album root %s: %v", rootPath, err)
	}
	return root
}
