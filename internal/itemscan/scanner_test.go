package itemscan_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"colsync/internal/collection"
	"colsync/internal/database"
	"colsync/internal/itemscan"
	"colsync/internal/testutil"
)

type fixture struct {
	catalog *database.SQLiteCatalog
	fsmgr   *testutil.MockFilesystemManager
	factory *itemscan.Factory
	root    *collection.AlbumRoot
	albumA  int64
	albumB  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := testutil.NewTestCatalog(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/photos/a")
	fsmgr.AddDirectory("/photos/b")
	root := testutil.AddAlbumRoot(t, c, "/photos")
	a, err := c.AddAlbum(root.ID, "/a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.AddAlbum(root.ID, "/b", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		catalog: c,
		fsmgr:   fsmgr,
		factory: itemscan.NewFactory(c, fsmgr, collection.NewNopLogger()),
		root:    root,
		albumA:  a,
		albumB:  b,
	}
}

func (f *fixture) scanNew(t *testing.T, p string, albumID int64) collection.ItemScanner {
	t.Helper()
	info, err := f.fsmgr.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	sc := f.factory.NewItemScanner(p, info, nil)
	sc.SetCategory(collection.CategoryImage)
	if err := sc.NewFile(albumID); err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := sc.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return sc
}

func TestUniqueHash(t *testing.T) {
	sizes := []int{0, 10, 150 * 1024, 300 * 1024}
	for _, size := range sizes {
		data := bytes.Repeat([]byte{'x'}, size)
		for i := range data {
			data[i] = byte(i % 251)
		}

		seeker, err := itemscan.UniqueHash(bytes.NewReader(data), int64(size))
		if err != nil {
			t.Fatalf("UniqueHash(seeker, %d) error = %v", size, err)
		}
		plain, err := itemscan.UniqueHash(io.MultiReader(bytes.NewReader(data)), int64(size))
		if err != nil {
			t.Fatalf("UniqueHash(reader, %d) error = %v", size, err)
		}
		if seeker != plain {
			t.Errorf("size %d: seeker hash %s != reader hash %s", size, seeker, plain)
		}
	}

	a, _ := itemscan.UniqueHash(strings.NewReader("same"), 4)
	b, _ := itemscan.UniqueHash(strings.NewReader("diff"), 4)
	if a == b {
		t.Error("different content produced the same hash")
	}
}

func TestScanner_NewFile(t *testing.T) {
	t.Run("inserts item with mtime as creation date", func(t *testing.T) {
		f := newFixture(t)
		mod := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
		f.fsmgr.AddFileAt("/photos/a/x.jpg", []byte("not really a jpeg"), mod)

		sc := f.scanNew(t, "/photos/a/x.jpg", f.albumA)
		if sc.ID() <= 0 {
			t.Fatalf("ID() = %d", sc.ID())
		}
		info, _ := f.catalog.GetItemScanInfo(sc.ID())
		if info == nil || info.UniqueHash == "" || info.AlbumID != f.albumA || info.Status != collection.StatusVisible {
			t.Fatalf("item = %+v", info)
		}
		if !sc.CreationDate().Equal(mod) {
			t.Errorf("CreationDate() = %v, want %v", sc.CreationDate(), mod)
		}
		if sc.HasHistoryToResolve() {
			t.Error("HasHistoryToResolve() = true without sidecar")
		}
	})

	t.Run("revives trashed item with same content", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/photos/a/x.jpg", []byte("content"))
		first := f.scanNew(t, "/photos/a/x.jpg", f.albumA)
		f.catalog.AddItemTag(first.ID(), "people/bob")
		if err := f.catalog.RemoveItems([]int64{first.ID()}); err != nil {
			t.Fatal(err)
		}

		f.fsmgr.Rename("/photos/a/x.jpg", "/photos/b/y.jpg")
		second := f.scanNew(t, "/photos/b/y.jpg", f.albumB)

		if second.ID() != first.ID() {
			t.Fatalf("revived id = %d, want %d", second.ID(), first.ID())
		}
		info, _ := f.catalog.GetItemScanInfo(second.ID())
		if info.AlbumID != f.albumB || info.Name != "y.jpg" || info.Status != collection.StatusVisible {
			t.Errorf("item = %+v", info)
		}
		tags, _ := f.catalog.GetItemTags(second.ID())
		if len(tags) != 1 {
			t.Errorf("tags = %v, want carried over", tags)
		}
	})
}

func TestScanner_CopiedFrom(t *testing.T) {
	t.Run("missing source file is a move", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/photos/a/x.jpg", []byte("content"))
		src := f.scanNew(t, "/photos/a/x.jpg", f.albumA)
		f.catalog.SetItemComment(src.ID(), "sunset")

		f.fsmgr.Rename("/photos/a/x.jpg", "/photos/b/x.jpg")
		info, _ := f.fsmgr.Stat("/photos/b/x.jpg")
		sc := f.factory.NewItemScanner("/photos/b/x.jpg", info, nil)
		sc.SetCategory(collection.CategoryImage)
		if err := sc.CopiedFrom(f.albumB, src.ID()); err != nil {
			t.Fatalf("CopiedFrom() error = %v", err)
		}
		if err := sc.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		if sc.ID() != src.ID() {
			t.Errorf("ID() = %d, want %d", sc.ID(), src.ID())
		}
		got, _ := f.catalog.GetItemScanInfo(src.ID())
		if got.AlbumID != f.albumB {
			t.Errorf("album = %d, want %d", got.AlbumID, f.albumB)
		}
		if c, _ := f.catalog.GetItemComment(src.ID()); c != "sunset" {
			t.Errorf("comment = %q", c)
		}
		if f.fsmgr.OpenCount("/photos/b/x.jpg") != 0 {
			t.Error("moved file with equal size should not be hashed")
		}
	})

	t.Run("present source file is a copy", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/photos/a/x.jpg", []byte("content"))
		src := f.scanNew(t, "/photos/a/x.jpg", f.albumA)
		f.catalog.AddItemTag(src.ID(), "trip")

		f.fsmgr.AddFile("/photos/b/x.jpg", []byte("content"))
		info, _ := f.fsmgr.Stat("/photos/b/x.jpg")
		sc := f.factory.NewItemScanner("/photos/b/x.jpg", info, nil)
		sc.SetCategory(collection.CategoryImage)
		if err := sc.CopiedFrom(f.albumB, src.ID()); err != nil {
			t.Fatalf("CopiedFrom() error = %v", err)
		}
		if err := sc.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		if sc.ID() == src.ID() {
			t.Fatal("copy should get a new id")
		}
		tags, _ := f.catalog.GetItemTags(sc.ID())
		if len(tags) != 1 || tags[0] != "trip" {
			t.Errorf("tags = %v", tags)
		}
		if sc.ScanInfo().UniqueHash != src.ScanInfo().UniqueHash {
			t.Error("copy should reuse the source hash")
		}
		orig, _ := f.catalog.GetItemScanInfo(src.ID())
		if orig.AlbumID != f.albumA {
			t.Errorf("source moved to album %d", orig.AlbumID)
		}
	})
}

func TestScanner_History(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/photos/a/x.jpg", []byte("edited"))
	f.fsmgr.AddFile("/photos/a/x.jpg.history.json", []byte(`{"uuid":"u-2","derived_from":[{"uuid":"u-1"}]}`))

	sc := f.scanNew(t, "/photos/a/x.jpg", f.albumA)
	if !sc.HasHistoryToResolve() {
		t.Fatal("HasHistoryToResolve() = false")
	}
	h, _ := f.catalog.GetItemHistory(sc.ID())
	if h == nil || h.UUID != "u-2" {
		t.Errorf("history = %+v", h)
	}
	ids, _ := f.catalog.GetItemIDsInTag(collection.TagNeedResolvingHistory)
	if len(ids) != 1 || ids[0] != sc.ID() {
		t.Errorf("needResolving ids = %v", ids)
	}
}

func TestScanner_FileModified(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/photos/a/x.jpg", []byte("v1"))
	first := f.scanNew(t, "/photos/a/x.jpg", f.albumA)

	later := testutil.DefaultModTime.Add(time.Hour)
	f.fsmgr.WriteFile("/photos/a/x.jpg", []byte("version two"), later)
	prior, _ := f.catalog.GetItemScanInfo(first.ID())
	info, _ := f.fsmgr.Stat("/photos/a/x.jpg")

	sc := f.factory.NewItemScanner("/photos/a/x.jpg", info, prior)
	sc.SetCategory(collection.CategoryImage)
	if err := sc.FileModified(); err != nil {
		t.Fatalf("FileModified() error = %v", err)
	}
	if err := sc.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, _ := f.catalog.GetItemScanInfo(first.ID())
	if got.UniqueHash == prior.UniqueHash {
		t.Error("hash not updated")
	}
	if got.FileSize != int64(len("version two")) || !got.ModificationDate.Equal(later) {
		t.Errorf("item = %+v", got)
	}
}

func TestScanner_CommitWithoutScan(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/photos/a/x.jpg", []byte("v1"))
	info, _ := f.fsmgr.Stat("/photos/a/x.jpg")
	sc := f.factory.NewItemScanner("/photos/a/x.jpg", info, nil)
	if err := sc.Commit(); err == nil {
		t.Error("Commit() without scan action expected error")
	}
	if err := sc.FileModified(); err == nil {
		t.Error("FileModified() without prior record expected error")
	}
}
