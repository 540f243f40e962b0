package database

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"colsync/internal/collection"
	"colsync/internal/model"
)

// newTestCatalog creates an in-memory catalog with migrations applied.
func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()

	c, err := NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func addRootAndAlbum(t *testing.T, c *SQLiteCatalog, album string) (*collection.AlbumRoot, int64) {
	t.Helper()
	root, err := c.AddAlbumRoot("Pictures", "/photos", collection.CaseSensitive)
	if err != nil {
		t.Fatalf("AddAlbumRoot() error = %v", err)
	}
	id, err := c.AddAlbum(root.ID, album, time.Time{})
	if err != nil {
		t.Fatalf("AddAlbum() error = %v", err)
	}
	return root, id
}

func addItem(t *testing.T, c *SQLiteCatalog, albumID int64, name, hash string) int64 {
	t.Helper()
	id, err := c.AddItem(&collection.ItemScanInfo{
		AlbumID:          albumID,
		Name:             name,
		Status:           collection.StatusVisible,
		Category:         collection.CategoryImage,
		ModificationDate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FileSize:         100,
		UniqueHash:       hash,
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	return id
}

func TestSQLiteCatalog_Albums(t *testing.T) {
	t.Run("get album for missing path returns 0", func(t *testing.T) {
		c := newTestCatalog(t)
		id, err := c.GetAlbumForPath(1, "/nope")
		if err != nil || id != 0 {
			t.Errorf("GetAlbumForPath() = %d, %v; want 0, nil", id, err)
		}
	})

	t.Run("add album is idempotent per path", func(t *testing.T) {
		c := newTestCatalog(t)
		root, first := addRootAndAlbum(t, c, "/2020")
		second, err := c.AddAlbum(root.ID, "/2020", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("AddAlbum() error = %v", err)
		}
		if first != second {
			t.Errorf("AddAlbum() id = %d, want %d", second, first)
		}
	})

	t.Run("modification map and dates", func(t *testing.T) {
		c := newTestCatalog(t)
		root, id := addRootAndAlbum(t, c, "/2020")
		mod := time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)
		if err := c.SetAlbumModificationDate(id, mod); err != nil {
			t.Fatalf("SetAlbumModificationDate() error = %v", err)
		}
		m, err := c.GetAlbumModificationMap(root.ID)
		if err != nil {
			t.Fatalf("GetAlbumModificationMap() error = %v", err)
		}
		if !m["/2020"].Equal(mod) {
			t.Errorf("map[/2020] = %v, want %v", m["/2020"], mod)
		}

		album, err := c.GetAlbum(id)
		if err != nil || album == nil {
			t.Fatalf("GetAlbum() = %v, %v", album, err)
		}
		if !album.Date.IsZero() {
			t.Errorf("Date = %v, want zero", album.Date)
		}
	})

	t.Run("sub-albums by path prefix", func(t *testing.T) {
		c := newTestCatalog(t)
		root, a := addRootAndAlbum(t, c, "/a")
		ab, _ := c.AddAlbum(root.ID, "/a/b", time.Time{})
		c.AddAlbum(root.ID, "/ab", time.Time{})

		ids, err := c.GetAlbumAndSubalbumsForPath(root.ID, "/a")
		if err != nil {
			t.Fatalf("GetAlbumAndSubalbumsForPath() error = %v", err)
		}
		if !reflect.DeepEqual(ids, []int64{a, ab}) {
			t.Errorf("ids = %v, want %v", ids, []int64{a, ab})
		}

		all, _ := c.GetAlbumAndSubalbumsForPath(root.ID, "/")
		if len(all) != 3 {
			t.Errorf("len(root sub-albums) = %d, want 3", len(all))
		}
	})

	t.Run("stale albums are hidden and purged", func(t *testing.T) {
		c := newTestCatalog(t)
		root, id := addRootAndAlbum(t, c, "/gone")
		if err := c.MakeStaleAlbum(id); err != nil {
			t.Fatalf("MakeStaleAlbum() error = %v", err)
		}
		infos, _ := c.GetAlbumShortInfos()
		if len(infos) != 0 {
			t.Errorf("GetAlbumShortInfos() = %v, want none", infos)
		}
		// A new album may take the old path.
		if _, err := c.AddAlbum(root.ID, "/gone", time.Time{}); err != nil {
			t.Fatalf("AddAlbum() after stale error = %v", err)
		}
		if err := c.DeleteStaleAlbums(); err != nil {
			t.Fatalf("DeleteStaleAlbums() error = %v", err)
		}
		if a, _ := c.GetAlbum(id); a != nil {
			t.Errorf("stale album still present: %+v", a)
		}
	})

	t.Run("rename keeps id and items", func(t *testing.T) {
		c := newTestCatalog(t)
		root, id := addRootAndAlbum(t, c, "/old")
		item := addItem(t, c, id, "a.jpg", "h1")

		if err := c.RenameAlbum(id, root.ID, "/new"); err != nil {
			t.Fatalf("RenameAlbum() error = %v", err)
		}
		got, _ := c.GetAlbumForPath(root.ID, "/new")
		if got != id {
			t.Errorf("album at /new = %d, want %d", got, id)
		}
		info, _ := c.GetItemScanInfo(item)
		if info == nil || info.AlbumID != id {
			t.Errorf("item album = %+v, want %d", info, id)
		}
	})

	t.Run("copy album properties", func(t *testing.T) {
		c := newTestCatalog(t)
		root, src := addRootAndAlbum(t, c, "/src")
		date := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)
		c.SetAlbumDate(src, date)
		dst, _ := c.AddAlbum(root.ID, "/dst", time.Time{})

		if err := c.CopyAlbumProperties(src, dst); err != nil {
			t.Fatalf("CopyAlbumProperties() error = %v", err)
		}
		a, _ := c.GetAlbum(dst)
		if !a.Date.Equal(date) {
			t.Errorf("Date = %v, want %v", a.Date, date)
		}
	})
}

func TestSQLiteCatalog_Items(t *testing.T) {
	t.Run("add replaces row at same name", func(t *testing.T) {
		c := newTestCatalog(t)
		_, album := addRootAndAlbum(t, c, "/a")
		first := addItem(t, c, album, "x.jpg", "h1")
		second := addItem(t, c, album, "x.jpg", "h2")
		if first == second {
			t.Fatal("expected a new id")
		}
		if info, _ := c.GetItemScanInfo(first); info != nil {
			t.Errorf("old row still present: %+v", info)
		}
		id, _ := c.GetImageID(album, "x.jpg")
		if id != second {
			t.Errorf("GetImageID() = %d, want %d", id, second)
		}
	})

	t.Run("remove items trashes and detaches", func(t *testing.T) {
		c := newTestCatalog(t)
		_, album := addRootAndAlbum(t, c, "/a")
		id := addItem(t, c, album, "x.jpg", "h1")

		if err := c.RemoveItems([]int64{id}); err != nil {
			t.Fatalf("RemoveItems() error = %v", err)
		}
		info, _ := c.GetItemScanInfo(id)
		if info.Status != collection.StatusTrashed || info.AlbumID != 0 {
			t.Errorf("item = %+v, want trashed without album", info)
		}
		found, _ := c.FindRemovedItemByHash("h1", 100)
		if found != id {
			t.Errorf("FindRemovedItemByHash() = %d, want %d", found, id)
		}
		live, _ := c.GetItemIDsByHash("h1", 100)
		if len(live) != 0 {
			t.Errorf("GetItemIDsByHash() = %v, want none", live)
		}
	})

	t.Run("move item clears destination", func(t *testing.T) {
		c := newTestCatalog(t)
		root, a := addRootAndAlbum(t, c, "/a")
		b, _ := c.AddAlbum(root.ID, "/b", time.Time{})
		moving := addItem(t, c, a, "x.jpg", "h1")
		occupant := addItem(t, c, b, "y.jpg", "h2")

		if err := c.MoveItem(moving, b, "y.jpg"); err != nil {
			t.Fatalf("MoveItem() error = %v", err)
		}
		if info, _ := c.GetItemScanInfo(occupant); info != nil {
			t.Errorf("occupant still present: %+v", info)
		}
		id, _ := c.GetImageID(b, "y.jpg")
		if id != moving {
			t.Errorf("GetImageID() = %d, want %d", id, moving)
		}
	})

	t.Run("location", func(t *testing.T) {
		c := newTestCatalog(t)
		_, album := addRootAndAlbum(t, c, "/2020/trip")
		id := addItem(t, c, album, "x.jpg", "h1")

		loc, err := c.GetItemLocation(id)
		if err != nil || loc == nil {
			t.Fatalf("GetItemLocation() = %v, %v", loc, err)
		}
		if loc.FilePath() != "/photos/2020/trip/x.jpg" {
			t.Errorf("FilePath() = %q", loc.FilePath())
		}

		c.RemoveItems([]int64{id})
		loc, _ = c.GetItemLocation(id)
		if loc != nil {
			t.Errorf("GetItemLocation() of removed item = %+v, want nil", loc)
		}
	})

	t.Run("copy attributes", func(t *testing.T) {
		c := newTestCatalog(t)
		_, album := addRootAndAlbum(t, c, "/a")
		src := addItem(t, c, album, "src.jpg", "h1")
		dst := addItem(t, c, album, "dst.jpg", "h1")
		other := addItem(t, c, album, "other.jpg", "h3")

		c.AddItemTag(src, "people/alice")
		c.SetItemComment(src, "beach")
		c.SetItemPosition(src, 48.1, 11.5)
		c.SetItemHistory(src, "uuid-1", "{}")
		c.AddRelation(src, other, collection.RelationDerivedFrom)
		created := time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC)
		c.SetItemCreationDate(src, created)

		if err := c.CopyItemAttributes(src, dst); err != nil {
			t.Fatalf("CopyItemAttributes() error = %v", err)
		}

		tags, _ := c.GetItemTags(dst)
		if !reflect.DeepEqual(tags, []string{"people/alice"}) {
			t.Errorf("tags = %v", tags)
		}
		if comment, _ := c.GetItemComment(dst); comment != "beach" {
			t.Errorf("comment = %q", comment)
		}
		if h, _ := c.GetItemHistory(dst); h == nil || h.UUID != "uuid-1" {
			t.Errorf("history = %+v", h)
		}
		if d, _ := c.GetItemCreationDate(dst); !d.Equal(created) {
			t.Errorf("creation date = %v, want %v", d, created)
		}
		cloud, _ := c.GetRelationCloud(dst, collection.RelationDerivedFrom)
		if len(cloud) != 2 {
			t.Errorf("relation cloud = %v, want 2 edges", cloud)
		}
	})

	t.Run("delete obsolete", func(t *testing.T) {
		c := newTestCatalog(t)
		_, album := addRootAndAlbum(t, c, "/a")
		id := addItem(t, c, album, "x.jpg", "h1")
		c.SetItemStatus(id, collection.StatusObsolete)

		n, err := c.DeleteObsoleteItems()
		if err != nil || n != 1 {
			t.Errorf("DeleteObsoleteItems() = %d, %v; want 1, nil", n, err)
		}
	})
}

func TestSQLiteCatalog_DeleteAlbumRoot(t *testing.T) {
	c := newTestCatalog(t)
	root, album := addRootAndAlbum(t, c, "/a")
	item := addItem(t, c, album, "x.jpg", "h1")

	if err := c.DeleteAlbumRoot(root.ID); err != nil {
		t.Fatalf("DeleteAlbumRoot() error = %v", err)
	}
	roots, _ := c.ListAlbumRoots()
	if len(roots) != 0 {
		t.Errorf("roots = %v, want none", roots)
	}
	info, _ := c.GetItemScanInfo(item)
	if info.Status != collection.StatusTrashed {
		t.Errorf("item status = %v, want trashed", info.Status)
	}
}

func TestSQLiteCatalog_TagsAndSettings(t *testing.T) {
	c := newTestCatalog(t)
	_, album := addRootAndAlbum(t, c, "/a")
	id := addItem(t, c, album, "x.jpg", "h1")

	if err := c.AddItemTag(id, collection.TagNeedResolvingHistory); err != nil {
		t.Fatalf("AddItemTag() error = %v", err)
	}
	c.AddItemTag(id, collection.TagNeedResolvingHistory)
	ids, _ := c.GetItemIDsInTag(collection.TagNeedResolvingHistory)
	if !reflect.DeepEqual(ids, []int64{id}) {
		t.Errorf("GetItemIDsInTag() = %v", ids)
	}
	c.RemoveItemTag(id, collection.TagNeedResolvingHistory)
	ids, _ = c.GetItemIDsInTag(collection.TagNeedResolvingHistory)
	if len(ids) != 0 {
		t.Errorf("after remove = %v", ids)
	}

	v, err := c.GetSetting("missing")
	if err != nil || v != "" {
		t.Errorf("GetSetting(missing) = %q, %v", v, err)
	}
	c.SetSetting("k", "1")
	c.SetSetting("k", "2")
	if v, _ := c.GetSetting("k"); v != "2" {
		t.Errorf("GetSetting(k) = %q, want 2", v)
	}
}

func TestSQLiteCatalog_InTransaction(t *testing.T) {
	t.Run("rollback on error", func(t *testing.T) {
		c := newTestCatalog(t)
		boom := errors.New("boom")
		err := c.InTransaction(func(tx collection.Catalog) error {
			if err := tx.SetSetting("k", "v"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTransaction() = %v, want boom", err)
		}
		if v, _ := c.GetSetting("k"); v != "" {
			t.Errorf("setting survived rollback: %q", v)
		}
	})

	t.Run("nested calls join", func(t *testing.T) {
		c := newTestCatalog(t)
		err := c.InTransaction(func(tx collection.Catalog) error {
			return tx.InTransaction(func(inner collection.Catalog) error {
				return inner.SetSetting("k", "v")
			})
		})
		if err != nil {
			t.Fatalf("InTransaction() = %v", err)
		}
		if v, _ := c.GetSetting("k"); v != "v" {
			t.Errorf("GetSetting() = %q, want v", v)
		}
	})
}

func TestSQLiteThumbnailStore(t *testing.T) {
	c := newTestCatalog(t)
	store := NewSQLiteThumbnailStore(c)

	id, err := store.InsertThumbnail("h1", 10, &model.Thumbnail{Width: 4, Height: 3, Data: []byte{1, 2}})
	if err != nil {
		t.Fatalf("InsertThumbnail() error = %v", err)
	}
	if got, _ := store.FindByHash("h1", 10); got != id {
		t.Errorf("FindByHash() = %d, want %d", got, id)
	}

	if err := store.InsertUniqueHash("h2", 11, id); err != nil {
		t.Fatalf("InsertUniqueHash() error = %v", err)
	}
	if err := store.ReplaceUniqueHash("h1", 10, "h3", 12); err != nil {
		t.Fatalf("ReplaceUniqueHash() error = %v", err)
	}
	if got, _ := store.FindByHash("h1", 10); got != 0 {
		t.Errorf("old key still resolves to %d", got)
	}
	for _, key := range []struct {
		hash string
		size int64
	}{{"h2", 11}, {"h3", 12}} {
		if got, _ := store.FindByHash(key.hash, key.size); got != id {
			t.Errorf("FindByHash(%s) = %d, want %d", key.hash, got, id)
		}
	}

	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.UpdateModificationDate(id, mod)
	th, _ := store.GetThumbnail("h3", 12)
	if th == nil || !th.ModificationDate.Equal(mod) || th.Width != 4 {
		t.Errorf("GetThumbnail() = %+v", th)
	}
}

func TestSQLiteCatalog_ScanOperations(t *testing.T) {
	c := newTestCatalog(t)

	if max, _ := c.MaxScanOperationID(); max != 0 {
		t.Errorf("MaxScanOperationID() on empty = %d", max)
	}
	op, err := c.CreateScanOperation("CompleteScan", "")
	if err != nil {
		t.Fatalf("CreateScanOperation() error = %v", err)
	}
	if err := c.FinishScanOperation(op.ID, "success"); err != nil {
		t.Fatalf("FinishScanOperation() error = %v", err)
	}

	ops, err := c.ListScanOperations(10)
	if err != nil || len(ops) != 1 {
		t.Fatalf("ListScanOperations() = %v, %v", ops, err)
	}
	if ops[0].Status != "success" || ops[0].FinishedAt == nil {
		t.Errorf("operation = %+v", ops[0])
	}
	if max, _ := c.MaxScanOperationID(); max != op.ID {
		t.Errorf("MaxScanOperationID() = %d, want %d", max, op.ID)
	}
}

func TestSQLiteCatalog_BackupTo(t *testing.T) {
	c := newTestCatalog(t)
	c.SetSetting("k", "v")

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := c.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteCatalog(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()
	if v, _ := restored.GetSetting("k"); v != "v" {
		t.Errorf("backup setting = %q, want v", v)
	}
}
