package history_test

import (
	"sort"
	"testing"
	"time"

	"colsync/internal/collection"
	"colsync/internal/database"
	"colsync/internal/history"
	"colsync/internal/testutil"
)

func addItem(t *testing.T, c *database.SQLiteCatalog, album int64, name, hash string) int64 {
	t.Helper()
	id, err := c.AddItem(&collection.ItemScanInfo{
		AlbumID: album, Name: name, Status: collection.StatusVisible,
		Category: collection.CategoryImage, ModificationDate: testutil.DefaultModTime,
		FileSize: 10, UniqueHash: hash,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func setup(t *testing.T) (*database.SQLiteCatalog, int64) {
	t.Helper()
	c := testutil.NewTestCatalog(t)
	root := testutil.AddAlbumRoot(t, c, "/photos")
	album, err := c.AddAlbum(root.ID, "/a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	return c, album
}

func tagged(t *testing.T, c *database.SQLiteCatalog, tag string) []int64 {
	t.Helper()
	ids, err := c.GetItemIDsInTag(tag)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestResolver_ResolveAndTag(t *testing.T) {
	c, album := setup(t)
	r := history.NewResolver(collection.NewNopLogger())

	orig := addItem(t, c, album, "orig.jpg", "h-orig")
	c.SetItemHistory(orig, "u-orig", `{"uuid":"u-orig"}`)
	mid := addItem(t, c, album, "mid.jpg", "h-mid")
	c.SetItemHistory(mid, "u-mid", `{"uuid":"u-mid","derived_from":[{"uuid":"u-orig"}]}`)
	c.AddItemTag(mid, collection.TagNeedResolvingHistory)
	cur := addItem(t, c, album, "cur.jpg", "h-cur")
	c.SetItemHistory(cur, "u-cur", `{"uuid":"u-cur","derived_from":[{"hash":"h-mid","size":10}]}`)
	c.AddItemTag(cur, collection.TagNeedResolvingHistory)

	for _, id := range []int64{mid, cur} {
		ids, err := r.ResolveHistory(c, id)
		if err != nil {
			t.Fatalf("ResolveHistory(%d) error = %v", id, err)
		}
		if len(ids) != 1 || ids[0] != id {
			t.Errorf("ResolveHistory(%d) = %v", id, ids)
		}
	}
	if ids := tagged(t, c, collection.TagNeedResolvingHistory); len(ids) != 0 {
		t.Errorf("still needs resolving: %v", ids)
	}

	if err := r.TagHistoryGraph(c, cur); err != nil {
		t.Fatalf("TagHistoryGraph() error = %v", err)
	}

	checks := map[string][]int64{
		collection.TagOriginalVersion:         {orig},
		collection.TagIntermediateVersion:     {mid},
		collection.TagCurrentVersion:          {cur},
		collection.TagNeedTaggingHistoryGraph: nil,
	}
	for tag, want := range checks {
		got := tagged(t, c, tag)
		if len(got) != len(want) {
			t.Errorf("%s = %v, want %v", tag, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s = %v, want %v", tag, got, want)
			}
		}
	}
}

func TestResolver_UnresolvedReferenceKeepsMarker(t *testing.T) {
	c, album := setup(t)
	r := history.NewResolver(collection.NewNopLogger())

	id := addItem(t, c, album, "x.jpg", "h")
	c.SetItemHistory(id, "u-x", `{"uuid":"u-x","derived_from":[{"uuid":"unknown"}]}`)
	c.AddItemTag(id, collection.TagNeedResolvingHistory)

	ids, err := r.ResolveHistory(c, id)
	if err != nil {
		t.Fatalf("ResolveHistory() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ResolveHistory() = %v, want none", ids)
	}
	if got := tagged(t, c, collection.TagNeedResolvingHistory); len(got) != 1 {
		t.Errorf("needResolving = %v, want marker kept", got)
	}
}

func TestResolver_SingleVertexGetsNoRole(t *testing.T) {
	c, album := setup(t)
	r := history.NewResolver(collection.NewNopLogger())

	id := addItem(t, c, album, "x.jpg", "h")
	c.AddItemTag(id, collection.TagNeedTaggingHistoryGraph)

	if err := r.TagHistoryGraph(c, id); err != nil {
		t.Fatalf("TagHistoryGraph() error = %v", err)
	}
	tags, _ := c.GetItemTags(id)
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestResolver_MissingHistoryClearsMarker(t *testing.T) {
	c, album := setup(t)
	r := history.NewResolver(collection.NewNopLogger())

	id := addItem(t, c, album, "x.jpg", "h")
	c.AddItemTag(id, collection.TagNeedResolvingHistory)
	if _, err := r.ResolveHistory(c, id); err != nil {
		t.Fatalf("ResolveHistory() error = %v", err)
	}
	if got := tagged(t, c, collection.TagNeedResolvingHistory); len(got) != 0 {
		t.Errorf("needResolving = %v", got)
	}
}
