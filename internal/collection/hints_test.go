package collection_test

import (
	"sync"
	"testing"
	"time"

	"colsync/internal/collection"
)

type stateLookup map[int64]*collection.ItemScanInfo

func (l stateLookup) GetItemScanInfo(id int64) (*collection.ItemScanInfo, error) {
	return l[id], nil
}

func TestHintStore_AlbumHints(t *testing.T) {
	h := collection.NewHintStore(nil)
	dst := collection.DstPath{AlbumRootID: 1, RelativePath: "/new"}
	h.RecordAlbumHints(collection.AlbumCopyMoveHint{SrcAlbumID: 7, SrcAlbumRootID: 2, Dst: dst})

	if !h.HasAlbumHints() {
		t.Fatal("HasAlbumHints() = false")
	}
	src, ok := h.AlbumHint(dst)
	if !ok || src.AlbumID != 7 || src.AlbumRootID != 2 {
		t.Errorf("AlbumHint() = %+v, %v", src, ok)
	}

	all := h.AlbumHints()
	delete(all, dst)
	if !h.HasAlbumHints() {
		t.Error("mutating the returned map changed the store")
	}

	h.RemoveAlbumHint(dst)
	if h.HasAlbumHints() {
		t.Error("RemoveAlbumHint() left the hint in place")
	}
}

func TestHintStore_ItemHints(t *testing.T) {
	h := collection.NewHintStore(nil)
	h.RecordItemHints(collection.ItemCopyMoveHint{
		SrcIDs:     []int64{10, 11},
		DstAlbumID: 3,
		DstNames:   []string{"a.jpg", "b.jpg"},
	})

	id, ok := h.TakeItemHint(collection.NewlyAppearedFile{AlbumID: 3, FileName: "b.jpg"})
	if !ok || id != 11 {
		t.Fatalf("TakeItemHint(b.jpg) = %d, %v; want 11", id, ok)
	}
	if _, ok := h.TakeItemHint(collection.NewlyAppearedFile{AlbumID: 3, FileName: "b.jpg"}); ok {
		t.Error("item hint should be consumed")
	}
	if _, ok := h.TakeItemHint(collection.NewlyAppearedFile{AlbumID: 4, FileName: "a.jpg"}); ok {
		t.Error("hint matched the wrong album")
	}
}

func TestHintStore_ChangeHints(t *testing.T) {
	h := collection.NewHintStore(nil)
	h.RecordChangeHints(
		collection.ItemChangeHint{IDs: []int64{1}, Kind: collection.ItemModified},
		collection.ItemChangeHint{IDs: []int64{2}, Kind: collection.ItemRescan},
	)

	if !h.HasModificationHint(1) || h.HasRescanHint(1) {
		t.Error("item 1 should only carry a modification hint")
	}
	if !h.HasRescanHint(2) || h.HasModificationHint(2) {
		t.Error("item 2 should only carry a rescan hint")
	}
	if !h.HasAnyNormalHint(1) || h.HasAnyNormalHint(3) {
		t.Error("HasAnyNormalHint() mismatch")
	}

	h.Clear()
	if h.HasAnyNormalHint(1) || h.HasAnyNormalHint(2) {
		t.Error("Clear() left item hints")
	}
}

func TestHintStore_AdjustmentHints(t *testing.T) {
	mod := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lookup := stateLookup{5: {ID: 5, ModificationDate: mod, FileSize: 100}}

	t.Run("about to edit then finished", func(t *testing.T) {
		h := collection.NewHintStore(lookup)
		if !h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.AboutToEdit, ModificationDate: mod, FileSize: 100}) {
			t.Fatal("AboutToEdit refused for matching state")
		}
		if !h.HasMetadataAboutToAdjustHint(5) {
			t.Error("HasMetadataAboutToAdjustHint() = false")
		}
		if !h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.EditingFinished, ModificationDate: mod.Add(time.Minute), FileSize: 120}) {
			t.Fatal("EditingFinished refused")
		}
		if h.HasMetadataAboutToAdjustHint(5) || !h.HasMetadataAdjustedHint(5) {
			t.Error("EditingFinished should replace the pending edit")
		}
	})

	t.Run("about to edit with stale state", func(t *testing.T) {
		h := collection.NewHintStore(lookup)
		if h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.AboutToEdit, ModificationDate: mod.Add(time.Hour), FileSize: 100}) {
			t.Error("AboutToEdit accepted with diverging mtime")
		}
		if h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.AboutToEdit, ModificationDate: mod, FileSize: 99}) {
			t.Error("AboutToEdit accepted with diverging size")
		}
		if h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 6, Phase: collection.AboutToEdit, ModificationDate: mod, FileSize: 100}) {
			t.Error("AboutToEdit accepted for unknown item")
		}
	})

	t.Run("finished without start", func(t *testing.T) {
		h := collection.NewHintStore(lookup)
		if h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.EditingFinished, ModificationDate: mod}) {
			t.Error("EditingFinished accepted without AboutToEdit")
		}
	})

	t.Run("aborted", func(t *testing.T) {
		h := collection.NewHintStore(lookup)
		h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.AboutToEdit, ModificationDate: mod, FileSize: 100})
		if !h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.EditingAborted}) {
			t.Error("EditingAborted should report the dropped edit")
		}
		if h.HasAnyNormalHint(5) {
			t.Error("aborted edit left hints behind")
		}
	})

	t.Run("no lookup", func(t *testing.T) {
		h := collection.NewHintStore(nil)
		if h.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: 5, Phase: collection.AboutToEdit, ModificationDate: mod, FileSize: 100}) {
			t.Error("AboutToEdit accepted without a catalog lookup")
		}
	})
}

func TestHintStore_ConcurrentUse(t *testing.T) {
	h := collection.NewHintStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := int64(i)
			h.RecordChangeHints(collection.ItemChangeHint{IDs: []int64{id}, Kind: collection.ItemRescan})
			h.RecordAlbumHints(collection.AlbumCopyMoveHint{SrcAlbumID: id, Dst: collection.DstPath{AlbumRootID: 1, RelativePath: "/x"}})
			_ = h.HasRescanHint(id)
			_ = h.AlbumHints()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if !h.HasRescanHint(int64(i)) {
			t.Errorf("rescan hint %d lost", i)
		}
	}
}
