package collection

import (
	"sync"
	"time"
)

// DstPath identifies an album location by root and relative path.
type DstPath struct {
	AlbumRootID  int64
	RelativePath string
}

// AlbumSource identifies the album a hinted album was copied or moved from.
type AlbumSource struct {
	AlbumID     int64
	AlbumRootID int64
}

// AlbumCopyMoveHint announces that the album SrcAlbumID is about to appear
// at Dst, either renamed/moved or copied.
type AlbumCopyMoveHint struct {
	SrcAlbumID     int64
	SrcAlbumRootID int64
	Dst            DstPath
}

// ItemCopyMoveHint announces that the items SrcIDs are about to appear in
// DstAlbumID under DstNames. SrcIDs and DstNames are paired by position.
type ItemCopyMoveHint struct {
	SrcIDs     []int64
	DstAlbumID int64
	DstNames   []string
}

// ItemChangeKind tells the scanner how an item changed.
type ItemChangeKind int

const (
	// ItemModified requests the lightweight modified-file update.
	ItemModified ItemChangeKind = iota
	// ItemRescan requests a full rescan.
	ItemRescan
)

// ItemChangeHint announces a change to existing items.
type ItemChangeHint struct {
	IDs  []int64
	Kind ItemChangeKind
}

// AdjustmentPhase is the stage of a metadata edit.
type AdjustmentPhase int

const (
	AboutToEdit AdjustmentPhase = iota
	EditingFinished
	EditingAborted
)

// ItemMetadataAdjustmentHint brackets a metadata-only edit of one item.
// For AboutToEdit, ModificationDate and FileSize are the values the file has
// before the edit; for EditingFinished they are the values after it.
type ItemMetadataAdjustmentHint struct {
	ID               int64
	Phase            AdjustmentPhase
	ModificationDate time.Time
	FileSize         int64
}

// NewlyAppearedFile keys an item copy/move hint by destination.
type NewlyAppearedFile struct {
	AlbumID  int64
	FileName string
}

// ItemStateLookup reads the catalog's current view of an item.
type ItemStateLookup interface {
	GetItemScanInfo(id int64) (*ItemScanInfo, error)
}

// HintStore holds expectations registered by file operations so the scanner
// can skip expensive identity resolution. It is safe for concurrent use:
// one goroutine may record hints while another runs a scan.
//
// Hints carry no scan generation. Callers record a hint before performing
// the filesystem operation it describes and start the scan afterwards.
type HintStore struct {
	lookup ItemStateLookup

	mu                sync.RWMutex
	albumHints        map[DstPath]AlbumSource
	itemHints         map[NewlyAppearedFile]int64
	modifiedItemHints map[int64]struct{}
	rescanItemHints   map[int64]struct{}
	aboutToAdjust     map[int64]time.Time
	adjusted          map[int64]time.Time
}

// NewHintStore creates an empty store. lookup is consulted when an
// about-to-edit hint is recorded.
func NewHintStore(lookup ItemStateLookup) *HintStore {
	h := &HintStore{lookup: lookup}
	h.reset()
	return h
}

func (h *HintStore) reset() {
	h.albumHints = make(map[DstPath]AlbumSource)
	h.itemHints = make(map[NewlyAppearedFile]int64)
	h.modifiedItemHints = make(map[int64]struct{})
	h.rescanItemHints = make(map[int64]struct{})
	h.aboutToAdjust = make(map[int64]time.Time)
	h.adjusted = make(map[int64]time.Time)
}

// RecordAlbumHints stores album copy/move hints keyed by destination.
func (h *HintStore) RecordAlbumHints(hints ...AlbumCopyMoveHint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hint := range hints {
		h.albumHints[hint.Dst] = AlbumSource{AlbumID: hint.SrcAlbumID, AlbumRootID: hint.SrcAlbumRootID}
	}
}

// RecordItemHints stores one entry per (destination album, destination name).
func (h *HintStore) RecordItemHints(hints ...ItemCopyMoveHint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hint := range hints {
		n := min(len(hint.SrcIDs), len(hint.DstNames))
		for i := 0; i < n; i++ {
			h.itemHints[NewlyAppearedFile{AlbumID: hint.DstAlbumID, FileName: hint.DstNames[i]}] = hint.SrcIDs[i]
		}
	}
}

// RecordChangeHints stores modified or rescan requests per item id.
func (h *HintStore) RecordChangeHints(hints ...ItemChangeHint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hint := range hints {
		for _, id := range hint.IDs {
			if hint.Kind == ItemModified {
				h.modifiedItemHints[id] = struct{}{}
			} else {
				h.rescanItemHints[id] = struct{}{}
			}
		}
	}
}

// RecordAdjustmentHint advances the metadata edit state of one item and
// reports whether the hint was accepted.
//
// AboutToEdit is refused when the catalog's modification date or size no
// longer matches the hint; the regular divergence check will then rescan
// the file. EditingFinished without a pending AboutToEdit is dropped.
func (h *HintStore) RecordAdjustmentHint(hint ItemMetadataAdjustmentHint) bool {
	switch hint.Phase {
	case AboutToEdit:
		// The catalog is read without holding the lock.
		if h.lookup == nil {
			return false
		}
		info, err := h.lookup.GetItemScanInfo(hint.ID)
		if err != nil || info == nil {
			return false
		}
		if !ModificationDateEquals(hint.ModificationDate, info.ModificationDate) || hint.FileSize != info.FileSize {
			return false
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.aboutToAdjust[hint.ID] = hint.ModificationDate
		return true

	case EditingFinished:
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.aboutToAdjust[hint.ID]; !ok {
			return false
		}
		delete(h.aboutToAdjust, hint.ID)
		h.adjusted[hint.ID] = hint.ModificationDate
		return true

	default:
		h.mu.Lock()
		defer h.mu.Unlock()
		_, ok := h.aboutToAdjust[hint.ID]
		delete(h.aboutToAdjust, hint.ID)
		return ok
	}
}

// Clear drops all hints.
func (h *HintStore) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
}

// HasAlbumHints reports whether any album copy/move hint is pending.
func (h *HintStore) HasAlbumHints() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.albumHints) > 0
}

// HasAnyNormalHint reports whether any per-item hint is pending for id.
func (h *HintStore) HasAnyNormalHint(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, modified := h.modifiedItemHints[id]
	_, rescan := h.rescanItemHints[id]
	_, about := h.aboutToAdjust[id]
	_, adjusted := h.adjusted[id]
	return modified || rescan || about || adjusted
}

// HasModificationHint reports whether id is marked as modified.
func (h *HintStore) HasModificationHint(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.modifiedItemHints[id]
	return ok
}

// HasRescanHint reports whether id is marked for a full rescan.
func (h *HintStore) HasRescanHint(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rescanItemHints[id]
	return ok
}

// HasMetadataAboutToAdjustHint reports whether a metadata edit of id is in progress.
func (h *HintStore) HasMetadataAboutToAdjustHint(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.aboutToAdjust[id]
	return ok
}

// HasMetadataAdjustedHint reports whether a finished metadata edit of id awaits scanning.
func (h *HintStore) HasMetadataAdjustedHint(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.adjusted[id]
	return ok
}

// AlbumHints returns a copy of the pending album hints.
func (h *HintStore) AlbumHints() map[DstPath]AlbumSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[DstPath]AlbumSource, len(h.albumHints))
	for k, v := range h.albumHints {
		out[k] = v
	}
	return out
}

// AlbumHint returns the source of the album expected at dst.
func (h *HintStore) AlbumHint(dst DstPath) (AlbumSource, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src, ok := h.albumHints[dst]
	return src, ok
}

// RemoveAlbumHint drops the hint for dst once it has been acted upon.
func (h *HintStore) RemoveAlbumHint(dst DstPath) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.albumHints, dst)
}

// TakeItemHint returns and consumes the source id expected for file.
func (h *HintStore) TakeItemHint(file NewlyAppearedFile) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.itemHints[file]
	if ok {
		delete(h.itemHints, file)
	}
	return id, ok
}

func (h *HintStore) consumeRescanHint(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rescanItemHints, id)
}

func (h *HintStore) consumeModificationHint(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.modifiedItemHints, id)
}

func (h *HintStore) consumeAdjustedHint(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.adjusted, id)
}
