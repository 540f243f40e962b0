package collection

import (
	"io/fs"
	"path"
	"time"
)

// scanFileNormal decides how a file matched by name has changed and applies
// the matching update. Pending hints take precedence over the timestamp
// and size comparison.
func (r *scanRun) scanFileNormal(filePath string, info fs.FileInfo, scanInfo ItemScanInfo, category Category, checkSidecar bool) {
	id := scanInfo.ID
	h := r.hints
	info = r.effectiveInfo(filePath, info, checkSidecar)

	if scanInfo.ModificationDate.IsZero() || (h != nil && h.HasRescanHint(id)) {
		if h != nil {
			h.consumeRescanHint(id)
		}
		r.rescanFile(filePath, info, scanInfo, category)
		return
	}

	if h != nil && h.HasModificationHint(id) {
		h.consumeModificationHint(id)
		r.scanModifiedFile(filePath, info, scanInfo, category)
		return
	}

	if h != nil && h.HasMetadataAboutToAdjustHint(id) {
		// The edit is still in progress; the next scan picks it up.
		return
	}

	if h != nil && h.HasMetadataAdjustedHint(id) {
		h.consumeAdjustedHint(id)
		r.scanFileUpdateHashReuseThumbnail(filePath, info, scanInfo, category, true)
		return
	}

	unchanged := ModificationDateEquals(info.ModTime(), scanInfo.ModificationDate) && info.Size() == scanInfo.FileSize

	if r.settings.UpdatingHash && unchanged {
		r.scanFileUpdateHashReuseThumbnail(filePath, info, scanInfo, category, false)
		return
	}

	if unchanged {
		return
	}
	if r.settings.RescanIfModified {
		r.cleanScanFile(filePath, info, scanInfo, category)
	} else {
		r.scanModifiedFile(filePath, info, scanInfo, category)
	}
}

// scanNewFile resolves the identity of a file not yet in its album and
// returns the item id (or -1) together with the content creation date.
func (r *scanRun) scanNewFile(filePath string, info fs.FileInfo, albumID int64, category Category) (int64, time.Time) {
	if r.checkDeferred(filePath) {
		return -1, time.Time{}
	}

	sc := r.scanners.NewItemScanner(filePath, info, nil)
	sc.SetCategory(category)

	name := path.Base(filePath)
	var srcID int64
	if r.hints != nil {
		srcID, _ = r.hints.TakeItemHint(NewlyAppearedFile{AlbumID: albumID, FileName: name})
	}
	if srcID == 0 {
		if srcAlbum, ok := r.establishedSourceAlbums[albumID]; ok {
			id, err := r.catalog.GetImageID(srcAlbum, name)
			if err != nil {
				r.logger.Warn("looking up item in source album", "album", srcAlbum, "name", name, "error", err)
			}
			srcID = id
		}
	}

	var err error
	if srcID != 0 {
		err = sc.CopiedFrom(albumID, srcID)
	} else {
		err = sc.NewFile(albumID)
	}
	if err != nil {
		r.logger.Warn("scanning new file", "path", filePath, "error", err)
		return -1, time.Time{}
	}
	if !r.finishScanner(sc) {
		return -1, time.Time{}
	}

	r.newIDs = append(r.newIDs, sc.ID())
	return sc.ID(), sc.CreationDate()
}

func (r *scanRun) scanNewFileFullScan(filePath string, info fs.FileInfo, albumID int64, category Category) int64 {
	if r.checkDeferred(filePath) {
		return -1
	}

	sc := r.scanners.NewItemScanner(filePath, info, nil)
	sc.SetCategory(category)
	if err := sc.NewFileFullScan(albumID); err != nil {
		r.logger.Warn("scanning new file", "path", filePath, "error", err)
		return -1
	}
	if !r.finishScanner(sc) {
		return -1
	}
	r.newIDs = append(r.newIDs, sc.ID())
	return sc.ID()
}

func (r *scanRun) scanModifiedFile(filePath string, info fs.FileInfo, scanInfo ItemScanInfo, category Category) {
	if r.checkDeferred(filePath) {
		return
	}

	sc := r.scanners.NewItemScanner(filePath, info, &scanInfo)
	sc.SetCategory(category)
	if err := sc.FileModified(); err != nil {
		r.logger.Warn("scanning modified file", "path", filePath, "error", err)
		return
	}
	r.finishScanner(sc)
}

// scanFileUpdateHashReuseThumbnail refreshes the record of a file whose
// pixels did not change and keeps its thumbnail under the new identity.
// After an edit the old identity stays valid for other copies, so the
// thumbnail gets a second key; otherwise it is re-keyed.
func (r *scanRun) scanFileUpdateHashReuseThumbnail(filePath string, info fs.FileInfo, scanInfo ItemScanInfo, category Category, fileWasEdited bool) {
	oldHash, oldSize := scanInfo.UniqueHash, scanInfo.FileSize

	sc := r.scanners.NewItemScanner(filePath, info, &scanInfo)
	sc.SetCategory(category)
	if err := sc.FileModified(); err != nil {
		r.logger.Warn("updating file hash", "path", filePath, "error", err)
		return
	}
	if !r.finishScanner(sc) {
		return
	}

	if r.thumbs == nil {
		return
	}
	updated := sc.ScanInfo()
	if fileWasEdited {
		thumbID, err := r.thumbs.FindByHash(oldHash, oldSize)
		if err != nil || thumbID == 0 {
			return
		}
		if err := r.thumbs.InsertUniqueHash(updated.UniqueHash, updated.FileSize, thumbID); err != nil {
			r.logger.Warn("linking thumbnail to new hash", "path", filePath, "error", err)
			return
		}
		if err := r.thumbs.UpdateModificationDate(thumbID, updated.ModificationDate); err != nil {
			r.logger.Warn("updating thumbnail date", "path", filePath, "error", err)
		}
		return
	}
	if err := r.thumbs.ReplaceUniqueHash(oldHash, oldSize, updated.UniqueHash, updated.FileSize); err != nil {
		r.logger.Warn("re-keying thumbnail", "path", filePath, "error", err)
	}
}

func (r *scanRun) cleanScanFile(filePath string, info fs.FileInfo, scanInfo ItemScanInfo, category Category) {
	if r.checkDeferred(filePath) {
		return
	}

	sc := r.scanners.NewItemScanner(filePath, info, &scanInfo)
	sc.SetCategory(category)
	if err := sc.CleanScan(); err != nil {
		r.logger.Warn("clean scanning file", "path", filePath, "error", err)
		return
	}
	r.finishScanner(sc)
}

func (r *scanRun) rescanFile(filePath string, info fs.FileInfo, scanInfo ItemScanInfo, category Category) {
	if r.checkDeferred(filePath) {
		return
	}

	sc := r.scanners.NewItemScanner(filePath, info, &scanInfo)
	sc.SetCategory(category)
	if err := sc.Rescan(); err != nil {
		r.logger.Warn("rescanning file", "path", filePath, "error", err)
		return
	}
	r.finishScanner(sc)
}

func (r *scanRun) finishScanner(sc ItemScanner) bool {
	if err := sc.Commit(); err != nil {
		r.logger.Warn("committing item", "id", sc.ID(), "error", err)
		return false
	}
	if r.recordHistoryIDs && sc.HasHistoryToResolve() {
		r.needResolveHistory[sc.ID()] = struct{}{}
	}
	return true
}

// checkDeferred records the album of filePath when file scanning is
// deferred and reports whether the file must be skipped.
func (r *scanRun) checkDeferred(filePath string) bool {
	if !r.deferredFileScanning {
		return false
	}
	r.deferredAlbumPaths[path.Dir(filePath)] = struct{}{}
	return true
}

// effectiveInfo extends the file mtime with a newer sidecar mtime when
// sidecar-aware timestamps are enabled.
func (r *scanRun) effectiveInfo(filePath string, info fs.FileInfo, checkSidecar bool) fs.FileInfo {
	if !checkSidecar || !r.settings.UpdateFileTimestamp {
		return info
	}
	sidecar := r.sidecarInfo(filePath)
	if sidecar == nil || !sidecar.ModTime().After(info.ModTime()) {
		return info
	}
	return sidecarExtendedInfo{FileInfo: info, modTime: sidecar.ModTime()}
}

type sidecarExtendedInfo struct {
	fs.FileInfo
	modTime time.Time
}

func (i sidecarExtendedInfo) ModTime() time.Time { return i.modTime }
