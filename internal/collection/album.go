package collection

import (
	"io/fs"
	"sort"
	"strings"
	"time"
)

func (r *scanRun) scanAlbumRoot(root *AlbumRoot) {
	r.progress.StartScanningAlbumRoot(root.Path)
	defer r.progress.FinishedScanningAlbumRoot(root.Path)

	var pathDateMap map[string]time.Time
	if r.settings.FastScan {
		m, err := r.catalog.GetAlbumModificationMap(root.ID)
		if err != nil {
			r.logger.Warn("reading album modification dates", "root", root.Path, "error", err)
		}
		pathDateMap = m
	}

	if len(pathDateMap) == 0 {
		r.scanAlbum(root, RootAlbumPath, false)
		return
	}

	// Parents sort before their children, so a changed parent has already
	// scanned its sub-albums by the time they come up.
	paths := make([]string, 0, len(pathDateMap))
	for p := range pathDateMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, album := range paths {
		if !r.checkObserver() {
			return
		}
		albumID, err := r.catalog.GetAlbumForPath(root.ID, album)
		if err != nil {
			r.logger.Warn("looking up album", "album", album, "error", err)
			continue
		}
		if _, done := r.scannedAlbums[albumID]; done && albumID != 0 {
			continue
		}

		dirPath := root.AlbumPath(album)
		modified, ok := r.albumDateCache[dirPath]
		if !ok {
			if info, err := r.fsmgr.Stat(dirPath); err == nil {
				modified = info.ModTime()
			}
		}

		if ModificationDateEquals(modified, pathDateMap[album]) {
			count, err := r.catalog.GetNumberOfItemsInAlbum(albumID)
			if err != nil {
				r.logger.Warn("counting album items", "album", album, "error", err)
			}
			r.scannedAlbums[albumID] = struct{}{}
			r.progress.ScannedFiles(count + 1)
			continue
		}
		r.scanAlbum(root, album, true)
	}
}

// scanAlbum reconciles one directory with its album and recurses into
// sub-directories. With checkDate, an album whose directory mtime matches
// the recorded one is skipped.
func (r *scanRun) scanAlbum(root *AlbumRoot, album string, checkDate bool) {
	if r.cancelled {
		return
	}
	dirPath := root.AlbumPath(album)

	dirInfo, err := r.fsmgr.Stat(dirPath)
	if err != nil || !dirInfo.IsDir() {
		r.logger.Warn("folder does not exist or is not readable", "path", dirPath)
		return
	}
	entries, err := r.fsmgr.ReadDir(dirPath)
	if err != nil {
		r.logger.Warn("folder is not readable", "path", dirPath, "error", err)
		return
	}

	r.progress.StartScanningAlbum(root.Path, album)

	albumID, err := r.checkAlbum(root, album, dirInfo.ModTime())
	if err != nil {
		r.logger.Warn("checking album", "path", dirPath, "error", err)
		return
	}

	var albumModified time.Time
	if a, err := r.catalog.GetAlbum(albumID); err == nil && a != nil {
		albumModified = a.ModificationDate
	}
	dirModified := dirInfo.ModTime()

	if checkDate && ModificationDateEquals(dirModified, albumModified) {
		r.scannedAlbums[albumID] = struct{}{}
		r.progress.FinishedScanningAlbum(root.Path, album, 1)
		return
	}

	scanInfos, err := r.catalog.GetItemScanInfos(albumID)
	if err != nil {
		r.logger.Warn("reading album items", "path", dirPath, "error", err)
		return
	}
	byName := make(map[string]int, len(scanInfos))
	unseen := make(map[int64]struct{}, len(scanInfos))
	for i, info := range scanInfos {
		byName[info.Name] = i
		unseen[info.ID] = struct{}{}
	}

	// Files first, then directories, each by name.
	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return dj
		}
		return entries[i].Name() < entries[j].Name()
	})
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}

	dates := newAlbumDateTracker(r.settings.AlbumDateFrom, dirModified)
	counter := 0

	for _, entry := range entries {
		if !r.checkObserver() {
			return
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if entry.Mode().IsRegular() {
			category, ok := r.settings.NameFilters.Category(name)
			if !ok {
				continue
			}
			counter++
			if counter >= 100 {
				r.progress.ScannedFiles(counter)
				counter = 0
			}

			filePath := dirPath + "/" + name
			if i, ok := byName[name]; ok {
				delete(unseen, scanInfos[i].ID)
				r.scanFileNormal(filePath, entry, scanInfos[i], category, r.hasSidecar(names, name))
				continue
			}
			if IsOwnTempFile(name) {
				continue
			}
			id, created := r.scanNewFile(filePath, entry, albumID, category)
			if id > 0 {
				dates.add(created)
			}
			if counter >= 2 {
				r.progress.ScannedFiles(counter)
				counter = 0
			}
			continue
		}

		if entry.IsDir() {
			sub := ChildAlbum(album, name)
			if r.isIgnoredAlbum(sub) {
				continue
			}
			counter++
			r.scanAlbum(root, sub, checkDate)
			if r.cancelled {
				return
			}
		}
	}

	if !r.deferredFileScanning && !ModificationDateEquals(dirModified, albumModified) {
		if err := r.catalog.SetAlbumModificationDate(albumID, dirModified); err != nil {
			r.logger.Warn("recording album modification date", "path", dirPath, "error", err)
		}
	}
	if date, ok := dates.result(); ok {
		if err := r.catalog.SetAlbumDate(albumID, date); err != nil {
			r.logger.Warn("setting album date", "path", dirPath, "error", err)
		}
	}

	if counter > 0 {
		r.progress.ScannedFiles(counter)
	}

	if len(unseen) > 0 {
		ids := make([]int64, 0, len(unseen))
		for id := range unseen {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		err := r.catalog.InTransaction(func(c Catalog) error {
			return c.RemoveItems(ids)
		})
		if err != nil {
			r.logger.Warn("removing vanished items", "path", dirPath, "error", err)
		} else {
			r.logger.Debug("items removed", "path", dirPath, "count", len(ids))
			r.itemsWereRemoved(ids)
		}
	}

	r.scannedAlbums[albumID] = struct{}{}
	r.progress.FinishedScanningAlbum(root.Path, album, len(entries))
}

// checkAlbum returns the id of the album at (root, album), creating it when
// missing. A new album that an album hint announces takes over the source
// album's properties, and its files are matched against the source.
func (r *scanRun) checkAlbum(root *AlbumRoot, album string, dirModified time.Time) (int64, error) {
	id, err := r.catalog.GetAlbumForPath(root.ID, album)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		delete(r.establishedSourceAlbums, id)
		return id, nil
	}

	id, err = r.catalog.AddAlbum(root.ID, album, dateOf(dirModified))
	if err != nil {
		return 0, err
	}
	r.logger.Debug("album added", "root", root.Path, "album", album, "id", id)

	if r.hints == nil {
		return id, nil
	}
	src, ok := r.hints.AlbumHint(DstPath{AlbumRootID: root.ID, RelativePath: album})
	if !ok {
		return id, nil
	}
	if err := r.catalog.CopyAlbumProperties(src.AlbumID, id); err != nil {
		r.logger.Warn("copying album properties", "src", src.AlbumID, "dst", id, "error", err)
	}
	r.establishedSourceAlbums[id] = src.AlbumID
	return id, nil
}

func (r *scanRun) isIgnoredAlbum(album string) bool {
	if r.settings.IgnoreDirectories == nil || album == RootAlbumPath {
		return false
	}
	return r.settings.IgnoreDirectories.Match(strings.TrimPrefix(album, "/"))
}

// hasSidecar reports whether a sidecar for fileName is among the directory names.
func (r *scanRun) hasSidecar(names map[string]struct{}, fileName string) bool {
	if !r.settings.UseXMPSidecar {
		return false
	}
	if _, ok := names[fileName+".xmp"]; ok {
		return true
	}
	_, ok := names[completeBaseName(fileName)+".xmp"]
	return ok
}

// sidecarInfo stats the sidecar of filePath, trying "<file>.xmp" first.
func (r *scanRun) sidecarInfo(filePath string) fs.FileInfo {
	if info, err := r.fsmgr.Stat(filePath + ".xmp"); err == nil {
		return info
	}
	if info, err := r.fsmgr.Stat(completeBaseName(filePath) + ".xmp"); err == nil {
		return info
	}
	return nil
}
