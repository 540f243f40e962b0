package collection

import (
	"path"
	"sort"
	"time"
)

// scanForStaleAlbums finds albums in the given roots whose directory is gone
// or ignored. Albums that an album hint says were moved to an existing,
// unoccupied destination are renamed; the rest are removed safely.
func (r *scanRun) scanForStaleAlbums(rootIDs map[int64]bool) {
	r.progress.StartScanningForStaleAlbums()
	defer r.progress.FinishedScanningForStaleAlbums()

	albums, err := r.catalog.GetAlbumShortInfos()
	if err != nil {
		r.logger.Warn("listing albums", "error", err)
		return
	}

	if r.settings.CountTotalFiles {
		r.progress.TotalFilesToScan(len(albums))
	}

	stale := make(map[int64]struct{})
	var staleOrder []int64
	addStale := func(id int64) {
		if _, ok := stale[id]; !ok {
			stale[id] = struct{}{}
			staleOrder = append(staleOrder, id)
		}
	}

	counter := 0
	for _, album := range albums {
		counter++
		if counter%10 == 0 {
			r.progress.ScannedFiles(counter)
			counter = 0
		}

		if !rootIDs[album.AlbumRootID] {
			continue
		}
		if _, ok := stale[album.ID]; ok {
			continue
		}
		root, ok := r.roots[album.AlbumRootID]
		if !ok {
			continue
		}

		exists, modified := r.albumDirExists(root, album.RelativePath)
		if exists && !r.isIgnoredAlbum(album.RelativePath) {
			r.albumDateCache[root.AlbumPath(album.RelativePath)] = modified
			continue
		}

		ids, err := r.catalog.GetAlbumAndSubalbumsForPath(root.ID, album.RelativePath)
		if err != nil {
			r.logger.Warn("listing sub-albums", "album", album.RelativePath, "error", err)
			continue
		}
		for _, id := range ids {
			addStale(id)
			r.scannedAlbums[id] = struct{}{}
		}
	}
	if counter > 0 {
		r.progress.ScannedFiles(counter)
	}

	if len(stale) > 0 && r.hints != nil {
		occupied := make(map[DstPath]struct{}, len(albums))
		for _, a := range albums {
			occupied[DstPath{AlbumRootID: a.AlbumRootID, RelativePath: a.RelativePath}] = struct{}{}
		}

		hints := r.hints.AlbumHints()
		dsts := make([]DstPath, 0, len(hints))
		for dst := range hints {
			dsts = append(dsts, dst)
		}
		// Parents first, so a renamed parent frees its children's paths in order.
		sort.Slice(dsts, func(i, j int) bool {
			if dsts[i].AlbumRootID != dsts[j].AlbumRootID {
				return dsts[i].AlbumRootID < dsts[j].AlbumRootID
			}
			return dsts[i].RelativePath < dsts[j].RelativePath
		})

		for _, dst := range dsts {
			src := hints[dst]
			if _, ok := stale[src.AlbumID]; !ok {
				continue
			}
			if _, ok := occupied[dst]; ok {
				continue
			}
			root, ok := r.roots[dst.AlbumRootID]
			if !ok {
				continue
			}
			if exists, _ := r.albumDirExists(root, dst.RelativePath); !exists {
				continue
			}

			if err := r.catalog.RenameAlbum(src.AlbumID, dst.AlbumRootID, dst.RelativePath); err != nil {
				r.logger.Warn("renaming moved album", "album", src.AlbumID, "dst", dst.RelativePath, "error", err)
				continue
			}
			r.logger.Debug("album renamed", "album", src.AlbumID, "root", root.Path, "dst", dst.RelativePath)
			delete(stale, src.AlbumID)
			delete(r.scannedAlbums, src.AlbumID)
			occupied[dst] = struct{}{}
			r.hints.RemoveAlbumHint(dst)
		}
	}

	var toDelete []int64
	for _, id := range staleOrder {
		if _, ok := stale[id]; ok {
			toDelete = append(toDelete, id)
		}
	}
	r.safelyRemoveAlbums(toDelete)
}

// albumDirExists reports whether the album directory exists with exactly
// the recorded name. On case-insensitive roots a directory whose casing
// changed counts as missing.
func (r *scanRun) albumDirExists(root *AlbumRoot, album string) (bool, time.Time) {
	dirPath := root.AlbumPath(album)
	info, err := r.fsmgr.Stat(dirPath)
	if err != nil || !info.IsDir() {
		return false, time.Time{}
	}

	if root.CaseSensitivity == CaseInsensitive && album != RootAlbumPath {
		entries, err := r.fsmgr.ReadDir(path.Dir(dirPath))
		if err != nil {
			return false, time.Time{}
		}
		name := path.Base(dirPath)
		found := false
		for _, e := range entries {
			if e.IsDir() && e.Name() == name {
				found = true
				break
			}
		}
		if !found {
			return false, time.Time{}
		}
	}
	return true, info.ModTime()
}

// safelyRemoveAlbums trashes the items of the albums and detaches the
// albums from their root. Stale albums are purged by a later scan, which
// keeps them available for rename detection until then.
func (r *scanRun) safelyRemoveAlbums(albumIDs []int64) {
	if len(albumIDs) == 0 {
		return
	}

	var itemIDs []int64
	err := r.catalog.InTransaction(func(c Catalog) error {
		ids, err := c.GetItemIDsInAlbums(albumIDs)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := c.RemoveItems(ids); err != nil {
				return err
			}
		}
		for _, id := range albumIDs {
			if err := c.MakeStaleAlbum(id); err != nil {
				return err
			}
		}
		itemIDs = ids
		return nil
	})
	if err != nil {
		r.logger.Warn("removing stale albums", "count", len(albumIDs), "error", err)
		return
	}

	r.logger.Info("stale albums removed", "albums", len(albumIDs), "items", len(itemIDs))
	r.itemsWereRemoved(itemIDs)
}
