package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"colsync/internal/collection"
)

// Move moves a file or album directory and updates the catalog so that
// the moved items and albums keep their identity.
func (a *App) Move(rawSrc, rawDst string) (*collection.ScanResult, error) {
	return a.transfer(rawSrc, rawDst, true)
}

// Copy copies a file or album directory. Copied items and albums take over
// the attributes of their source.
func (a *App) Copy(rawSrc, rawDst string) (*collection.ScanResult, error) {
	return a.transfer(rawSrc, rawDst, false)
}

func (a *App) transfer(rawSrc, rawDst string, move bool) (*collection.ScanResult, error) {
	src, err := absPath(rawSrc)
	if err != nil {
		return nil, err
	}
	dst, err := absPath(rawDst)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if _, err := os.Lstat(dst); err == nil {
		return nil, fmt.Errorf("destination already exists: %s", dst)
	}
	if info.IsDir() && (dst == src || strings.HasPrefix(dst, src+"/")) {
		return nil, fmt.Errorf("cannot %s %s into itself", verb(move), src)
	}

	dstRoot, dstParent, err := a.locate(filepath.Dir(dst))
	if err != nil {
		return nil, err
	}
	srcRoot, srcAlbum, srcErr := a.locate(src)
	if srcErr == nil && srcAlbum == collection.RootAlbumPath {
		return nil, fmt.Errorf("cannot %s an album root", verb(move))
	}
	if err := a.begin(src, dst); err != nil {
		return nil, err
	}

	// Hints are best-effort: without them the scan still finds the files,
	// only identity and attributes are not carried over.
	if srcErr == nil {
		dstPath := collection.ChildAlbum(dstParent, filepath.Base(dst))
		if info.IsDir() {
			err = a.recordAlbumHints(srcRoot, srcAlbum, dstRoot, dstPath)
		} else {
			err = a.recordItemHint(srcRoot, dstRoot, src, dst)
		}
		if err != nil {
			a.logger.Warn("cannot record hints", "src", src, "dst", dst, "error", err)
		}
	}

	if move {
		err = moveFile(src, dst)
	} else if info.IsDir() {
		err = copyTree(src, dst)
	} else {
		err = copyFile(src, dst, info)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb(move), src, err)
	}
	a.logger.Info("files transferred", "op", verb(move), "src", src, "dst", dst)

	res, err := a.scanner.PartialScanPath(filepath.Dir(dst))
	if err != nil {
		return res, err
	}
	if move {
		srcDir := filepath.Dir(src)
		if _, _, err := a.locate(srcDir); err == nil {
			if _, err := a.scanner.PartialScanPath(srcDir); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func verb(move bool) string {
	if move {
		return "move"
	}
	return "copy"
}

// recordAlbumHints announces srcAlbum and all its sub-albums at their new
// location below dstAlbum.
func (a *App) recordAlbumHints(srcRoot *collection.AlbumRoot, srcAlbum string, dstRoot *collection.AlbumRoot, dstAlbum string) error {
	albums, err := a.catalog.GetAlbumShortInfos()
	if err != nil {
		return err
	}
	var hints []collection.AlbumCopyMoveHint
	for _, info := range albums {
		if info.AlbumRootID != srcRoot.ID {
			continue
		}
		if !collection.IsInAlbum(info.RelativePath, srcAlbum) {
			continue
		}
		hints = append(hints, collection.AlbumCopyMoveHint{
			SrcAlbumID:     info.ID,
			SrcAlbumRootID: srcRoot.ID,
			Dst: collection.DstPath{
				AlbumRootID:  dstRoot.ID,
				RelativePath: dstAlbum + strings.TrimPrefix(info.RelativePath, srcAlbum),
			},
		})
	}
	a.scanner.Hints().RecordAlbumHints(hints...)
	a.logger.Debug("album hints recorded", "count", len(hints))
	return nil
}

// recordItemHint announces a single file at dst. Both albums must already
// be known to the catalog.
func (a *App) recordItemHint(srcRoot, dstRoot *collection.AlbumRoot, src, dst string) error {
	srcID, err := a.itemAt(src)
	if err != nil || srcID == 0 {
		return err
	}
	_, dstAlbum, err := a.locate(filepath.Dir(dst))
	if err != nil {
		return err
	}
	dstAlbumID, err := a.catalog.GetAlbumForPath(dstRoot.ID, dstAlbum)
	if err != nil || dstAlbumID == 0 {
		return err
	}
	a.scanner.Hints().RecordItemHints(collection.ItemCopyMoveHint{
		SrcIDs:     []int64{srcID},
		DstAlbumID: dstAlbumID,
		DstNames:   []string{filepath.Base(dst)},
	})
	return nil
}

// moveFile renames src, falling back to copy and delete across devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	info, statErr := os.Stat(src)
	if statErr != nil {
		return err
	}
	if info.IsDir() {
		err = copyTree(src, dst)
	} else {
		err = copyFile(src, dst, info)
	}
	if err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyFile copies content, permissions and modification time.
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(p, target, info)
		default:
			return nil
		}
	})
}
