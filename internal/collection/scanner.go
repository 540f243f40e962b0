package collection

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileScanMode tells ScanFile what kind of change the caller expects.
type FileScanMode int

const (
	// NormalScan compares the file with the catalog and updates what changed.
	NormalScan FileScanMode = iota
	// ModifiedScan assumes the file content changed.
	ModifiedScan
	// Rescan reads all metadata again.
	Rescan
	// CleanScan drops metadata read from the file and reads it again.
	CleanScan
)

// ParseFileScanMode maps a CLI value to a FileScanMode.
func ParseFileScanMode(s string) (FileScanMode, error) {
	switch s {
	case "normal", "":
		return NormalScan, nil
	case "modified":
		return ModifiedScan, nil
	case "rescan":
		return Rescan, nil
	case "clean":
		return CleanScan, nil
	default:
		return NormalScan, fmt.Errorf("unknown scan mode: %q", s)
	}
}

// ScanResult summarizes one top-level scan call.
type ScanResult struct {
	ScannedAlbums []int64
	NewItemIDs    []int64
	// DeferredAlbumPaths lists the absolute album directories whose files
	// were skipped in deferred file scanning mode.
	DeferredAlbumPaths []string
}

// CollectionScanner reconciles album roots on disk with the catalog.
// Each top-level call runs in its own scan session; calls are not meant to
// run concurrently on one scanner, but hints may be recorded at any time.
type CollectionScanner struct {
	catalog  Catalog
	fsmgr    FilesystemManager
	scanners ItemScannerFactory
	hints    *HintStore
	settings Settings
	logger   Logger
	clock    Clock

	thumbs   ThumbnailStore
	history  HistoryResolver
	observer Observer
	progress ProgressListener
}

// NewCollectionScanner creates a scanner. hints may be nil.
func NewCollectionScanner(catalog Catalog, fsmgr FilesystemManager, scanners ItemScannerFactory, hints *HintStore, settings Settings, logger Logger, clock Clock) *CollectionScanner {
	if settings.NameFilters == nil {
		settings.NameFilters = NewNameFilters(DefaultImageFilters, DefaultVideoFilters, DefaultAudioFilters)
	}
	return &CollectionScanner{
		catalog:  catalog,
		fsmgr:    fsmgr,
		scanners: scanners,
		hints:    hints,
		settings: settings,
		logger:   logger,
		clock:    clock,
		progress: NopProgress{},
	}
}

// SetThumbnailStore enables thumbnail re-keying on hash carry-over.
func (s *CollectionScanner) SetThumbnailStore(t ThumbnailStore) { s.thumbs = t }

// SetHistoryResolver enables the history pipeline.
func (s *CollectionScanner) SetHistoryResolver(h HistoryResolver) { s.history = h }

// SetObserver installs the cancellation observer.
func (s *CollectionScanner) SetObserver(o Observer) { s.observer = o }

// SetProgressListener installs a progress listener.
func (s *CollectionScanner) SetProgressListener(p ProgressListener) {
	if p == nil {
		p = NopProgress{}
	}
	s.progress = p
}

// Hints returns the hint store, or nil.
func (s *CollectionScanner) Hints() *HintStore { return s.hints }

// scanRun holds the state of one top-level call.
type scanRun struct {
	*CollectionScanner

	roots     map[int64]*AlbumRoot
	rootOrder []*AlbumRoot

	recordHistoryIDs     bool
	deferredFileScanning bool
	cancelled            bool

	scannedAlbums           map[int64]struct{}
	newIDs                  []int64
	deferredAlbumPaths      map[string]struct{}
	establishedSourceAlbums map[int64]int64
	albumDateCache          map[string]time.Time
	needResolveHistory      map[int64]struct{}
	needTaggingHistory      map[int64]struct{}
	removedItemsTime        time.Time
}

// newRun starts a session. Complete scans read history markers from the
// catalog; partial scans record the ids they touch.
func (s *CollectionScanner) newRun(complete bool) (*scanRun, error) {
	r := &scanRun{
		CollectionScanner:       s,
		roots:                   make(map[int64]*AlbumRoot),
		recordHistoryIDs:        !complete,
		deferredFileScanning:    s.settings.DeferredFileScanning,
		scannedAlbums:           make(map[int64]struct{}),
		deferredAlbumPaths:      make(map[string]struct{}),
		establishedSourceAlbums: make(map[int64]int64),
		albumDateCache:          make(map[string]time.Time),
		needResolveHistory:      make(map[int64]struct{}),
		needTaggingHistory:      make(map[int64]struct{}),
	}

	roots, err := s.catalog.ListAlbumRoots()
	if err != nil {
		return nil, fmt.Errorf("listing album roots: %w", err)
	}
	for _, root := range roots {
		if root.Status != RootVisible {
			continue
		}
		info, err := s.fsmgr.Stat(root.Path)
		if err != nil || !info.IsDir() {
			s.logger.Warn("album root unavailable", "path", root.Path)
			continue
		}
		r.roots[root.ID] = root
		r.rootOrder = append(r.rootOrder, root)
	}
	return r, nil
}

func (r *scanRun) checkObserver() bool {
	if r.cancelled {
		return false
	}
	if r.observer != nil && !r.observer.ContinueQuery() {
		r.cancelled = true
	}
	return !r.cancelled
}

func (r *scanRun) result() *ScanResult {
	res := &ScanResult{NewItemIDs: r.newIDs}
	for id := range r.scannedAlbums {
		res.ScannedAlbums = append(res.ScannedAlbums, id)
	}
	sort.Slice(res.ScannedAlbums, func(i, j int) bool { return res.ScannedAlbums[i] < res.ScannedAlbums[j] })
	for p := range r.deferredAlbumPaths {
		res.DeferredAlbumPaths = append(res.DeferredAlbumPaths, p)
	}
	sort.Strings(res.DeferredAlbumPaths)
	return res
}

func (r *scanRun) cancel() (*ScanResult, error) {
	r.progress.Cancelled()
	r.logger.Info("scan cancelled", "albums", len(r.scannedAlbums), "new_items", len(r.newIDs))
	return r.result(), ErrCancelled
}

// locationForPath returns the root containing p, preferring the deepest root.
func (r *scanRun) locationForPath(p string) *AlbumRoot {
	return RootForPath(r.rootOrder, p)
}

func (r *scanRun) locationForAlbumRootPath(rootPath string) *AlbumRoot {
	rootPath = strings.TrimSuffix(rootPath, "/")
	for _, root := range r.rootOrder {
		if root.Path == rootPath {
			return root
		}
	}
	return nil
}

func (r *scanRun) deleteStaleAlbumsIfNoHints() {
	if r.hints != nil && r.hints.HasAlbumHints() {
		return
	}
	if err := r.catalog.DeleteStaleAlbums(); err != nil {
		r.logger.Warn("deleting stale albums", "error", err)
	}
}

// CompleteScan reconciles every available album root with the catalog.
func (s *CollectionScanner) CompleteScan() (*ScanResult, error) {
	start := s.clock.Now()
	r, err := s.newRun(true)
	if err != nil {
		return nil, err
	}
	s.progress.StartCompleteScan()

	if s.settings.CountTotalFiles {
		count := 0
		for _, root := range r.rootOrder {
			count += r.countItemsInFolder(root.Path)
		}
		s.progress.TotalFilesToScan(count)
	}

	if !r.checkObserver() {
		return r.cancel()
	}

	// Without album hints there is no rename to detect, so stale albums
	// left by earlier scans can go.
	r.deleteStaleAlbumsIfNoHints()

	r.scanForStaleAlbums(r.rootIDs())

	if !r.checkObserver() {
		return r.cancel()
	}

	s.progress.StartScanningAlbumRoots()
	for _, root := range r.rootOrder {
		if !r.checkObserver() {
			return r.cancel()
		}
		r.scanAlbumRoot(root)
	}

	if !r.checkObserver() {
		return r.cancel()
	}

	if r.deferredFileScanning {
		s.logger.Info("complete scan finished, file scanning deferred",
			"albums", len(r.scannedAlbums), "deferred", len(r.deferredAlbumPaths), "elapsed", s.clock.Now().Sub(start))
		s.progress.FinishedCompleteScan()
		return r.result(), nil
	}

	if err := r.completeScanCleanupPart(); err != nil {
		return r.result(), err
	}
	if s.hints != nil {
		s.hints.Clear()
	}

	s.logger.Info("complete scan finished",
		"albums", len(r.scannedAlbums), "new_items", len(r.newIDs), "elapsed", s.clock.Now().Sub(start))
	return r.result(), nil
}

// FinishCompleteScan scans the given album directories, typically those
// deferred by an earlier CompleteScan, and runs the final cleanup.
// Sub-directories of listed paths are pruned.
func (s *CollectionScanner) FinishCompleteScan(albumPaths []string) (*ScanResult, error) {
	s.progress.StartCompleteScan()

	r, err := s.newRun(true)
	if err != nil {
		return nil, err
	}
	r.deferredFileScanning = false

	if !r.checkObserver() {
		return r.cancel()
	}

	s.progress.StartScanningAlbumRoots()

	paths := pruneSubPaths(albumPaths)

	if s.settings.CountTotalFiles {
		count := 0
		for _, p := range paths {
			count += r.countItemsInFolder(p)
		}
		s.progress.TotalFilesToScan(count)
	}

	for _, p := range paths {
		if !r.checkObserver() {
			return r.cancel()
		}
		root := r.locationForPath(p)
		if root == nil {
			s.logger.Warn("no album root for deferred path", "path", p)
			continue
		}
		album := AlbumForPath(root, p)
		if album == RootAlbumPath {
			r.scanAlbumRoot(root)
		} else {
			r.scanAlbum(root, album, false)
		}
	}

	if !r.checkObserver() {
		return r.cancel()
	}

	if err := r.completeScanCleanupPart(); err != nil {
		return r.result(), err
	}
	return r.result(), nil
}

// pruneSubPaths sorts and deduplicates paths, dropping any path inside another.
func pruneSubPaths(paths []string) []string {
	sorted := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSuffix(p, "/")
		if p != "" {
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)

	var out []string
	for _, p := range sorted {
		if len(out) > 0 {
			last := out[len(out)-1]
			if p == last || strings.HasPrefix(p, last+"/") {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// PartialScan reconciles one album subtree. Stale albums are looked for in
// the album's root and in roots entangled with it by album hints.
// Pass "/" as album to scan the whole root.
func (s *CollectionScanner) PartialScan(albumRoot, album string) (*ScanResult, error) {
	if albumRoot == "" || album == "" {
		s.logger.Warn("partial scan called with invalid values", "album_root", albumRoot, "album", album)
		return nil, ErrInvalidArgument
	}

	r, err := s.newRun(false)
	if err != nil {
		return nil, err
	}

	root := r.locationForAlbumRootPath(albumRoot)
	if root == nil {
		s.logger.Warn("no album root at path", "album_root", albumRoot)
		return nil, ErrLocationNotFound
	}

	r.deleteStaleAlbumsIfNoHints()

	rootIDs := map[int64]bool{root.ID: true}
	if s.hints != nil {
		for dst, src := range s.hints.AlbumHints() {
			if dst.AlbumRootID == root.ID {
				rootIDs[src.AlbumRootID] = true
			}
			if src.AlbumRootID == root.ID {
				rootIDs[dst.AlbumRootID] = true
			}
		}
	}
	r.scanForStaleAlbums(rootIDs)

	if !r.checkObserver() {
		return r.cancel()
	}

	if album == RootAlbumPath {
		r.scanAlbumRoot(root)
	} else {
		r.scanAlbum(root, album, false)
	}

	r.finishHistoryScanning()

	if !r.checkObserver() {
		return r.cancel()
	}

	if err := r.updateRemovedItemsTime(r.catalog); err != nil {
		s.logger.Warn("recording removed items time", "error", err)
	}
	return r.result(), nil
}

// PartialScanPath scans the album that contains p. A file path scans its
// directory.
func (s *CollectionScanner) PartialScanPath(p string) (*ScanResult, error) {
	if p == "" {
		s.logger.Warn("partial scan called with empty path")
		return nil, ErrInvalidArgument
	}
	p = strings.TrimSuffix(p, "/")
	if info, err := s.fsmgr.Stat(p); err == nil && !info.IsDir() {
		p = path.Dir(p)
	}

	roots, err := s.catalog.ListAlbumRoots()
	if err != nil {
		return nil, fmt.Errorf("listing album roots: %w", err)
	}
	best := RootForPath(roots, p)
	if best == nil {
		s.logger.Warn("no album root for path", "path", p)
		return nil, ErrLocationNotFound
	}
	return s.PartialScan(best.Path, AlbumForPath(best, p))
}

// ScanFile scans a single file given by absolute path and returns its item
// id, or -1 when the file cannot be scanned.
func (s *CollectionScanner) ScanFile(filePath string, mode FileScanMode) (int64, error) {
	if filePath == "" {
		s.logger.Warn("scan file called with empty path")
		return -1, ErrInvalidArgument
	}

	r, err := s.newRun(false)
	if err != nil {
		return -1, err
	}
	dir := path.Dir(filePath)
	root := r.locationForPath(dir)
	if root == nil {
		s.logger.Warn("no album root for file", "path", filePath)
		return -1, ErrLocationNotFound
	}
	return r.scanFileInAlbum(root, AlbumForPath(root, dir), path.Base(filePath), mode)
}

// ScanFileInAlbum scans the file fileName of an album and returns its item
// id, or -1 when the file cannot be scanned.
func (s *CollectionScanner) ScanFileInAlbum(albumRoot, album, fileName string, mode FileScanMode) (int64, error) {
	if album == "" || fileName == "" {
		s.logger.Warn("scan file called with empty album or file name", "album", album, "file", fileName)
		return -1, ErrInvalidArgument
	}

	r, err := s.newRun(false)
	if err != nil {
		return -1, err
	}
	root := r.locationForAlbumRootPath(albumRoot)
	if root == nil {
		s.logger.Warn("no album root at path", "album_root", albumRoot)
		return -1, ErrLocationNotFound
	}
	return r.scanFileInAlbum(root, album, fileName, mode)
}

func (r *scanRun) scanFileInAlbum(root *AlbumRoot, album, fileName string, mode FileScanMode) (int64, error) {
	dirPath := root.AlbumPath(album)
	filePath := dirPath + "/" + fileName
	info, err := r.fsmgr.Stat(filePath)
	if err != nil {
		r.logger.Warn("file given to scan does not exist", "path", filePath)
		return -1, fmt.Errorf("stat %s: %w", filePath, err)
	}
	dirInfo, err := r.fsmgr.Stat(dirPath)
	if err != nil {
		return -1, fmt.Errorf("stat %s: %w", dirPath, err)
	}

	albumID, err := r.checkAlbum(root, album, dirInfo.ModTime())
	if err != nil {
		return -1, err
	}
	imageID, err := r.catalog.GetImageID(albumID, fileName)
	if err != nil {
		return -1, fmt.Errorf("looking up item: %w", err)
	}
	return r.scanFileWithMode(filePath, info, albumID, imageID, mode), nil
}

// ScanItem scans the file of an existing item. Items whose root is not
// available are skipped.
func (s *CollectionScanner) ScanItem(id int64, mode FileScanMode) error {
	loc, err := s.catalog.GetItemLocation(id)
	if err != nil {
		return fmt.Errorf("locating item %d: %w", id, err)
	}
	if loc == nil {
		return nil
	}

	r, err := s.newRun(false)
	if err != nil {
		return err
	}
	if _, ok := r.roots[loc.AlbumRootID]; !ok {
		return nil
	}
	info, err := s.fsmgr.Stat(loc.FilePath())
	if err != nil {
		return fmt.Errorf("stat %s: %w", loc.FilePath(), err)
	}
	albumID, err := s.catalog.GetAlbumForPath(loc.AlbumRootID, loc.RelativePath)
	if err != nil {
		return fmt.Errorf("looking up album: %w", err)
	}
	r.scanFileWithMode(loc.FilePath(), info, albumID, id, mode)
	return nil
}

func (r *scanRun) scanFileWithMode(filePath string, info fs.FileInfo, albumID, imageID int64, mode FileScanMode) int64 {
	category, ok := r.settings.NameFilters.Category(info.Name())
	if !ok {
		return -1
	}

	if imageID == 0 {
		switch mode {
		case NormalScan, ModifiedScan:
			imageID, _ = r.scanNewFile(filePath, info, albumID, category)
		default:
			imageID = r.scanNewFileFullScan(filePath, info, albumID, category)
		}
	} else {
		scanInfo, err := r.catalog.GetItemScanInfo(imageID)
		if err != nil || scanInfo == nil {
			r.logger.Warn("reading item scan info", "id", imageID, "error", err)
			return -1
		}
		switch mode {
		case NormalScan:
			r.scanFileNormal(filePath, info, *scanInfo, category, false)
		case ModifiedScan:
			r.scanModifiedFile(filePath, info, *scanInfo, category)
		case Rescan:
			r.rescanFile(filePath, info, *scanInfo, category)
		case CleanScan:
			r.cleanScanFile(filePath, info, *scanInfo, category)
		}
	}

	r.finishHistoryScanning()
	return imageID
}

// InitialScanDone reports whether a complete scan has finished on this catalog.
func (s *CollectionScanner) InitialScanDone() (bool, error) {
	v, err := s.catalog.GetSetting(SettingScanned)
	if err != nil {
		return false, fmt.Errorf("reading scanned setting: %w", err)
	}
	return v != "", nil
}

func (r *scanRun) rootIDs() map[int64]bool {
	ids := make(map[int64]bool, len(r.rootOrder))
	for _, root := range r.rootOrder {
		ids[root.ID] = true
	}
	return ids
}

// completeScanCleanupPart runs the history pipeline, then the removed-item
// bookkeeping. Trashed items become obsolete only here.
func (r *scanRun) completeScanCleanupPart() error {
	r.completeHistoryScanning()

	if !r.checkObserver() {
		_, err := r.cancel()
		return err
	}

	err := r.catalog.InTransaction(func(c Catalog) error {
		if err := r.updateRemovedItemsTime(c); err != nil {
			return err
		}

		promote, pending, err := r.checkDeleteRemoved(c)
		if err != nil {
			return err
		}
		if promote {
			trashed, err := c.GetItemIDsByStatus(StatusTrashed)
			if err != nil {
				return fmt.Errorf("listing trashed items: %w", err)
			}
			for _, id := range trashed {
				if err := c.SetItemStatus(id, StatusObsolete); err != nil {
					return fmt.Errorf("marking item %d obsolete: %w", id, err)
				}
			}
			r.logger.Info("trashed items marked obsolete", "count", len(trashed))
			if err := r.resetDeleteRemovedSettings(c); err != nil {
				return err
			}
		} else if pending {
			if err := r.incrementDeleteRemovedCompleteScanCount(c); err != nil {
				return err
			}
		}

		return r.markDatabaseAsScanned(c)
	})
	if err != nil {
		return fmt.Errorf("complete scan cleanup: %w", err)
	}

	r.progress.FinishedCompleteScan()
	return nil
}

func (r *scanRun) itemsWereRemoved(ids []int64) {
	if len(ids) == 0 {
		return
	}
	r.removedItemsTime = r.clock.Now()
}

func (r *scanRun) updateRemovedItemsTime(c Catalog) error {
	if r.removedItemsTime.IsZero() {
		return nil
	}
	if err := c.SetSetting(SettingRemovedItemsTime, r.removedItemsTime.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing removed items time: %w", err)
	}
	r.removedItemsTime = time.Time{}
	return nil
}

// checkDeleteRemoved decides whether trashed items are old enough to be
// made obsolete. pending reports whether any removal is waiting at all.
func (r *scanRun) checkDeleteRemoved(c Catalog) (promote, pending bool, err error) {
	removedValue, err := c.GetSetting(SettingRemovedItemsTime)
	if err != nil {
		return false, false, fmt.Errorf("reading removed items time: %w", err)
	}
	if removedValue == "" {
		return false, false, nil
	}
	removedTime, err := time.Parse(time.RFC3339, removedValue)
	if err != nil {
		r.logger.Warn("invalid removed items time", "value", removedValue)
		return false, false, nil
	}

	now := r.clock.Now()
	policy := r.settings.RemovedItems
	if now.Sub(removedTime) <= policy.RemoveAfter {
		return false, true, nil
	}

	deleteValue, err := c.GetSetting(SettingDeleteRemovedTime)
	if err != nil {
		return false, true, fmt.Errorf("reading delete removed time: %w", err)
	}
	if deleteValue != "" {
		deleteTime, err := time.Parse(time.RFC3339, deleteValue)
		if err == nil {
			since := now.Sub(deleteTime)
			if since <= policy.MinBetweenDeletes {
				return false, true, nil
			}
			scans, err := r.completeScanCount(c)
			if err != nil {
				return false, true, err
			}
			if since < policy.ForceAfter && scans < policy.ForceAfterScans {
				return false, true, nil
			}
		}
	}
	return true, true, nil
}

func (r *scanRun) completeScanCount(c Catalog) (int, error) {
	v, err := c.GetSetting(SettingDeleteRemovedCompleteScanCount)
	if err != nil {
		return 0, fmt.Errorf("reading complete scan count: %w", err)
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (r *scanRun) resetDeleteRemovedSettings(c Catalog) error {
	if err := c.SetSetting(SettingRemovedItemsTime, ""); err != nil {
		return err
	}
	if err := c.SetSetting(SettingDeleteRemovedTime, r.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return c.SetSetting(SettingDeleteRemovedCompleteScanCount, "0")
}

func (r *scanRun) incrementDeleteRemovedCompleteScanCount(c Catalog) error {
	n, err := r.completeScanCount(c)
	if err != nil {
		return err
	}
	return c.SetSetting(SettingDeleteRemovedCompleteScanCount, strconv.Itoa(n+1))
}

func (r *scanRun) markDatabaseAsScanned(c Catalog) error {
	v, err := c.GetSetting(SettingScanned)
	if err != nil {
		return err
	}
	if v != "" {
		return nil
	}
	return c.SetSetting(SettingScanned, r.clock.Now().UTC().Format(time.RFC3339))
}

// countItemsInFolder counts collection files and directories below dir.
func (r *scanRun) countItemsInFolder(dir string) int {
	entries, err := r.fsmgr.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			count += 1 + r.countItemsInFolder(dir+"/"+e.Name())
			continue
		}
		if _, ok := r.settings.NameFilters.Category(e.Name()); ok {
			count++
		}
	}
	return count
}
