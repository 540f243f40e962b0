package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"colsync/internal/collection"
	"colsync/internal/config"
	"colsync/internal/database"
	"colsync/internal/deferred"
	"colsync/internal/encryption"
	colfs "colsync/internal/fs"
	"colsync/internal/history"
	"colsync/internal/itemscan"
	"colsync/internal/model"
	"colsync/internal/snapshot"
	"colsync/internal/thumbs"
	"colsync/internal/vault"
	"colsync/internal/watch"
)

// Options tune an App beyond what the config file holds.
type Options struct {
	Verbose  bool
	Progress collection.ProgressListener
	// Clock defaults to the wall clock.
	Clock collection.Clock
}

// App is the application layer between the CLI and the collection scanner.
// It builds all dependencies from config, exposes high-level operations on
// raw paths, and records each mutating command as a scan operation.
// The caller must call Close when done.
type App struct {
	cfg       *config.Config
	catalog   *database.SQLiteCatalog
	fsmgr     *colfs.OSFilesystemManager
	scanner   *collection.CollectionScanner
	thumbs    *database.SQLiteThumbnailStore
	deferred  *deferred.Queue
	encryptor snapshot.Encryptor
	settings  collection.Settings
	logger    collection.Logger
	clock     collection.Clock

	snapshotSvc *snapshot.Service
	// snapshotOnClose is set by commands after which the catalog is
	// snapshotted when [snapshot] is enabled.
	snapshotOnClose bool

	op      *Operation
	lock    *catalogLock
	logFile io.Closer
}

// NewApp creates a fully wired App. operation names the CLI command being
// run (e.g. "CompleteScan", "Move").
func NewApp(cfg *config.Config, operation string, opts Options) (*App, error) {
	clock := opts.Clock
	if clock == nil {
		clock = collection.RealClock{}
	}

	settings, err := scanSettings(cfg.Scan, cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("reading scan settings: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Snapshot.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	queue, err := deferred.NewQueueFromConfig(cfg.Deferred, clock)
	if err != nil {
		return nil, fmt.Errorf("creating deferred queue: %w", err)
	}

	catalog, err := database.NewCatalogFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if err := catalog.CheckMigrations(); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("catalog schema out of date: %w", err)
	}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	fsmgr := colfs.NewOSFilesystemManager()
	thumbStore := database.NewSQLiteThumbnailStore(catalog)

	scanner := collection.NewCollectionScanner(catalog, fsmgr,
		itemscan.NewFactory(catalog, fsmgr, logger),
		collection.NewHintStore(catalog), settings, logger, clock)
	scanner.SetThumbnailStore(thumbStore)
	scanner.SetHistoryResolver(history.NewResolver(logger))
	scanner.SetProgressListener(opts.Progress)

	return &App{
		cfg:       cfg,
		catalog:   catalog,
		fsmgr:     fsmgr,
		scanner:   scanner,
		thumbs:    thumbStore,
		deferred:  queue,
		encryptor: enc,
		settings:  settings,
		logger:    logger,
		clock:     clock,
		op:        NewOperation(operation, ""),
		lock:      newCatalogLock(lockFilePath(cfg.BaseDir)),
		logFile:   logFile,
	}, nil
}

// begin takes the catalog lock and records the operation. Every mutating
// command calls it first; read-only commands never do.
func (a *App) begin(parameters ...string) error {
	if a.op.Persisted() {
		return nil
	}
	if err := a.lock.acquire(); err != nil {
		return err
	}
	a.op.Parameters = strings.Join(parameters, " ")
	row, err := a.catalog.CreateScanOperation(a.op.Name, a.op.Parameters)
	if err != nil {
		a.lock.release()
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = row.ID
	a.logger.Info("operation started", "operation", a.op.Name, "parameters", a.op.Parameters)
	return nil
}

// Fail marks the current operation as failed. The CLI calls it when a
// command returns an error.
func (a *App) Fail(err error) error { return a.op.Fail(err) }

// absPath cleans a user-supplied path into an absolute one.
func absPath(raw string) (string, error) {
	p, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return p, nil
}

// Album roots

// AddRoot registers a directory as album root. An empty label uses the
// directory name.
func (a *App) AddRoot(rawPath, label string) (*collection.AlbumRoot, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, err
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p)
	}
	if err := a.begin(p.String()); err != nil {
		return nil, err
	}
	if label == "" {
		label = filepath.Base(p.String())
	}
	root, err := a.catalog.AddAlbumRoot(label, p.String(), colfs.ProbeCaseSensitivity(p.String()))
	if err != nil {
		return nil, err
	}
	a.logger.Info("album root added", "label", label, "path", root.Path, "case", root.CaseSensitivity)
	return root, nil
}

// ListRoots returns all registered album roots.
func (a *App) ListRoots() ([]*collection.AlbumRoot, error) {
	return a.catalog.ListAlbumRoots()
}

// findRoot matches a root by label or path.
func (a *App) findRoot(labelOrPath string) (*collection.AlbumRoot, error) {
	roots, err := a.catalog.ListAlbumRoots()
	if err != nil {
		return nil, err
	}
	abs, _ := filepath.Abs(labelOrPath)
	for _, r := range roots {
		if r.Label == labelOrPath || r.Path == abs {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no album root %q: %w", labelOrPath, collection.ErrLocationNotFound)
}

// RemoveRoot unregisters a root. Its items are trashed and its albums made
// stale; nothing on disk is touched.
func (a *App) RemoveRoot(labelOrPath string) error {
	root, err := a.findRoot(labelOrPath)
	if err != nil {
		return err
	}
	if err := a.begin(root.Path); err != nil {
		return err
	}
	if err := a.catalog.DeleteAlbumRoot(root.ID); err != nil {
		return err
	}
	a.logger.Info("album root removed", "label", root.Label, "path", root.Path)
	return nil
}

// locate finds the album root containing p and the album path of p
// relative to it. p itself need not exist.
func (a *App) locate(p string) (*collection.AlbumRoot, string, error) {
	roots, err := a.catalog.ListAlbumRoots()
	if err != nil {
		return nil, "", err
	}
	root := collection.RootForPath(roots, p)
	if root == nil {
		return nil, "", fmt.Errorf("%s is not inside an album root: %w", p, collection.ErrLocationNotFound)
	}
	return root, collection.AlbumForPath(root, p), nil
}

// Scanning

func (a *App) observe(ctx context.Context) {
	a.scanner.SetObserver(collection.ContextObserver(ctx))
}

// CompleteScan scans all album roots. In deferred mode the albums whose
// files were skipped are queued for FinishScan.
func (a *App) CompleteScan(ctx context.Context) (*collection.ScanResult, error) {
	if err := a.begin(); err != nil {
		return nil, err
	}
	a.observe(ctx)
	res, err := a.scanner.CompleteScan()
	if err != nil {
		return res, err
	}
	if len(res.DeferredAlbumPaths) > 0 {
		n, err := a.deferred.Add(res.DeferredAlbumPaths)
		if err != nil {
			return res, fmt.Errorf("queueing deferred albums: %w", err)
		}
		a.logger.Info("albums queued for file scanning", "queued", n)
	}
	a.snapshotOnClose = true
	return res, nil
}

// FinishScan scans the queued deferred albums and runs the complete scan
// cleanup. The queue is only emptied when the scan succeeds.
func (a *App) FinishScan(ctx context.Context) (*collection.ScanResult, error) {
	if err := a.begin(); err != nil {
		return nil, err
	}
	a.observe(ctx)

	var res *collection.ScanResult
	_, err := a.deferred.Drain(func(paths []string) error {
		var err error
		res, err = a.scanner.FinishCompleteScan(paths)
		return err
	})
	if err != nil {
		return res, err
	}
	if res == nil {
		a.logger.Info("no deferred albums")
		return &collection.ScanResult{}, nil
	}
	a.snapshotOnClose = true
	return res, nil
}

// PartialScan scans the album containing rawPath and its sub-albums.
func (a *App) PartialScan(ctx context.Context, rawPath string) (*collection.ScanResult, error) {
	p, err := absPath(rawPath)
	if err != nil {
		return nil, err
	}
	if err := a.begin(p); err != nil {
		return nil, err
	}
	a.observe(ctx)
	return a.scanner.PartialScanPath(p)
}

// ScanFile scans a single file and returns its item id.
func (a *App) ScanFile(rawPath, mode string) (int64, error) {
	m, err := collection.ParseFileScanMode(mode)
	if err != nil {
		return -1, err
	}
	p, err := absPath(rawPath)
	if err != nil {
		return -1, err
	}
	if err := a.begin(p, mode); err != nil {
		return -1, err
	}
	return a.scanner.ScanFile(p, m)
}

// Touched announces that a file changed outside colsync and rescans its
// album. rescan requests a full metadata rescan instead of the lightweight
// modified-file update.
func (a *App) Touched(rawPath string, rescan bool) (int64, error) {
	p, err := absPath(rawPath)
	if err != nil {
		return 0, err
	}
	id, err := a.itemAt(p)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s is not in the catalog", p)
	}
	if err := a.begin(p); err != nil {
		return 0, err
	}
	kind := collection.ItemModified
	if rescan {
		kind = collection.ItemRescan
	}
	a.scanner.Hints().RecordChangeHints(collection.ItemChangeHint{IDs: []int64{id}, Kind: kind})
	if _, err := a.scanner.PartialScanPath(filepath.Dir(p)); err != nil {
		return id, err
	}
	return id, nil
}

// ScanItem scans the file of a catalogued item by id.
func (a *App) ScanItem(id int64, mode string) error {
	m, err := collection.ParseFileScanMode(mode)
	if err != nil {
		return err
	}
	if err := a.begin(fmt.Sprint(id), mode); err != nil {
		return err
	}
	return a.scanner.ScanItem(id, m)
}

// EditMetadata runs edit, which is expected to change only the embedded
// metadata of the file at rawPath, and rescans the file afterwards. The
// item keeps its thumbnail under its new content hash. When the catalog no
// longer matches the file before the edit, the file is rescanned as a
// regular modification.
func (a *App) EditMetadata(rawPath string, edit func() error) (int64, error) {
	p, err := absPath(rawPath)
	if err != nil {
		return 0, err
	}
	id, err := a.itemAt(p)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s is not in the catalog", p)
	}
	before, err := a.catalog.GetItemScanInfo(id)
	if err != nil || before == nil {
		return 0, fmt.Errorf("reading item %d: %w", id, err)
	}
	if err := a.begin(p); err != nil {
		return 0, err
	}

	hints := a.scanner.Hints()
	tracked := hints.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{
		ID:               id,
		Phase:            collection.AboutToEdit,
		ModificationDate: before.ModificationDate,
		FileSize:         before.FileSize,
	})
	if !tracked {
		a.logger.Warn("catalog out of date before edit, rescanning as modified", "path", p)
	}

	if err := edit(); err != nil {
		hints.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: id, Phase: collection.EditingAborted})
		return id, fmt.Errorf("editing %s: %w", p, err)
	}

	info, err := a.fsmgr.Stat(p)
	if err != nil {
		hints.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{ID: id, Phase: collection.EditingAborted})
		return id, fmt.Errorf("stat %s: %w", p, err)
	}
	if tracked {
		hints.RecordAdjustmentHint(collection.ItemMetadataAdjustmentHint{
			ID:               id,
			Phase:            collection.EditingFinished,
			ModificationDate: info.ModTime(),
			FileSize:         info.Size(),
		})
	}
	if _, err := a.scanner.PartialScanPath(filepath.Dir(p)); err != nil {
		return id, err
	}
	return id, nil
}

// itemAt returns the id of the item at file path p, or 0.
func (a *App) itemAt(p string) (int64, error) {
	root, album, err := a.locate(filepath.Dir(p))
	if err != nil {
		return 0, err
	}
	albumID, err := a.catalog.GetAlbumForPath(root.ID, album)
	if err != nil || albumID == 0 {
		return 0, err
	}
	return a.catalog.GetImageID(albumID, filepath.Base(p))
}

// Watch runs partial scans for filesystem changes below all album roots
// until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if !a.cfg.Watch.Enabled {
		return fmt.Errorf("watching is disabled; set enabled = true in [watch]")
	}
	roots, err := a.catalog.ListAlbumRoots()
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return fmt.Errorf("no album roots to watch")
	}
	if err := a.begin(); err != nil {
		return err
	}
	a.observe(ctx)

	paths := make([]string, len(roots))
	for i, r := range roots {
		paths[i] = r.Path
	}
	debounce := time.Duration(a.cfg.Watch.DebounceMS) * time.Millisecond
	w, err := watch.New(paths, a.settings.IgnoreDirectories, debounce, a.logger, func(dir string) error {
		_, err := a.scanner.PartialScanPath(dir)
		if errors.Is(err, collection.ErrCancelled) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	a.logger.Info("watching album roots", "roots", len(paths))
	return w.Run(ctx)
}

// Purge deletes obsolete item rows and stale albums.
func (a *App) Purge() (int, error) {
	if err := a.begin(); err != nil {
		return 0, err
	}
	n, err := a.catalog.DeleteObsoleteItems()
	if err != nil {
		return 0, err
	}
	if err := a.catalog.DeleteStaleAlbums(); err != nil {
		return n, err
	}
	a.logger.Info("catalog purged", "items", n)
	return n, nil
}

// BuildThumbnails renders missing thumbnails.
func (a *App) BuildThumbnails(ctx context.Context) (*thumbs.Result, error) {
	if err := a.begin(); err != nil {
		return nil, err
	}
	g := thumbs.NewGenerator(a.catalog, a.thumbs, a.logger)
	g.SetObserver(collection.ContextObserver(ctx))
	return g.Build()
}

// Read-only queries

// AlbumEntry is one album with its item count.
type AlbumEntry struct {
	RootLabel    string
	RootPath     string
	RelativePath string
	Items        int
}

// Albums lists all albums of available roots.
func (a *App) Albums() ([]AlbumEntry, error) {
	roots, err := a.catalog.ListAlbumRoots()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*collection.AlbumRoot, len(roots))
	for _, r := range roots {
		byID[r.ID] = r
	}

	infos, err := a.catalog.GetAlbumShortInfos()
	if err != nil {
		return nil, err
	}
	entries := make([]AlbumEntry, 0, len(infos))
	for _, info := range infos {
		root := byID[info.AlbumRootID]
		if root == nil {
			continue
		}
		n, err := a.catalog.GetNumberOfItemsInAlbum(info.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, AlbumEntry{
			RootLabel:    root.Label,
			RootPath:     root.Path,
			RelativePath: info.RelativePath,
			Items:        n,
		})
	}
	return entries, nil
}

// Status summarizes the catalog.
type Status struct {
	HostID          string
	InitialScanDone bool
	Roots           []*collection.AlbumRoot
	Albums          int
	Items           map[collection.ItemStatus]int
	Deferred        int
	LastOperation   *model.ScanOperation
	KeysConfigured  bool
}

// Status reports catalog counts and pending work.
func (a *App) Status() (*Status, error) {
	st := &Status{HostID: a.cfg.HostID, Items: make(map[collection.ItemStatus]int)}

	var err error
	if st.InitialScanDone, err = a.scanner.InitialScanDone(); err != nil {
		return nil, err
	}
	if st.Roots, err = a.catalog.ListAlbumRoots(); err != nil {
		return nil, err
	}
	albums, err := a.catalog.GetAlbumShortInfos()
	if err != nil {
		return nil, err
	}
	st.Albums = len(albums)

	for _, s := range []collection.ItemStatus{collection.StatusVisible, collection.StatusHidden, collection.StatusTrashed, collection.StatusObsolete} {
		ids, err := a.catalog.GetItemIDsByStatus(s)
		if err != nil {
			return nil, err
		}
		st.Items[s] = len(ids)
	}

	if st.Deferred, err = a.deferred.Count(); err != nil {
		return nil, err
	}
	ops, err := a.catalog.ListScanOperations(1)
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		st.LastOperation = ops[0]
	}
	st.KeysConfigured = a.encryptor.IsConfigured()
	return st, nil
}

// History returns the most recent operations, newest first.
func (a *App) History(limit int) ([]*model.ScanOperation, error) {
	return a.catalog.ListScanOperations(limit)
}

// Snapshots

func (a *App) snapshots() (*snapshot.Service, error) {
	if a.snapshotSvc != nil {
		return a.snapshotSvc, nil
	}
	v, err := vault.NewVaultFromConfig(a.cfg.Snapshot.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	a.snapshotSvc = snapshot.NewService(a.catalog, v, a.encryptor, a.cfg.HostID, a.logger, a.clock, collection.UUIDGenerator{})
	return a.snapshotSvc, nil
}

// SetupKeys generates the snapshot key pair.
func (a *App) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// PublicKey returns the age recipient of this host, when age is in use.
func (a *App) PublicKey() (string, error) {
	age, ok := a.encryptor.(*encryption.AgeEncryptor)
	if !ok {
		return "", fmt.Errorf("encryption type %q has no public key", a.cfg.Snapshot.Encryption.Type)
	}
	return age.PublicKey()
}

// CreateSnapshot stores an encrypted copy of the catalog in the vault.
func (a *App) CreateSnapshot() (*snapshot.Manifest, error) {
	if err := a.begin(); err != nil {
		return nil, err
	}
	svc, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	return svc.Create(a.op.ID)
}

// ListSnapshots returns the snapshots of this host, oldest first.
func (a *App) ListSnapshots() ([]snapshot.Manifest, error) {
	svc, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	return svc.List()
}

// PruneSnapshots keeps the newest keep snapshots.
func (a *App) PruneSnapshots(keep int) (int, error) {
	svc, err := a.snapshots()
	if err != nil {
		return 0, err
	}
	return svc.Prune(keep)
}

// Unlock opens the private snapshot key with passphrase.
func (a *App) Unlock(passphrase string) (snapshot.DecryptionContext, error) {
	return a.encryptor.Unlock(passphrase)
}

// RestoreSnapshot writes snapshot id (the latest when empty) to destPath.
// The live catalog is not touched.
func (a *App) RestoreSnapshot(id, destPath string, decryptCtx snapshot.DecryptionContext) (*snapshot.Manifest, error) {
	svc, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	dest, err := absPath(destPath)
	if err != nil {
		return nil, err
	}
	return svc.Restore(id, decryptCtx, dest)
}

// Close finishes the operation record, snapshots the catalog after
// successful complete scans when enabled, and releases all resources.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		keep(a.catalog.FinishScanOperation(a.op.ID, a.op.Status))
		a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status)

		if a.snapshotOnClose && a.cfg.Snapshot.Enabled && a.op.Status == "success" {
			if svc, err := a.snapshots(); err != nil {
				keep(err)
			} else if _, err := svc.Create(a.op.ID); err != nil {
				keep(fmt.Errorf("snapshotting catalog: %w", err))
			}
		}
	}

	if err := a.catalog.Close(); err != nil {
		keep(fmt.Errorf("closing catalog: %w", err))
	}
	keep(a.lock.release())
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
