package itemscan

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"colsync/internal/collection"
	"colsync/internal/history"
)

// Factory creates item scanners that read files through a FilesystemManager
// and write to a Catalog.
type Factory struct {
	catalog collection.Catalog
	fsmgr   collection.FilesystemManager
	logger  collection.Logger
}

// NewFactory creates an item scanner factory.
func NewFactory(catalog collection.Catalog, fsmgr collection.FilesystemManager, logger collection.Logger) *Factory {
	return &Factory{catalog: catalog, fsmgr: fsmgr, logger: logger}
}

// NewItemScanner prepares a scanner for one file.
func (f *Factory) NewItemScanner(filePath string, info fs.FileInfo, prior *collection.ItemScanInfo) collection.ItemScanner {
	s := &Scanner{
		f:        f,
		filePath: filePath,
		info:     info,
		prior:    prior,
	}
	if prior != nil {
		s.scanInfo = *prior
		s.id = prior.ID
	}
	s.scanInfo.Name = path.Base(filePath)
	s.scanInfo.ModificationDate = info.ModTime()
	s.scanInfo.FileSize = info.Size()
	return s
}

var _ collection.ItemScannerFactory = (*Factory)(nil)

type action int

const (
	actionNone action = iota
	actionNew
	actionNewFull
	actionModified
	actionClean
	actionRescan
	actionMove
	actionCopy
)

// Scanner builds the catalog record for one file. The scan actions read
// the file; Commit writes the result in one transaction.
type Scanner struct {
	f        *Factory
	filePath string
	info     fs.FileInfo
	prior    *collection.ItemScanInfo

	action   action
	albumID  int64
	sourceID int64

	scanInfo collection.ItemScanInfo
	metadata Metadata
	history  *history.Description
	rawHist  string

	id           int64
	creationDate time.Time
	hasHistory   bool
}

// SetCategory overrides the category derived from the file name.
func (s *Scanner) SetCategory(category collection.Category) {
	s.scanInfo.Category = category
}

// NewFile adds the file. A trashed item with the same content identity is
// revived on commit instead of inserting a new row.
func (s *Scanner) NewFile(albumID int64) error {
	s.action = actionNew
	return s.prepareNew(albumID)
}

// NewFileFullScan adds the file and reads all of its metadata.
func (s *Scanner) NewFileFullScan(albumID int64) error {
	s.action = actionNewFull
	return s.prepareNew(albumID)
}

func (s *Scanner) prepareNew(albumID int64) error {
	s.albumID = albumID
	s.scanInfo.AlbumID = albumID
	s.scanInfo.Status = collection.StatusVisible
	if err := s.loadFromDisk(true); err != nil {
		return err
	}
	return s.readHistory()
}

// FileModified refreshes hash, size and dates of a changed file and keeps
// its catalog metadata.
func (s *Scanner) FileModified() error {
	if err := s.requirePrior(); err != nil {
		return err
	}
	s.action = actionModified
	return s.loadFromDisk(true)
}

// CleanScan drops metadata read from the file and reads it again.
func (s *Scanner) CleanScan() error {
	if err := s.requirePrior(); err != nil {
		return err
	}
	s.action = actionClean
	if err := s.loadFromDisk(true); err != nil {
		return err
	}
	return s.readHistory()
}

// Rescan reads all metadata again on top of the existing record.
func (s *Scanner) Rescan() error {
	if err := s.requirePrior(); err != nil {
		return err
	}
	s.action = actionRescan
	if err := s.loadFromDisk(true); err != nil {
		return err
	}
	return s.readHistory()
}

// CopiedFrom binds the file to sourceID. When the source is gone from its
// old place the file is treated as moved and keeps the source id;
// otherwise a copy with the source's attributes is created.
func (s *Scanner) CopiedFrom(albumID, sourceID int64) error {
	s.albumID = albumID
	s.scanInfo.AlbumID = albumID
	s.scanInfo.Status = collection.StatusVisible

	src, err := s.f.catalog.GetItemScanInfo(sourceID)
	if err != nil {
		return fmt.Errorf("reading source item %d: %w", sourceID, err)
	}
	if src == nil {
		s.f.logger.Debug("copy source vanished, scanning as new file", "path", s.filePath, "source", sourceID)
		return s.NewFile(albumID)
	}

	s.sourceID = sourceID
	moved, err := s.sourceMoved(src)
	if err != nil {
		return err
	}

	if src.FileSize == s.scanInfo.FileSize && src.UniqueHash != "" {
		s.scanInfo.UniqueHash = src.UniqueHash
	} else if err := s.loadFromDisk(false); err != nil {
		return err
	}

	created, err := s.f.catalog.GetItemCreationDate(sourceID)
	if err != nil {
		return fmt.Errorf("reading source creation date: %w", err)
	}
	s.creationDate = created

	if moved {
		s.action = actionMove
		s.id = sourceID
	} else {
		s.action = actionCopy
	}
	return nil
}

// sourceMoved reports whether the source item no longer has a file at its
// recorded place.
func (s *Scanner) sourceMoved(src *collection.ItemScanInfo) (bool, error) {
	if src.Status == collection.StatusTrashed || src.Status == collection.StatusObsolete {
		return true, nil
	}
	loc, err := s.f.catalog.GetItemLocation(src.ID)
	if err != nil {
		return false, fmt.Errorf("locating source item: %w", err)
	}
	if loc == nil {
		return true, nil
	}
	if _, err := s.f.fsmgr.Stat(loc.FilePath()); errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, nil
}

func (s *Scanner) requirePrior() error {
	if s.prior == nil {
		return fmt.Errorf("%s: no catalog record to update", s.filePath)
	}
	return nil
}

// loadFromDisk computes the unique hash and, when withMetadata is set,
// reads embedded metadata. The creation date falls back to the mtime.
func (s *Scanner) loadFromDisk(withMetadata bool) error {
	hash, err := s.hashFile()
	if err != nil {
		return err
	}
	s.scanInfo.UniqueHash = hash

	if !withMetadata {
		return nil
	}
	if s.scanInfo.Category == collection.CategoryImage {
		rc, err := s.f.fsmgr.Open(s.filePath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", s.filePath, err)
		}
		s.metadata = ReadMetadata(rc)
		rc.Close()
	}
	s.creationDate = s.metadata.CreationDate
	if s.creationDate.IsZero() {
		s.creationDate = s.info.ModTime()
	}
	return nil
}

func (s *Scanner) hashFile() (string, error) {
	rc, err := s.f.fsmgr.Open(s.filePath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", s.filePath, err)
	}
	defer rc.Close()

	hash, err := UniqueHash(rc, s.info.Size())
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", s.filePath, err)
	}
	return hash, nil
}

// readHistory loads the history sidecar, if any.
func (s *Scanner) readHistory() error {
	rc, err := s.f.fsmgr.Open(s.filePath + history.SidecarSuffix)
	if err != nil {
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("reading history sidecar: %w", err)
	}
	desc, err := history.ParseDescription(data)
	if err != nil {
		s.f.logger.Warn("ignoring invalid history sidecar", "path", s.filePath, "error", err)
		return nil
	}
	s.history = desc
	s.rawHist = string(data)
	return nil
}

// Commit writes the scan result to the catalog.
func (s *Scanner) Commit() error {
	if s.action == actionNone {
		return fmt.Errorf("%s: commit without scan", s.filePath)
	}
	return s.f.catalog.InTransaction(func(c collection.Catalog) error {
		switch s.action {
		case actionNew:
			revived, err := s.revive(c)
			if err != nil || revived {
				return err
			}
			return s.insert(c)
		case actionNewFull:
			return s.insert(c)
		case actionModified:
			if err := c.UpdateItem(&s.scanInfo); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}
			return c.SetItemCreationDate(s.id, s.creationDate)
		case actionClean:
			if err := c.UpdateItem(&s.scanInfo); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}
			if err := c.ClearItemMetadata(s.id); err != nil {
				return fmt.Errorf("clearing metadata: %w", err)
			}
			return s.writeMetadata(c)
		case actionRescan:
			if err := c.UpdateItem(&s.scanInfo); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}
			return s.writeMetadata(c)
		case actionMove:
			if err := c.MoveItem(s.id, s.albumID, s.scanInfo.Name); err != nil {
				return fmt.Errorf("moving item: %w", err)
			}
			s.scanInfo.ID = s.id
			return c.UpdateItem(&s.scanInfo)
		case actionCopy:
			id, err := c.AddItem(&s.scanInfo)
			if err != nil {
				return fmt.Errorf("adding item: %w", err)
			}
			s.id = id
			s.scanInfo.ID = id
			if err := c.CopyItemAttributes(s.sourceID, id); err != nil {
				return fmt.Errorf("copying attributes: %w", err)
			}
			return nil
		}
		return nil
	})
}

// revive moves a trashed item with the same content identity into place.
func (s *Scanner) revive(c collection.Catalog) (bool, error) {
	id, err := c.FindRemovedItemByHash(s.scanInfo.UniqueHash, s.scanInfo.FileSize)
	if err != nil {
		return false, fmt.Errorf("looking up removed item: %w", err)
	}
	if id == 0 {
		return false, nil
	}
	if err := c.MoveItem(id, s.albumID, s.scanInfo.Name); err != nil {
		return false, fmt.Errorf("reviving item %d: %w", id, err)
	}
	s.id = id
	s.scanInfo.ID = id
	if err := c.UpdateItem(&s.scanInfo); err != nil {
		return false, fmt.Errorf("reviving item %d: %w", id, err)
	}

	created, err := c.GetItemCreationDate(id)
	if err != nil {
		return false, err
	}
	if created.IsZero() {
		return true, c.SetItemCreationDate(id, s.creationDate)
	}
	s.creationDate = created
	return true, nil
}

func (s *Scanner) insert(c collection.Catalog) error {
	id, err := c.AddItem(&s.scanInfo)
	if err != nil {
		return fmt.Errorf("adding item: %w", err)
	}
	s.id = id
	s.scanInfo.ID = id
	return s.writeMetadata(c)
}

func (s *Scanner) writeMetadata(c collection.Catalog) error {
	if err := c.SetItemCreationDate(s.id, s.creationDate); err != nil {
		return fmt.Errorf("writing creation date: %w", err)
	}
	if s.metadata.Comment != "" {
		if err := c.SetItemComment(s.id, s.metadata.Comment); err != nil {
			return fmt.Errorf("writing comment: %w", err)
		}
	}
	if s.metadata.HasPosition {
		if err := c.SetItemPosition(s.id, s.metadata.Latitude, s.metadata.Longitude); err != nil {
			return fmt.Errorf("writing position: %w", err)
		}
	}
	if s.history == nil {
		return nil
	}
	if err := c.SetItemHistory(s.id, s.history.UUID, s.rawHist); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if s.history.HasReferences() {
		if err := c.AddItemTag(s.id, collection.TagNeedResolvingHistory); err != nil {
			return fmt.Errorf("tagging history: %w", err)
		}
		s.hasHistory = true
	}
	return nil
}

// ID returns the item id, known after Commit.
func (s *Scanner) ID() int64 { return s.id }

// ScanInfo returns the record written by Commit.
func (s *Scanner) ScanInfo() collection.ItemScanInfo { return s.scanInfo }

// CreationDate returns the content creation date, or the mtime.
func (s *Scanner) CreationDate() time.Time { return s.creationDate }

// HasHistoryToResolve reports whether the file carried a version history.
func (s *Scanner) HasHistoryToResolve() bool { return s.hasHistory }

var _ collection.ItemScanner = (*Scanner)(nil)
