package collection

import "time"

// AlbumStore covers album roots and albums.
type AlbumStore interface {
	// ListAlbumRoots returns all registered album roots.
	ListAlbumRoots() ([]*AlbumRoot, error)

	// AddAlbumRoot registers a new album root.
	AddAlbumRoot(label, path string, caseSensitivity CaseSensitivity) (*AlbumRoot, error)

	// DeleteAlbumRoot unregisters an album root. Its albums are made stale.
	DeleteAlbumRoot(id int64) error

	// GetAlbumShortInfos lists every album with a live root.
	GetAlbumShortInfos() ([]AlbumShortInfo, error)

	// GetAlbum returns an album by id, or nil if it does not exist.
	GetAlbum(id int64) (*Album, error)

	// GetAlbumForPath returns the id of the album at (root, relativePath), or 0.
	GetAlbumForPath(albumRootID int64, relativePath string) (int64, error)

	// AddAlbum inserts (or replaces) the album at (root, relativePath).
	AddAlbum(albumRootID int64, relativePath string, date time.Time) (int64, error)

	// CopyAlbumProperties copies date, caption and collection from src to dst.
	CopyAlbumProperties(srcAlbumID, dstAlbumID int64) error

	// RenameAlbum moves an album row to a new root and relative path.
	// Stale rows left behind at the destination are deleted first.
	RenameAlbum(albumID, newAlbumRootID int64, newRelativePath string) error

	// SetAlbumModificationDate records the directory mtime last seen.
	SetAlbumModificationDate(albumID int64, modified time.Time) error

	// SetAlbumDate sets the aggregate album date.
	SetAlbumDate(albumID int64, date time.Time) error

	// GetAlbumModificationMap maps relative path to recorded mtime for a root.
	GetAlbumModificationMap(albumRootID int64) (map[string]time.Time, error)

	// GetAlbumAndSubalbumsForPath returns the album at the path and all its descendants.
	GetAlbumAndSubalbumsForPath(albumRootID int64, relativePath string) ([]int64, error)

	// MakeStaleAlbum detaches an album from its root (root id 0).
	MakeStaleAlbum(albumID int64) error

	// DeleteStaleAlbums purges all albums previously made stale.
	DeleteStaleAlbums() error

	// GetNumberOfItemsInAlbum counts the visible items of an album.
	GetNumberOfItemsInAlbum(albumID int64) (int, error)
}

// ItemStore covers item rows.
type ItemStore interface {
	// GetItemScanInfos lists the items of an album.
	GetItemScanInfos(albumID int64) ([]ItemScanInfo, error)

	// GetItemScanInfo returns one item, or nil if it does not exist.
	GetItemScanInfo(id int64) (*ItemScanInfo, error)

	// GetImageID returns the id of the item named name in an album, or 0.
	GetImageID(albumID int64, name string) (int64, error)

	// AddItem inserts an item, replacing any row at the same (album, name).
	AddItem(info *ItemScanInfo) (int64, error)

	// UpdateItem writes the scan fields of an existing item.
	UpdateItem(info *ItemScanInfo) error

	// MoveItem relocates an item to (albumID, name), deleting any stale row there.
	MoveItem(id, albumID int64, name string) error

	// SetItemStatus changes the status of an item.
	SetItemStatus(id int64, status ItemStatus) error

	// RemoveItems marks items as trashed and detaches them from their album.
	RemoveItems(ids []int64) error

	// GetItemIDsInAlbums lists the non-removed items of the given albums.
	GetItemIDsInAlbums(albumIDs []int64) ([]int64, error)

	// GetItemIDsByStatus lists all items with a status.
	GetItemIDsByStatus(status ItemStatus) ([]int64, error)

	// FindRemovedItemByHash returns a trashed item with the given content identity, or 0.
	FindRemovedItemByHash(uniqueHash string, fileSize int64) (int64, error)

	// GetItemIDsByHash lists live items with the given content identity.
	GetItemIDsByHash(uniqueHash string, fileSize int64) ([]int64, error)

	// GetItemLocation resolves an item to its root and album, or nil when it has none.
	GetItemLocation(id int64) (*ItemLocation, error)

	// ListItemLocations lists every visible item with its location.
	ListItemLocations() ([]*ItemLocation, error)

	// CopyItemAttributes copies tags, comments, positions, history and relations.
	CopyItemAttributes(srcID, dstID int64) error

	// SetItemCreationDate stores the content creation date of an item.
	SetItemCreationDate(id int64, date time.Time) error

	// GetItemCreationDate returns the content creation date, zero when unknown.
	GetItemCreationDate(id int64) (time.Time, error)

	// SetItemComment replaces the default description of an item.
	SetItemComment(id int64, comment string) error

	// SetItemPosition stores the GPS position of an item.
	SetItemPosition(id int64, latitude, longitude float64) error

	// ClearItemMetadata drops comment and position read from the file.
	ClearItemMetadata(id int64) error

	// DeleteObsoleteItems purges obsolete rows and returns how many were removed.
	DeleteObsoleteItems() (int, error)
}

// TagStore covers internal marker tags.
type TagStore interface {
	GetItemIDsInTag(tag string) ([]int64, error)
	GetItemTags(id int64) ([]string, error)
	AddItemTag(id int64, tag string) error
	RemoveItemTag(id int64, tag string) error
}

// HistoryStore covers raw history descriptions and resolved relations.
type HistoryStore interface {
	SetItemHistory(id int64, uuid, history string) error
	GetItemHistory(id int64) (*ItemHistory, error)
	GetItemIDsByUUID(uuid string) ([]int64, error)
	AddRelation(subject, object int64, relation RelationType) error
	// GetRelationCloud returns every (subject, object) pair reachable from id.
	GetRelationCloud(id int64, relation RelationType) ([][2]int64, error)
}

// SettingsStore is a key/value table.
type SettingsStore interface {
	// GetSetting returns "" when the setting is absent.
	GetSetting(name string) (string, error)
	SetSetting(name, value string) error
}

// Catalog is the persistent store the scanner reconciles the filesystem with.
type Catalog interface {
	AlbumStore
	ItemStore
	TagStore
	HistoryStore
	SettingsStore

	// InTransaction runs fn with a catalog bound to one transaction. The
	// transaction commits when fn returns nil. Nested calls join the
	// outer transaction.
	InTransaction(fn func(Catalog) error) error

	// Close closes the catalog.
	Close() error
}

// ThumbnailStore keys rendered thumbnails by content identity.
type ThumbnailStore interface {
	// FindByHash returns the thumbnail id for a content identity, or 0.
	FindByHash(uniqueHash string, fileSize int64) (int64, error)

	// InsertUniqueHash links another content identity to a thumbnail.
	InsertUniqueHash(uniqueHash string, fileSize int64, thumbnailID int64) error

	// ReplaceUniqueHash re-keys a thumbnail under a new content identity.
	ReplaceUniqueHash(oldHash string, oldSize int64, newHash string, newSize int64) error

	// UpdateModificationDate records the file mtime the thumbnail was built from.
	UpdateModificationDate(thumbnailID int64, modified time.Time) error
}
