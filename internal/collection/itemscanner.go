package collection

import (
	"io/fs"
	"time"
)

// ItemScannerFactory creates one ItemScanner per file.
type ItemScannerFactory interface {
	// NewItemScanner prepares a scanner for the file at path. prior is the
	// current catalog record, or nil for a file not yet in the catalog.
	NewItemScanner(path string, info fs.FileInfo, prior *ItemScanInfo) ItemScanner
}

// ItemScanner builds the catalog record for a single file. Exactly one of
// the scan actions is invoked, followed by Commit.
type ItemScanner interface {
	SetCategory(category Category)

	// NewFile adds a file, reviving a removed item with the same content
	// identity when one exists.
	NewFile(albumID int64) error
	// NewFileFullScan adds a file as a new item with a full metadata read.
	NewFileFullScan(albumID int64) error
	// FileModified refreshes content identity and dates of a changed file.
	FileModified() error
	// CleanScan drops metadata taken from the file and reads it again.
	CleanScan() error
	// Rescan reads all metadata again, keeping user data.
	Rescan() error
	// CopiedFrom binds the file to a known source item.
	CopiedFrom(albumID, sourceID int64) error

	// Commit writes the result to the catalog in one transaction.
	Commit() error

	ID() int64
	ScanInfo() ItemScanInfo
	// CreationDate is the content creation date, zero when unknown.
	CreationDate() time.Time
	HasHistoryToResolve() bool
}

// HistoryResolver resolves provenance for the history pipeline.
type HistoryResolver interface {
	// ResolveHistory turns the raw history of an item into relations and
	// returns the ids whose history graph needs tagging.
	ResolveHistory(catalog Catalog, id int64) ([]int64, error)

	// TagHistoryGraph tags every item in the history graph of id.
	TagHistoryGraph(catalog Catalog, id int64) error
}
