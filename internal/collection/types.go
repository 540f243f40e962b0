package collection

import (
	"strings"
	"time"
)

// RootAlbumPath is the relative path of the album that represents an album root itself.
const RootAlbumPath = "/"

// ItemStatus is the lifecycle state of a catalog item.
type ItemStatus int

const (
	StatusUndefined ItemStatus = iota
	StatusVisible
	StatusHidden
	// StatusTrashed marks an item whose file disappeared. The row is kept
	// (with no album) until it is promoted to StatusObsolete.
	StatusTrashed
	StatusObsolete
)

func (s ItemStatus) String() string {
	switch s {
	case StatusVisible:
		return "visible"
	case StatusHidden:
		return "hidden"
	case StatusTrashed:
		return "trashed"
	case StatusObsolete:
		return "obsolete"
	default:
		return "undefined"
	}
}

// Category classifies an item by the kind of media it holds.
type Category int

const (
	CategoryUndefined Category = iota
	CategoryImage
	CategoryVideo
	CategoryAudio
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	case CategoryOther:
		return "other"
	default:
		return "undefined"
	}
}

// CaseSensitivity describes how an album root's filesystem compares names.
type CaseSensitivity int

const (
	CaseUnknown CaseSensitivity = iota
	CaseSensitive
	CaseInsensitive
)

func (c CaseSensitivity) String() string {
	switch c {
	case CaseSensitive:
		return "sensitive"
	case CaseInsensitive:
		return "insensitive"
	default:
		return "unknown"
	}
}

// RootStatus is the user-facing state of an album root.
type RootStatus int

const (
	RootVisible RootStatus = iota
	RootHidden
)

// AlbumRoot is a registered collection location: a directory tree whose
// sub-directories become albums.
type AlbumRoot struct {
	ID              int64
	Label           string
	Path            string // absolute, no trailing slash
	CaseSensitivity CaseSensitivity
	Status          RootStatus
}

// AlbumPath returns the absolute directory path of an album in this root.
func (r *AlbumRoot) AlbumPath(album string) string {
	if album == RootAlbumPath {
		return r.Path
	}
	return r.Path + album
}

// Album is the catalog row for one directory.
type Album struct {
	ID               int64
	AlbumRootID      int64
	RelativePath     string
	Date             time.Time // aggregate date; zero when unset
	Caption          string
	Collection       string
	ModificationDate time.Time // last seen directory mtime; zero when unset
}

// AlbumShortInfo is the minimal album listing used by the stale sweep.
type AlbumShortInfo struct {
	ID           int64
	AlbumRootID  int64
	RelativePath string
}

// ItemScanInfo is the subset of an item row the scanner needs.
// A zero ModificationDate requests a full rescan.
type ItemScanInfo struct {
	ID               int64
	AlbumID          int64
	Name             string
	Status           ItemStatus
	Category         Category
	ModificationDate time.Time
	FileSize         int64
	UniqueHash       string
}

// ItemLocation resolves an item to its place on disk.
type ItemLocation struct {
	ItemID       int64
	AlbumRootID  int64
	RootPath     string
	RelativePath string
	Name         string
	Category     Category
	UniqueHash   string
	FileSize     int64
}

// FilePath returns the absolute path of the item's file.
func (l *ItemLocation) FilePath() string {
	if l.RelativePath == RootAlbumPath {
		return l.RootPath + "/" + l.Name
	}
	return l.RootPath + l.RelativePath + "/" + l.Name
}

// ItemHistory is the raw, unresolved history description of an item.
type ItemHistory struct {
	ItemID  int64
	UUID    string
	History string
}

// RelationType is the kind of an edge between two items.
type RelationType int

const (
	RelationDerivedFrom RelationType = 1
)

// Internal tag names used as processing markers.
const (
	TagNeedResolvingHistory    = "_internal/needResolvingHistory"
	TagNeedTaggingHistoryGraph = "_internal/needTaggingHistoryGraph"
	TagOriginalVersion         = "_internal/originalVersion"
	TagIntermediateVersion     = "_internal/intermediateVersion"
	TagCurrentVersion          = "_internal/currentVersion"
)

// Catalog setting keys.
const (
	SettingScanned                        = "Scanned"
	SettingRemovedItemsTime               = "RemovedItemsTime"
	SettingDeleteRemovedTime              = "DeleteRemovedTime"
	SettingDeleteRemovedCompleteScanCount = "DeleteRemovedCompleteScanCount"
)

// TempFileMarker is embedded in the complete suffix of temporary files this
// tool writes next to collection files (e.g. "a.colsynctmp.jpg").
const TempFileMarker = "colsynctmp."

// IsOwnTempFile reports whether fileName follows the temporary file convention.
func IsOwnTempFile(fileName string) bool {
	return strings.Contains(completeSuffix(fileName), TempFileMarker)
}

// completeSuffix returns everything after the first dot of a file name.
func completeSuffix(fileName string) string {
	i := strings.Index(fileName, ".")
	if i < 0 {
		return ""
	}
	return fileName[i+1:]
}

// suffix returns everything after the last dot of a file name.
func suffix(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return ""
	}
	return fileName[i+1:]
}

// completeBaseName returns the file name without its last suffix.
func completeBaseName(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return fileName
	}
	return fileName[:i]
}
