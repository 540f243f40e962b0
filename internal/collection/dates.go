package collection

import (
	"fmt"
	"time"
)

// ModificationDateEquals reports whether two file timestamps denote the same
// modification. Both must be set; they may differ by up to one second since
// some filesystems (FAT) store mtimes at two-second resolution.
func ModificationDateEquals(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= time.Second
}

// AlbumDateSource selects how an album's aggregate date is derived.
type AlbumDateSource int

const (
	// AlbumDateFolder uses the directory's own timestamp.
	AlbumDateFolder AlbumDateSource = iota
	AlbumDateOldest
	AlbumDateNewest
	// AlbumDateAverage uses the midpoint of the oldest and newest item dates.
	AlbumDateAverage
)

// ParseAlbumDateSource maps a configuration value to an AlbumDateSource.
func ParseAlbumDateSource(s string) (AlbumDateSource, error) {
	switch s {
	case "folder", "":
		return AlbumDateFolder, nil
	case "oldest":
		return AlbumDateOldest, nil
	case "newest":
		return AlbumDateNewest, nil
	case "average":
		return AlbumDateAverage, nil
	default:
		return AlbumDateFolder, fmt.Errorf("unknown album date source: %q", s)
	}
}

func (s AlbumDateSource) String() string {
	switch s {
	case AlbumDateOldest:
		return "oldest"
	case AlbumDateNewest:
		return "newest"
	case AlbumDateAverage:
		return "average"
	default:
		return "folder"
	}
}

// dateOf truncates t to its calendar day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const unixEpochJulianDay = 2440588

func julianDay(date time.Time) int64 {
	return dateOf(date).Unix()/86400 + unixEpochJulianDay
}

func fromJulianDay(jd int64) time.Time {
	return time.Unix((jd-unixEpochJulianDay)*86400, 0).UTC()
}

// albumDateTracker folds the creation dates of newly found items into the
// album date, starting from the directory date.
type albumDateTracker struct {
	source  AlbumDateSource
	folder  time.Time
	oldest  time.Time
	newest  time.Time
	changed bool
}

func newAlbumDateTracker(source AlbumDateSource, folderModified time.Time) *albumDateTracker {
	d := dateOf(folderModified)
	return &albumDateTracker{source: source, folder: d, oldest: d, newest: d}
}

func (t *albumDateTracker) add(itemDate time.Time) {
	if itemDate.IsZero() {
		return
	}
	d := dateOf(itemDate)
	if t.source == AlbumDateFolder {
		t.changed = true
		return
	}
	if t.source == AlbumDateNewest || t.source == AlbumDateAverage {
		if d.After(t.newest) {
			t.newest = d
			t.changed = true
		}
	}
	if t.source == AlbumDateOldest || t.source == AlbumDateAverage {
		if d.Before(t.oldest) {
			t.oldest = d
			t.changed = true
		}
	}
}

// result returns the album date to store, and false when nothing changed.
func (t *albumDateTracker) result() (time.Time, bool) {
	if !t.changed {
		return time.Time{}, false
	}
	switch t.source {
	case AlbumDateOldest:
		return t.oldest, true
	case AlbumDateNewest:
		return t.newest, true
	case AlbumDateAverage:
		return fromJulianDay((julianDay(t.oldest) + julianDay(t.newest)) / 2), true
	default:
		return t.folder, true
	}
}
