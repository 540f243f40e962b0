package collection

import (
	"strings"
	"time"
)

// NameFilters maps lower-case file suffixes to the category they denote.
// Files whose suffix is not present are not part of the collection.
type NameFilters map[string]Category

// NewNameFilters builds filters from suffix lists. Leading dots and "*."
// prefixes are stripped and suffixes are lower-cased.
func NewNameFilters(image, video, audio []string) NameFilters {
	f := make(NameFilters)
	add := func(list []string, c Category) {
		for _, s := range list {
			s = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "*"), "."))
			if s != "" {
				f[s] = c
			}
		}
	}
	add(image, CategoryImage)
	add(video, CategoryVideo)
	add(audio, CategoryAudio)
	return f
}

// Category returns the category for fileName and whether it passes the filter.
func (f NameFilters) Category(fileName string) (Category, bool) {
	c, ok := f[strings.ToLower(suffix(fileName))]
	return c, ok
}

// DefaultImageFilters are the image suffixes recognized when none are configured.
var DefaultImageFilters = []string{
	"jpg", "jpeg", "jpe", "png", "gif", "bmp", "tif", "tiff", "webp", "heic", "heif",
	"avif", "jxl", "dng", "cr2", "cr3", "nef", "arw", "orf", "rw2", "raf", "pef", "srw",
}

// DefaultVideoFilters are the video suffixes recognized when none are configured.
var DefaultVideoFilters = []string{
	"mp4", "mov", "avi", "mkv", "m4v", "mpg", "mpeg", "mts", "m2ts", "3gp", "webm", "wmv",
}

// DefaultAudioFilters are the audio suffixes recognized when none are configured.
var DefaultAudioFilters = []string{
	"mp3", "flac", "ogg", "wav", "m4a", "aac", "opus", "wma",
}

// RemovalPolicy gates the promotion of trashed items to obsolete.
type RemovalPolicy struct {
	// RemoveAfter is the minimum age of the last removal.
	RemoveAfter time.Duration
	// MinBetweenDeletes is the minimum time since the previous promotion.
	MinBetweenDeletes time.Duration
	// ForceAfter and ForceAfterScans: after a previous promotion, the next
	// one needs either this much time or this many complete scans.
	ForceAfter      time.Duration
	ForceAfterScans int
}

// DefaultRemovalPolicy waits a week after removals and otherwise promotes
// after thirty days or ten complete scans.
func DefaultRemovalPolicy() RemovalPolicy {
	return RemovalPolicy{
		RemoveAfter:       7 * 24 * time.Hour,
		MinBetweenDeletes: 7 * 24 * time.Hour,
		ForceAfter:        30 * 24 * time.Hour,
		ForceAfterScans:   10,
	}
}

// Settings configures a CollectionScanner.
type Settings struct {
	NameFilters       NameFilters
	IgnoreDirectories Matcher

	FastScan      bool
	AlbumDateFrom AlbumDateSource
	// RescanIfModified selects a clean rescan instead of the lightweight
	// update when a file diverges from the catalog.
	RescanIfModified bool
	// UseXMPSidecar makes sidecar files part of change detection.
	UseXMPSidecar bool
	// UpdateFileTimestamp extends a file's mtime with a newer sidecar mtime.
	UpdateFileTimestamp bool
	// DeferredFileScanning syncs album structure only and collects the album
	// paths whose files still need scanning.
	DeferredFileScanning bool
	// UpdatingHash re-keys unchanged files after a content hash version change.
	UpdatingHash bool
	// CountTotalFiles pre-counts files for progress reporting.
	CountTotalFiles bool

	RemovedItems RemovalPolicy
}

// DefaultSettings returns settings with the default name filters and fast scan on.
func DefaultSettings() Settings {
	return Settings{
		NameFilters:   NewNameFilters(DefaultImageFilters, DefaultVideoFilters, DefaultAudioFilters),
		FastScan:      true,
		AlbumDateFrom: AlbumDateFolder,
		RemovedItems:  DefaultRemovalPolicy(),
	}
}
