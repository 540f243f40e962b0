package app

import (
	"fmt"
	"time"

	"colsync/internal/collection"
	"colsync/internal/config"
	colfs "colsync/internal/fs"
)

const day = 24 * time.Hour

// scanSettings translates the [scan] section into scanner settings. Ignore
// patterns come from the config and from the optional ignore file in baseDir.
func scanSettings(cfg config.ScanConfig, baseDir string) (collection.Settings, error) {
	settings := collection.DefaultSettings()

	dateFrom, err := collection.ParseAlbumDateSource(cfg.AlbumDateFrom)
	if err != nil {
		return settings, err
	}

	patterns := append([]string{}, cfg.IgnoreDirectories...)
	fromFile, err := colfs.ParseIgnoreFile(ignoreFilePath(baseDir))
	if err != nil {
		return settings, fmt.Errorf("reading ignore file: %w", err)
	}
	patterns = append(patterns, fromFile...)

	settings.NameFilters = collection.NewNameFilters(
		orDefault(cfg.ImageFilters, collection.DefaultImageFilters),
		orDefault(cfg.VideoFilters, collection.DefaultVideoFilters),
		orDefault(cfg.AudioFilters, collection.DefaultAudioFilters),
	)
	settings.IgnoreDirectories = colfs.NewIgnoreMatcher(patterns)
	settings.FastScan = cfg.FastScan
	settings.AlbumDateFrom = dateFrom
	settings.RescanIfModified = cfg.RescanIfModified
	settings.UseXMPSidecar = cfg.UseXMPSidecar
	settings.UpdateFileTimestamp = cfg.UpdateFileTimestamp
	settings.DeferredFileScanning = cfg.DeferredFileScanning
	settings.UpdatingHash = cfg.UpdatingHash
	settings.CountTotalFiles = cfg.CountTotalFiles

	policy := collection.DefaultRemovalPolicy()
	if cfg.RemoveAfterDays > 0 {
		policy.RemoveAfter = time.Duration(cfg.RemoveAfterDays) * day
	}
	if cfg.MinDaysBetweenDeletes > 0 {
		policy.MinBetweenDeletes = time.Duration(cfg.MinDaysBetweenDeletes) * day
	}
	if cfg.ForceDeleteAfterDays > 0 {
		policy.ForceAfter = time.Duration(cfg.ForceDeleteAfterDays) * day
	}
	if cfg.ForceDeleteAfterScans > 0 {
		policy.ForceAfterScans = cfg.ForceDeleteAfterScans
	}
	settings.RemovedItems = policy
	return settings, nil
}

func orDefault(list, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}
