// Package deferred keeps the album directories whose file scanning was
// postponed by a complete scan in deferred mode. The queue survives process
// restarts so that a later "scan finish" can pick the albums up.
package deferred

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"colsync/internal/collection"
)

// Entry is one queued album directory.
type Entry struct {
	AlbumPath string    `json:"album_path"`
	QueuedAt  time.Time `json:"queued_at"`
}

// Queue is an ordered, duplicate-free set of album paths backed by a
// queueStore. Safe for concurrent use within one process.
type Queue struct {
	store queueStore
	clock collection.Clock
	mu    sync.Mutex
}

func newQueue(store queueStore, clock collection.Clock) *Queue {
	return &Queue{store: store, clock: clock}
}

// Add appends album paths that are not queued yet.
func (q *Queue) Add(albumPaths []string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load()
	if err != nil {
		return 0, fmt.Errorf("loading queue: %w", err)
	}
	queued := make(map[string]bool, len(entries))
	for _, e := range entries {
		queued[e.AlbumPath] = true
	}

	now := q.clock.Now().UTC()
	added := 0
	for _, p := range albumPaths {
		p = filepath.Clean(p)
		if queued[p] {
			continue
		}
		queued[p] = true
		entries = append(entries, Entry{AlbumPath: p, QueuedAt: now})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := q.store.Save(entries); err != nil {
		return 0, fmt.Errorf("saving queue: %w", err)
	}
	return added, nil
}

// Entries returns the queued albums in insertion order.
func (q *Queue) Entries() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Load()
}

// Count returns the number of queued albums.
func (q *Queue) Count() (int, error) {
	entries, err := q.Entries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Contains reports whether albumPath is queued.
func (q *Queue) Contains(albumPath string) (bool, error) {
	entries, err := q.Entries()
	if err != nil {
		return false, err
	}
	albumPath = filepath.Clean(albumPath)
	for _, e := range entries {
		if e.AlbumPath == albumPath {
			return true, nil
		}
	}
	return false, nil
}

// Drain calls fn with every queued album path. When fn succeeds the
// paths it was given are removed; paths added while fn ran stay queued.
// When fn fails the queue is left as it was, so the albums are retried.
// An empty queue does not call fn.
func (q *Queue) Drain(fn func(albumPaths []string) error) (int, error) {
	q.mu.Lock()
	entries, err := q.store.Load()
	q.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("loading queue: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	paths := make([]string, len(entries))
	done := make(map[string]bool, len(entries))
	for i, e := range entries {
		paths[i] = e.AlbumPath
		done[e.AlbumPath] = true
	}

	// fn runs without the lock; it may queue new albums itself.
	if err := fn(paths); err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	current, err := q.store.Load()
	if err != nil {
		return 0, fmt.Errorf("loading queue: %w", err)
	}
	remaining := current[:0]
	for _, e := range current {
		if !done[e.AlbumPath] {
			remaining = append(remaining, e)
		}
	}
	if err := q.store.Save(remaining); err != nil {
		return 0, fmt.Errorf("saving queue: %w", err)
	}
	return len(paths), nil
}
