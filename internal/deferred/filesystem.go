package deferred

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"colsync/internal/collection"
)

// fileStore keeps the queue in a single JSON document:
//
//	<queue_dir>/
//	  queue.json
type fileStore struct {
	path string
}

func (f *fileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *fileStore) Save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".queue-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing queue: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing queue: %w", err)
	}
	return nil
}

// NewFileSystemQueue creates a queue persisted under queueDir.
func NewFileSystemQueue(queueDir string, clock collection.Clock) (*Queue, error) {
	if err := os.MkdirAll(queueDir, 0755); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	return newQueue(&fileStore{path: filepath.Join(queueDir, "queue.json")}, clock), nil
}
