package deferred

import (
	"fmt"

	"colsync/internal/collection"
	"colsync/internal/config"
)

// NewQueueFromConfig creates a deferred album queue based on the config type.
func NewQueueFromConfig(cfg config.DeferredConfig, clock collection.Clock) (*Queue, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(clock), nil
	case "filesystem", "":
		if cfg.QueueDir == "" {
			return nil, fmt.Errorf("filesystem deferred queue requires queue_dir to be set")
		}
		return NewFileSystemQueue(cfg.QueueDir, clock)
	default:
		return nil, fmt.Errorf("unknown deferred queue type: %s", cfg.Type)
	}
}
