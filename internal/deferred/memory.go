package deferred

import "colsync/internal/collection"

type memoryStore struct {
	entries []Entry
}

func (m *memoryStore) Load() ([]Entry, error) {
	return append([]Entry(nil), m.entries...), nil
}

func (m *memoryStore) Save(entries []Entry) error {
	m.entries = append([]Entry(nil), entries...)
	return nil
}

// NewMemoryQueue creates a queue that lives only as long as the process.
func NewMemoryQueue(clock collection.Clock) *Queue {
	return newQueue(&memoryStore{}, clock)
}
