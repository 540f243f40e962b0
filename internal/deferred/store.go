package deferred

// queueStore persists the queue. Locking is done by Queue, so stores need
// not be safe for concurrent use.
type queueStore interface {
	// Load returns all entries in insertion order. A store that was never
	// saved returns an empty slice.
	Load() ([]Entry, error)

	// Save replaces the stored entries.
	Save(entries []Entry) error
}
