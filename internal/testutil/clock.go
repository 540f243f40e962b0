package testutil

import (
	"fmt"
	"sync"
	"time"

	"colsync/internal/collection"
)

// ScanEpoch is the time FixedClock starts at.
var ScanEpoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a manually advanced collection.Clock.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ collection.Clock = (*StubClock)(nil)

func NewStubClock(t time.Time) *StubClock { return &StubClock{now: t} }

// FixedClock starts at ScanEpoch.
func FixedClock() *StubClock { return NewStubClock(ScanEpoch) }

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, e.g. past the removed-items grace period.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out "id-1", "id-2", ...
type StubIDGenerator struct {
	mu sync.Mutex
	n  int
}

var _ collection.IDGenerator = (*StubIDGenerator)(nil)

func NewStubIDGenerator() *StubIDGenerator { return &StubIDGenerator{} }

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
