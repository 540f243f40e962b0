package collection

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the scan time used for removal bookkeeping and operation
// records.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator names snapshots and other records created outside the catalog.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces version 7 UUIDs, which sort by creation time.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.Must(uuid.NewV7()).String() }
