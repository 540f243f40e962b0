// Package model holds catalog rows that live outside the scanner's domain.
package model

import "time"

// ScanOperation records one mutating CLI command.
type ScanOperation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time // nil while running
	Operation  string     // e.g. "CompleteScan", "PartialScan"
	Parameters string
	Status     string // "running", "success" or "error"
}

// Thumbnail is a rendered preview shared by all items with the same
// content identity.
type Thumbnail struct {
	ID               int64
	ModificationDate time.Time // mtime of the file it was rendered from
	Width            int
	Height           int
	Data             []byte // JPEG
}
