package collection

import "errors"

var (
	// ErrCancelled is returned when the observer stopped a scan. Work
	// committed before the cancellation point stays committed.
	ErrCancelled = errors.New("scan cancelled")

	// ErrInvalidArgument is returned for empty or malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLocationNotFound is returned when a path is not inside any album root.
	ErrLocationNotFound = errors.New("no album root for path")
)
