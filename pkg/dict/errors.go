package dict

import "errors"

// Error classification codes.
//
// Implementations MAY wrap these errors with additional context.
// Tests and callers MUST classify errors using errors.Is.
var (
	// ErrDuplicateKey is returned by Insert when the key is already present.
	ErrDuplicateKey = errors.New("dict: duplicate key")

	// ErrNotFound is returned by Remove when the key is not present.
	ErrNotFound = errors.New("dict: not found")

	// ErrBusy is returned by Expand/Resize while a rehash is in progress.
	ErrBusy = errors.New("dict: busy (rehash in progress)")

	// ErrInvalidInput is returned for boundary-violating requests, e.g.
	// Expand(n) with n below the current live-entry count, or a requested
	// size equal to the table's current size.
	ErrInvalidInput = errors.New("dict: invalid input")

	// ErrIteratorMisuse is raised (via panic, never returned) when an
	// unsafe iterator's fingerprint no longer matches at release time.
	// This is a programming error, not a recoverable condition.
	ErrIteratorMisuse = errors.New("dict: unsafe iterator observed a mutation")
)
