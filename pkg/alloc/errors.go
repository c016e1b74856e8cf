package alloc

import (
	"errors"
	"fmt"
)

// Error classification codes.
//
// Implementations MAY wrap these errors with additional context.
// Tests and callers MUST classify errors using errors.Is.
var (
	// ErrOutOfMemory indicates a charge could not be satisfied within the
	// configured limit.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrSizeOverflow indicates the requested size (plus any tracking
	// prefix) would overflow an address-sized integer. It wraps
	// ErrOutOfMemory, so callers that only check errors.Is(err,
	// ErrOutOfMemory) treat it as out-of-memory.
	ErrSizeOverflow = fmt.Errorf("alloc: size overflow: %w", ErrOutOfMemory)
)
