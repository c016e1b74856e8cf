package evloop

import "errors"

var (
	// ErrRangeError is returned by Register/Unregister/Resize when a fd
	// falls outside the loop's configured setsize.
	ErrRangeError = errors.New("evloop: fd out of range")

	// ErrClosed is returned by Register, Unregister, Resize and
	// ProcessEvents (and so Main) when called after Destroy.
	ErrClosed = errors.New("evloop: loop destroyed")
)
