package ioloop

import (
	"errors"
	"time"
)

// Mask is a bitset of readiness conditions.
type Mask int

const (
	None     Mask = 0
	Readable Mask = 1
	Writable Mask = 2
)

// Event is one fd's combined readiness report from a single Poll call.
// A backend never returns more than one Event per fd per call.
type Event struct {
	FD    int
	Ready Mask
}

var (
	// ErrClosed is returned by Add, Del and Resize when called after
	// Close.
	ErrClosed = errors.New("ioloop: demultiplexer closed")

	// ErrFDOutOfRange is returned when fd exceeds the configured capacity.
	ErrFDOutOfRange = errors.New("ioloop: fd out of range")
)

// Demultiplexer is the kernel-primitive-agnostic interface every backend
// satisfies. Del never errors on a fd that was never added.
type Demultiplexer interface {
	// Add registers interest in mask for fd, merging with any existing
	// interest already registered for that fd.
	Add(fd int, mask Mask) error

	// Del removes mask from fd's registered interest. Not an error if fd
	// was never registered or the mask bits were not set.
	Del(fd int, mask Mask) error

	// Resize grows the capacity the backend is prepared to track.
	Resize(newCapacity int) error

	// Poll blocks for at most timeout (nil blocks indefinitely, 0 polls
	// without blocking) and returns the fds that became ready, merging
	// readable/writable readiness for the same fd into one Event.
	Poll(timeout *time.Duration) ([]Event, error)

	// Name identifies the backend, e.g. "epoll", "kqueue", "select".
	Name() string

	// Close releases the underlying kernel resource.
	Close() error
}

// New creates a Demultiplexer using the best backend available on this
// platform at build time, per the priority order epoll > kqueue > select.
func New(capacity int) (Demultiplexer, error) {
	return newPlatformDemultiplexer(capacity)
}
