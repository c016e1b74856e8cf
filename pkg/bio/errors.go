package bio

import "errors"

var (
	// ErrClosed indicates the pool has already been killed.
	ErrClosed = errors.New("bio: pool closed")
	// ErrUnknownJobType indicates a JobType outside the three recognized kinds.
	ErrUnknownJobType = errors.New("bio: unknown job type")
)
