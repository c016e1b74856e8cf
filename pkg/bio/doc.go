// Package bio runs blocking I/O and deallocation work off the main
// event-loop goroutine: one fixed worker per job type, each backed by
// its own FIFO queue, so a slow close or fsync never stalls dictionary
// or event-loop processing.
package bio
