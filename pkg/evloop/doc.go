// Package evloop implements a single-threaded, cooperative event loop
// over a pkg/ioloop Demultiplexer: fd-indexed file events with an
// optional dispatch-order inversion (Barrier), and a singly-linked,
// tombstoned time-event list processed once per iteration.
//
// A *Loop is not safe for concurrent use. Every method must be called
// from the single goroutine that owns the loop; handlers themselves run
// on that same goroutine and may freely register, unregister, or create
// further events.
package evloop
