// Package ioloop wraps the best I/O readiness primitive the host kernel
// offers behind one Demultiplexer interface: epoll on Linux, kqueue on
// Darwin/BSD, and a select-based fallback everywhere else. Event ports
// (illumos/Solaris) are out of scope; the priority order degrades
// gracefully to epoll/kqueue/select.
//
// Callers that need readable and writable readiness merged into a single
// (fd, mask) pair per Poll call get that guarantee from every backend,
// even kqueue, which reports the two as separate native events.
package ioloop
