//go:build darwin || freebsd || netbsd || openbsd

package ioloop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformDemultiplexer(capacity int) (Demultiplexer, error) {
	return newKqueueDemultiplexer(capacity)
}

type kqueueDemux struct {
	mu       sync.Mutex
	kq       int
	masks    []Mask
	eventBuf []unix.Kevent_t
	closed   bool
}

func newKqueueDemultiplexer(capacity int) (*kqueueDemux, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	unix.CloseOnExec(kq)

	if capacity < 1 {
		capacity = 1
	}

	return &kqueueDemux{
		kq:       kq,
		masks:    make([]Mask, capacity),
		eventBuf: make([]unix.Kevent_t, 256),
	}, nil
}

func (k *kqueueDemux) Name() string { return "kqueue" }

func (k *kqueueDemux) Resize(newCapacity int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClosed
	}

	if newCapacity <= len(k.masks) {
		return nil
	}

	grown := make([]Mask, newCapacity)
	copy(grown, k.masks)
	k.masks = grown

	return nil
}

func (k *kqueueDemux) Add(fd int, mask Mask) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(k.masks) {
		return ErrFDOutOfRange
	}

	existing := k.masks[fd]
	toAdd := mask &^ existing

	changes := kqueueChanges(fd, toAdd, unix.EV_ADD|unix.EV_ENABLE)
	if len(changes) > 0 {
		if _, err := unix.Kevent(k.kq, changes, nil, nil); err != nil {
			return err
		}
	}

	k.masks[fd] = existing | mask

	return nil
}

func (k *kqueueDemux) Del(fd int, mask Mask) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(k.masks) {
		return nil
	}

	toRemove := mask & k.masks[fd]

	changes := kqueueChanges(fd, toRemove, unix.EV_DELETE)
	if len(changes) > 0 {
		// Deregistration races with fd close/reuse in the source; ignore
		// errors the same way the reference poller does.
		_, _ = unix.Kevent(k.kq, changes, nil, nil)
	}

	k.masks[fd] &^= mask

	return nil
}

func kqueueChanges(fd int, mask Mask, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t

	if mask&Readable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}

	if mask&Writable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}

	return changes
}

func (k *kqueueDemux) Poll(timeout *time.Duration) ([]Event, error) {
	var ts *unix.Timespec

	if timeout != nil {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}

	n, err := unix.Kevent(k.kq, nil, k.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, err
	}

	// kqueue reports EVFILT_READ and EVFILT_WRITE as separate kevents
	// even for the same fd within one call; merge them into one Event
	// per fd, preserving the order fds were first seen.
	order := make([]int, 0, n)
	merged := make(map[int]Mask, n)

	for i := 0; i < n; i++ {
		ev := &k.eventBuf[i]
		fd := int(ev.Ident)

		if _, seen := merged[fd]; !seen {
			order = append(order, fd)
		}

		switch ev.Filter {
		case unix.EVFILT_READ:
			merged[fd] |= Readable
		case unix.EVFILT_WRITE:
			merged[fd] |= Writable
		}

		if ev.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0 {
			merged[fd] |= Readable | Writable
		}
	}

	out := make([]Event, 0, len(order))
	for _, fd := range order {
		out = append(out, Event{FD: fd, Ready: merged[fd]})
	}

	return out, nil
}

func (k *kqueueDemux) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}

	k.closed = true

	return unix.Close(k.kq)
}
