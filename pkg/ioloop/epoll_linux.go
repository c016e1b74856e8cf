//go:build linux

package ioloop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformDemultiplexer(capacity int) (Demultiplexer, error) {
	return newEpollDemultiplexer(capacity)
}

type epollDemux struct {
	mu       sync.Mutex
	epfd     int
	masks    []Mask
	eventBuf []unix.EpollEvent
	closed   bool
}

func newEpollDemultiplexer(capacity int) (*epollDemux, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	if capacity < 1 {
		capacity = 1
	}

	return &epollDemux{
		epfd:     fd,
		masks:    make([]Mask, capacity),
		eventBuf: make([]unix.EpollEvent, 256),
	}, nil
}

func (e *epollDemux) Name() string { return "epoll" }

func (e *epollDemux) Resize(newCapacity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if newCapacity <= len(e.masks) {
		return nil
	}

	grown := make([]Mask, newCapacity)
	copy(grown, e.masks)
	e.masks = grown

	return nil
}

func (e *epollDemux) Add(fd int, mask Mask) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(e.masks) {
		return ErrFDOutOfRange
	}

	existing := e.masks[fd]
	combined := existing | mask

	ev := &unix.EpollEvent{Events: toEpollEvents(combined), Fd: int32(fd)}

	op := unix.EPOLL_CTL_MOD
	if existing == None {
		op = unix.EPOLL_CTL_ADD
	}

	if err := unix.EpollCtl(e.epfd, op, fd, ev); err != nil {
		return err
	}

	e.masks[fd] = combined

	return nil
}

func (e *epollDemux) Del(fd int, mask Mask) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(e.masks) {
		return nil
	}

	remaining := e.masks[fd] &^ mask
	if remaining == e.masks[fd] {
		return nil
	}

	if remaining == None {
		_ = unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	} else {
		ev := &unix.EpollEvent{Events: toEpollEvents(remaining), Fd: int32(fd)}
		_ = unix.EpollCtl(e.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	}

	e.masks[fd] = remaining

	return nil
}

func (e *epollDemux) Poll(timeout *time.Duration) ([]Event, error) {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(e.epfd, e.eventBuf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, err
	}

	out := make([]Event, 0, n)

	for i := 0; i < n; i++ {
		out = append(out, Event{
			FD:    int(e.eventBuf[i].Fd),
			Ready: fromEpollEvents(e.eventBuf[i].Events),
		})
	}

	return out, nil
}

func (e *epollDemux) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	return unix.Close(e.epfd)
}

func toEpollEvents(mask Mask) uint32 {
	var events uint32

	if mask&Readable != 0 {
		events |= unix.EPOLLIN
	}

	if mask&Writable != 0 {
		events |= unix.EPOLLOUT
	}

	return events
}

func fromEpollEvents(events uint32) Mask {
	var mask Mask

	if events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		mask |= Readable
	}

	if events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		mask |= Writable
	}

	return mask
}
