package evloop

import (
	"github.com/kvcore/engine/pkg/ioloop"
)

type fileEvent struct {
	mask         Mask
	readHandler  FileHandler
	writeHandler FileHandler
	// paired is true when readHandler and writeHandler were set by the
	// same Register call (the common "one handler for both directions"
	// case). Go func values can't be compared for identity the way the
	// source compares C function pointers, so dispatch dedup relies on
	// this flag instead of a handler equality check.
	paired   bool
	userData any
}

// Loop is a single-threaded, cooperative event loop.
type Loop struct {
	demux ioloop.Demultiplexer
	clock Clock

	fileEvents []fileEvent
	highestFD  int

	timeEvents  *timeEvent
	nextTimerID uint64

	beforeSleep BeforeSleep
	afterSleep  AfterSleep

	dontWait bool
	stop     bool
	closed   bool
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithClock overrides the loop's source of time, used by time events.
// Intended for deterministic tests.
func WithClock(clock Clock) Option {
	return func(l *Loop) { l.clock = clock }
}

// New allocates a loop with room for setsize file descriptors (fds must
// satisfy 0 <= fd < setsize) and binds a fresh ioloop.Demultiplexer.
func New(setsize int, opts ...Option) (*Loop, error) {
	demux, err := ioloop.New(setsize)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		demux:      demux,
		fileEvents: make([]fileEvent, setsize),
		highestFD:  -1,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.clock == nil {
		l.clock = newSystemClock()
	}

	return l, nil
}

// Resize grows the fd-indexed arrays to newSize. It fails if the
// current highest registered fd would no longer fit.
func (l *Loop) Resize(newSize int) error {
	if l.closed {
		return ErrClosed
	}

	if l.highestFD >= newSize {
		return ErrRangeError
	}

	if newSize <= len(l.fileEvents) {
		return nil
	}

	grown := make([]fileEvent, newSize)
	copy(grown, l.fileEvents)
	l.fileEvents = grown

	return l.demux.Resize(newSize)
}

// Destroy releases the demultiplexer and runs every remaining time
// event's finalizer.
func (l *Loop) Destroy() error {
	if l.closed {
		return nil
	}

	l.closed = true

	for e := l.timeEvents; e != nil; {
		next := e.next

		if e.finalizer != nil {
			e.finalizer(l, e.userData)
		}

		e = next
	}

	l.timeEvents = nil

	return l.demux.Close()
}

// Stop requests the loop terminate after the current ProcessEvents call
// (or, if called from a handler, after the iteration in progress).
func (l *Loop) Stop() { l.stop = true }

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool { return l.stop }

// Main runs iterations of file-event and time-event processing until a
// handler calls Stop. Each iteration may call BeforeSleep/AfterSleep
// around the poll.
func (l *Loop) Main() error {
	l.stop = false

	for !l.stop {
		if _, err := l.ProcessEvents(FileEvents | TimeEvents | CallBeforeSleep | CallAfterSleep); err != nil {
			return err
		}
	}

	return nil
}

// SetDontWait toggles the loop-wide force-zero-timeout flag, independent
// of any per-call DontWait flag passed to ProcessEvents.
func (l *Loop) SetDontWait(dontWait bool) { l.dontWait = dontWait }

// HighestRegisteredFD returns max{fd : mask[fd] != None}, or -1 if none.
func (l *Loop) HighestRegisteredFD() int { return l.highestFD }

// Register ORs mask into fd's registered interest, storing handler for
// whichever of Readable/Writable is present in mask. Registering the
// same bit again overwrites the previously stored handler for that bit.
func (l *Loop) Register(fd int, mask Mask, handler FileHandler, userData any) error {
	if l.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(l.fileEvents) {
		return ErrRangeError
	}

	fe := &l.fileEvents[fd]

	if mask&Readable != 0 {
		fe.readHandler = handler
	}

	if mask&Writable != 0 {
		fe.writeHandler = handler
	}

	if mask&(Readable|Writable) == (Readable | Writable) {
		fe.paired = true
	} else if mask&(Readable|Writable) != 0 {
		fe.paired = false
	}

	fe.userData = userData
	fe.mask |= mask

	if demuxMask := mask & (Readable | Writable); demuxMask != 0 {
		if err := l.demux.Add(fd, ioloop.Mask(demuxMask)); err != nil {
			return err
		}
	}

	if fd > l.highestFD {
		l.highestFD = fd
	}

	return nil
}

// Unregister removes mask from fd's registered interest. Removing
// Writable also clears Barrier, since a writable-path removal without
// that would leave a future readable-only registration still inverted.
func (l *Loop) Unregister(fd int, mask Mask) error {
	if l.closed {
		return ErrClosed
	}

	if fd < 0 || fd >= len(l.fileEvents) {
		return ErrRangeError
	}

	fe := &l.fileEvents[fd]
	if fe.mask == None {
		return nil
	}

	toRemove := mask
	if mask&Writable != 0 {
		toRemove |= Barrier
	}

	if toRemove&Readable != 0 {
		fe.readHandler = nil
		fe.paired = false
	}

	if toRemove&Writable != 0 {
		fe.writeHandler = nil
		fe.paired = false
	}

	fe.mask &^= toRemove

	if demuxMask := toRemove & (Readable | Writable); demuxMask != 0 {
		if err := l.demux.Del(fd, ioloop.Mask(demuxMask)); err != nil {
			return err
		}
	}

	if fe.mask == None && fd == l.highestFD {
		l.highestFD = -1

		for f := fd - 1; f >= 0; f-- {
			if l.fileEvents[f].mask != None {
				l.highestFD = f

				break
			}
		}
	}

	return nil
}
