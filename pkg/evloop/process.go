package evloop

import "time"

// ProcessEvents runs one iteration of file-event and/or time-event
// processing, per flags, and returns the number of handlers invoked.
func (l *Loop) ProcessEvents(flags Flags) (int, error) {
	if l.closed {
		return 0, ErrClosed
	}

	if flags&(FileEvents|TimeEvents) == 0 {
		return 0, nil
	}

	dispatched := 0

	shouldPoll := l.highestFD >= 0 || (flags&TimeEvents != 0 && flags&DontWait == 0)

	if shouldPoll {
		var timeout *time.Duration

		switch {
		case l.dontWait || flags&DontWait != 0:
			zero := time.Duration(0)
			timeout = &zero

		case flags&TimeEvents != 0:
			us := l.usUntilEarliest()

			switch {
			case us == 0:
				zero := time.Duration(0)
				timeout = &zero
			case us > 0:
				d := time.Duration(us) * time.Microsecond
				timeout = &d
			default:
				timeout = nil // block indefinitely: no time events pending
			}

		default:
			timeout = nil
		}

		if flags&CallBeforeSleep != 0 && l.beforeSleep != nil {
			l.beforeSleep(l)
		}

		events, err := l.demux.Poll(timeout)
		if err != nil {
			return dispatched, err
		}

		if flags&CallAfterSleep != 0 && l.afterSleep != nil {
			l.afterSleep(l)
		}

		if flags&FileEvents != 0 {
			for _, ev := range events {
				dispatched += l.dispatchFileEvent(ev.FD, Mask(ev.Ready))
			}
		}
	}

	if flags&TimeEvents != 0 {
		dispatched += l.processTimeEvents()
	}

	return dispatched, nil
}

func (l *Loop) dispatchFileEvent(fd int, ready Mask) int {
	if fd < 0 || fd >= len(l.fileEvents) {
		return 0
	}

	fired := 0
	invert := l.fileEvents[fd].mask&Barrier != 0

	if !invert {
		fe := &l.fileEvents[fd]
		if fe.mask&ready&Readable != 0 && fe.readHandler != nil {
			fe.readHandler(l, fd, fe.userData, ready)
			fired++
		}
	}

	// Re-read: the readable callback above may have mutated registration.
	if fe := &l.fileEvents[fd]; fe.mask&ready&Writable != 0 && fe.writeHandler != nil &&
		(fired == 0 || !fe.paired) {
		fe.writeHandler(l, fd, fe.userData, ready)
		fired++
	}

	if invert {
		if fe := &l.fileEvents[fd]; fe.mask&ready&Readable != 0 && fe.readHandler != nil &&
			(fired == 0 || !fe.paired) {
			fe.readHandler(l, fd, fe.userData, ready)
			fired++
		}
	}

	return fired
}
