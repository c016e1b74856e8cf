package evloop

type timeEvent struct {
	id        uint64
	dueMicros int64
	handler   TimeHandler
	userData  any
	finalizer Finalizer
	deleted   bool
	refcount  int
	next      *timeEvent
}

// CreateTimeEvent schedules handler to fire delayMs from now, returning
// a fresh monotonically increasing id. The event is head-inserted into
// the loop's time-event list.
func (l *Loop) CreateTimeEvent(delayMs int64, handler TimeHandler, userData any, finalizer Finalizer) uint64 {
	l.nextTimerID++
	id := l.nextTimerID

	ev := &timeEvent{
		id:        id,
		dueMicros: l.clock.NowMicros() + delayMs*1000,
		handler:   handler,
		userData:  userData,
		finalizer: finalizer,
		next:      l.timeEvents,
	}

	l.timeEvents = ev

	return id
}

// DeleteTimeEvent logically deletes the time event with the given id, if
// it still exists. Physical removal happens during the next
// processTimeEvents pass.
func (l *Loop) DeleteTimeEvent(id uint64) {
	for e := l.timeEvents; e != nil; e = e.next {
		if e.id == id {
			e.deleted = true

			return
		}
	}
}

// processTimeEvents runs one pass over the time-event list: firing due,
// non-deleted events created before this pass began, rescheduling or
// tombstoning them per their handler's return, and physically unlinking
// already-tombstoned events with no handler currently executing.
func (l *Loop) processTimeEvents() int {
	maxID := l.nextTimerID
	processed := 0

	var prev *timeEvent

	for e := l.timeEvents; e != nil; {
		next := e.next

		if e.deleted {
			if e.refcount == 0 {
				if prev == nil {
					l.timeEvents = next
				} else {
					prev.next = next
				}

				if e.finalizer != nil {
					e.finalizer(l, e.userData)
				}

				e = next

				continue
			}

			prev = e
			e = next

			continue
		}

		if e.id > maxID {
			prev = e
			e = next

			continue
		}

		if e.dueMicros <= l.clock.NowMicros() {
			e.refcount++
			delayMs, more := e.handler(l, e.id, e.userData)
			e.refcount--
			processed++

			if !more {
				e.deleted = true
			} else {
				e.dueMicros = l.clock.NowMicros() + delayMs*1000
			}
		}

		prev = e
		e = next
	}

	return processed
}

// usUntilEarliest returns 0 if any non-deleted time event is already
// due, the microsecond delay until the earliest one otherwise, or -1 if
// there are none. O(n) linear scan: the timer count is expected to stay
// small, so this is not upgraded to a heap.
func (l *Loop) usUntilEarliest() int64 {
	now := l.clock.NowMicros()

	earliest := int64(-1)

	for e := l.timeEvents; e != nil; e = e.next {
		if e.deleted {
			continue
		}

		if earliest == -1 || e.dueMicros < earliest {
			earliest = e.dueMicros
		}
	}

	if earliest == -1 {
		return -1
	}

	if earliest <= now {
		return 0
	}

	return earliest - now
}
