package evloop

import "time"

// systemClock reports elapsed microseconds since its own construction via
// time.Since, which reads the monotonic clock reading Go attaches to
// time.Time. UnixMicro would strip that reading and expose wall-clock
// time, which an NTP step can move backward or jump forward.
type systemClock struct {
	start time.Time
}

func newSystemClock() systemClock { return systemClock{start: time.Now()} }

func (c systemClock) NowMicros() int64 { return time.Since(c.start).Microseconds() }
