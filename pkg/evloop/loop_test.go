package evloop_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/evloop"
)

// fakeClock gives deterministic control over time-event scheduling in
// microsecond integers, advanced only by the test.
type fakeClock struct {
	now int64
}

func (c *fakeClock) NowMicros() int64 { return c.now }

func (c *fakeClock) Advance(us int64) { c.now += us }

func newTestLoop(t *testing.T, clock *fakeClock) *evloop.Loop {
	t.Helper()

	l, err := evloop.New(64, evloop.WithClock(clock))
	require.NoError(t, err)

	t.Cleanup(func() { l.Destroy() })

	return l
}

// pipeFDs returns the two descriptors of a fresh pipe, lower first.
// Register hands the fd to the OS demultiplexer, which rejects
// descriptors that are not open.
func pipeFDs(t *testing.T) (lo, hi int) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	lo, hi = int(r.Fd()), int(w.Fd())
	if lo > hi {
		lo, hi = hi, lo
	}

	return lo, hi
}

func TestHighestRegisteredFDTracksRegistrations(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)
	lo, hi := pipeFDs(t)

	assert.Equal(t, -1, l.HighestRegisteredFD())

	require.NoError(t, l.Register(hi, evloop.Readable, func(*evloop.Loop, int, any, evloop.Mask) {}, nil))
	assert.Equal(t, hi, l.HighestRegisteredFD())

	require.NoError(t, l.Register(lo, evloop.Readable, func(*evloop.Loop, int, any, evloop.Mask) {}, nil))
	assert.Equal(t, hi, l.HighestRegisteredFD())

	require.NoError(t, l.Unregister(hi, evloop.Readable))
	assert.Equal(t, lo, l.HighestRegisteredFD(), "removing the highest fd must scan down to the next one")

	require.NoError(t, l.Unregister(lo, evloop.Readable))
	assert.Equal(t, -1, l.HighestRegisteredFD())
}

func TestRegisterRejectsOutOfRangeFD(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	err := l.Register(1000, evloop.Readable, func(*evloop.Loop, int, any, evloop.Mask) {}, nil)
	require.ErrorIs(t, err, evloop.ErrRangeError)
}

func TestResizeFailsWhenHighestFDWouldNotFit(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	_, hi := pipeFDs(t)

	require.NoError(t, l.Register(hi, evloop.Readable, func(*evloop.Loop, int, any, evloop.Mask) {}, nil))

	err := l.Resize(hi)
	require.ErrorIs(t, err, evloop.ErrRangeError)

	require.NoError(t, l.Resize(128))
}

// TestTimeEventReschedulesThenStops covers S3: a time event that
// reschedules itself several times, then returns NOMORE, and does not
// fire again afterward.
func TestTimeEventReschedulesThenStops(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	fireCount := 0
	finalized := false

	id := l.CreateTimeEvent(10, func(loop *evloop.Loop, id uint64, userData any) (int64, bool) {
		fireCount++
		if fireCount < 3 {
			return 10, true
		}

		return evloop.NoMore, false
	}, nil, func(loop *evloop.Loop, userData any) {
		finalized = true
	})

	require.NotZero(t, id)

	for i := 0; i < 3; i++ {
		clock.Advance(10_000)
		_, err := l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, fireCount)

	// One more pass to physically unlink the tombstoned event and run
	// its finalizer.
	clock.Advance(10_000)
	_, err := l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
	require.NoError(t, err)

	assert.True(t, finalized)

	// Further passes must not fire the handler again.
	clock.Advance(1_000_000)
	_, err = l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
	require.NoError(t, err)
	assert.Equal(t, 3, fireCount)
}

func TestDeleteTimeEventPreventsFutureFiring(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	fired := false

	id := l.CreateTimeEvent(10, func(loop *evloop.Loop, id uint64, userData any) (int64, bool) {
		fired = true
		return evloop.NoMore, false
	}, nil, nil)

	l.DeleteTimeEvent(id)

	clock.Advance(10_000)
	_, err := l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
	require.NoError(t, err)

	assert.False(t, fired)
}

func TestTimeEventFiresOnlyOnceDue(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	l.CreateTimeEvent(100, func(*evloop.Loop, uint64, any) (int64, bool) { return 0, false }, nil, nil)

	n, err := l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
	require.NoError(t, err)
	assert.Zero(t, n, "an event due in 100ms must not fire at time zero")

	clock.Advance(100_000)
	n, err = l.ProcessEvents(evloop.TimeEvents | evloop.DontWait)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessEventsWithNoFlagsIsNoop(t *testing.T) {
	clock := &fakeClock{}
	l := newTestLoop(t, clock)

	n, err := l.ProcessEvents(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
