//go:build linux || darwin

package evloop_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/evloop"
)

func loopbackFD(t *testing.T) (fd int, cleanup func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server, err := ln.Accept()
	require.NoError(t, err)

	// conn is immediately writable (just connected) and becomes readable
	// once the peer writes, giving us a fd that can expose both
	// readiness bits within one poll for the barrier test below.
	_, err = server.Write([]byte("x"))
	require.NoError(t, err)

	tcp := conn.(*net.TCPConn)
	f, err := tcp.File()
	require.NoError(t, err)

	return int(f.Fd()), func() {
		f.Close()
		conn.Close()
		server.Close()
		ln.Close()
	}
}

// TestBarrierInvertsDispatchOrder covers S2: without BARRIER, readable
// fires before writable; with BARRIER, writable fires first and
// readable fires last.
func TestBarrierInvertsDispatchOrder(t *testing.T) {
	fd, cleanup := loopbackFD(t)
	defer cleanup()

	t.Run("default order is readable before writable", func(t *testing.T) {
		l, err := evloop.New(64)
		require.NoError(t, err)
		defer l.Destroy()

		var order []string

		handler := func(kind string) evloop.FileHandler {
			return func(*evloop.Loop, int, any, evloop.Mask) {
				order = append(order, kind)
			}
		}

		require.NoError(t, l.Register(fd, evloop.Readable, handler("read"), nil))
		require.NoError(t, l.Register(fd, evloop.Writable, handler("write"), nil))

		_, err = l.ProcessEvents(evloop.FileEvents | evloop.DontWait)
		require.NoError(t, err)

		require.Equal(t, []string{"read", "write"}, order)
	})

	t.Run("barrier inverts order", func(t *testing.T) {
		l, err := evloop.New(64)
		require.NoError(t, err)
		defer l.Destroy()

		var order []string

		handler := func(kind string) evloop.FileHandler {
			return func(*evloop.Loop, int, any, evloop.Mask) {
				order = append(order, kind)
			}
		}

		require.NoError(t, l.Register(fd, evloop.Readable, handler("read"), nil))
		require.NoError(t, l.Register(fd, evloop.Writable|evloop.Barrier, handler("write"), nil))

		_, err = l.ProcessEvents(evloop.FileEvents | evloop.DontWait)
		require.NoError(t, err)

		require.Equal(t, []string{"write", "read"}, order)
	})
}

// TestSingleHandlerRegisteredForBothDirectionsFiresOnce confirms that
// pairing one handler to both Readable and Writable in a single
// Register call dedupes dispatch when both bits come back ready at
// once, rather than invoking it twice.
func TestSingleHandlerRegisteredForBothDirectionsFiresOnce(t *testing.T) {
	fd, cleanup := loopbackFD(t)
	defer cleanup()

	l, err := evloop.New(64)
	require.NoError(t, err)
	defer l.Destroy()

	calls := 0

	require.NoError(t, l.Register(fd, evloop.Readable|evloop.Writable, func(*evloop.Loop, int, any, evloop.Mask) {
		calls++
	}, nil))

	_, err = l.ProcessEvents(evloop.FileEvents | evloop.DontWait)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}

func TestUnregisterWritableAlsoClearsBarrier(t *testing.T) {
	fd, cleanup := loopbackFD(t)
	defer cleanup()

	l, err := evloop.New(64)
	require.NoError(t, err)
	defer l.Destroy()

	require.NoError(t, l.Register(fd, evloop.Readable|evloop.Writable|evloop.Barrier, func(*evloop.Loop, int, any, evloop.Mask) {}, nil))
	require.NoError(t, l.Unregister(fd, evloop.Writable))

	var order []string

	handler := func(kind string) evloop.FileHandler {
		return func(*evloop.Loop, int, any, evloop.Mask) {
			order = append(order, kind)
		}
	}

	require.NoError(t, l.Register(fd, evloop.Readable, handler("read"), nil))

	_, err = l.ProcessEvents(evloop.FileEvents | evloop.DontWait)
	require.NoError(t, err)

	require.Equal(t, []string{"read"}, order)
}
