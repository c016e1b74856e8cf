//go:build linux || darwin

package ioloop_test

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/ioloop"
)

// tcpFDPair sets up a connected TCP loopback pair and returns the raw fds
// backing each side, the same way the reference poller's tests do,
// since pipe-style net.Conns don't expose an underlying fd.
func tcpFDPair(t *testing.T) (clientFD, serverFD int, cleanup func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	serverConn, err := ln.Accept()
	require.NoError(t, err)

	clientTCP := clientConn.(*net.TCPConn)
	serverTCP := serverConn.(*net.TCPConn)

	clientFile, err := clientTCP.File()
	require.NoError(t, err)

	serverFile, err := serverTCP.File()
	require.NoError(t, err)

	cleanup = func() {
		clientFile.Close()
		serverFile.Close()
		clientConn.Close()
		serverConn.Close()
		ln.Close()
	}

	return int(clientFile.Fd()), int(serverFile.Fd()), cleanup
}

func TestNewPicksABackend(t *testing.T) {
	d, err := ioloop.New(16)
	require.NoError(t, err)
	defer d.Close()

	require.NotEmpty(t, d.Name())
}

func TestWritableReadyImmediatelyAfterConnect(t *testing.T) {
	d, err := ioloop.New(16)
	require.NoError(t, err)
	defer d.Close()

	clientFD, serverFD, cleanup := tcpFDPair(t)
	defer cleanup()

	require.NoError(t, d.Add(clientFD, ioloop.Writable))

	timeout := 2 * time.Second

	events, err := d.Poll(&timeout)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	found := false
	for _, e := range events {
		if e.FD == clientFD && e.Ready&ioloop.Writable != 0 {
			found = true
		}
	}
	require.True(t, found, "a freshly connected socket must be writable")

	_ = serverFD
}

func TestReadableAfterWrite(t *testing.T) {
	d, err := ioloop.New(16)
	require.NoError(t, err)
	defer d.Close()

	clientFD, serverFD, cleanup := tcpFDPair(t)
	defer cleanup()

	require.NoError(t, d.Add(serverFD, ioloop.Readable))

	client := connFromFD(t, clientFD)
	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	timeout := 2 * time.Second

	deadline := time.Now().Add(5 * time.Second)

	var got *ioloop.Event

	for time.Now().Before(deadline) {
		events, err := d.Poll(&timeout)
		require.NoError(t, err)

		for i := range events {
			if events[i].FD == serverFD && events[i].Ready&ioloop.Readable != 0 {
				got = &events[i]
			}
		}

		if got != nil {
			break
		}
	}

	require.NotNil(t, got, "server fd must become readable after the client writes")
}

func TestDelOnUnknownFDDoesNotError(t *testing.T) {
	d, err := ioloop.New(4)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Del(3, ioloop.Readable))
}

func TestResizeGrowsCapacity(t *testing.T) {
	d, err := ioloop.New(2)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Resize(64))

	clientFD, _, cleanup := tcpFDPair(t)
	defer cleanup()

	if clientFD < 64 {
		require.NoError(t, d.Add(clientFD, ioloop.Readable))
	}
}

// connFromFD wraps a raw fd back into a *net.TCPConn for writing, using
// net.FileConn the same way the reference poller test derives fds from
// net.Conns in the first place (the two operations are inverses).
func connFromFD(t *testing.T, fd int) net.Conn {
	t.Helper()

	f := os.NewFile(uintptr(fd), "fd")

	conn, err := net.FileConn(f)
	require.NoError(t, err)

	return conn
}
