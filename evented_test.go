//go:build linux

package corogo

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pipeEvented adapts one end of an os.Pipe() (after being switched to
// non-blocking mode) to the Evented contract, for tests that need a real
// kernel-backed descriptor without opening a socket.
type pipeEvented struct {
	f *os.File
}

func newNonblockingPipe() (*pipeEvented, *pipeEvented, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		return nil, nil, err
	}
	if err := unix.SetNonblock(int(w.Fd()), true); err != nil {
		return nil, nil, err
	}
	return &pipeEvented{f: r}, &pipeEvented{f: w}, nil
}

func (p *pipeEvented) FD() int { return int(p.f.Fd()) }

func (p *pipeEvented) Read(b []byte) (int, error) {
	n, err := unix.Read(p.FD(), b)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, unix.EAGAIN
	}
	return n, nil
}

func (p *pipeEvented) Write(b []byte) (int, error) {
	n, err := unix.Write(p.FD(), b)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pipeEvented) Flush() error { return nil }

// TestGenericEventedRoundTrip confirms a small write is observable on the
// read side after looping through ReadyStates inside a running Scheduler
// (both ends stay ready throughout, so wait never actually has to suspend
// the coroutine).
func TestGenericEventedRoundTrip(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	ok, err := Run(sched, func() bool {
		r, w, err := newNonblockingPipe()
		require.NoError(t, err)

		rev, err := NewGenericEvented[*pipeEvented](r, EventRead)
		require.NoError(t, err)
		wev, err := NewGenericEvented[*pipeEvented](w, EventWrite)
		require.NoError(t, err)
		defer func() { _ = rev.Close() }()
		defer func() { _ = wev.Close() }()

		msg := []byte("round-trip")
		n, err := wev.Write(msg)
		require.NoError(t, err)
		require.Equal(t, len(msg), n)

		buf := make([]byte, len(msg))
		got := 0
		for got < len(buf) {
			k, err := rev.Read(buf[got:])
			require.NoError(t, err)
			got += k
		}
		return string(buf) == string(msg)
	})
	require.NoError(t, err)
	require.True(t, ok)
}

// TestGenericEventedRequiresScheduler asserts NewGenericEvented fails
// immediately (rather than panicking) with no Scheduler active.
func TestGenericEventedRequiresScheduler(t *testing.T) {
	r, _, err := newNonblockingPipe()
	require.NoError(t, err)
	defer r.f.Close()

	_, err = NewGenericEvented[*pipeEvented](r, EventRead)
	require.ErrorIs(t, err, ErrSchedulerMissing)
}

// TestIsWouldBlockAndNotConnected pin the Open-Question resolution (§9):
// ENOTCONN/EINPROGRESS are folded into the WouldBlock retry path alongside
// EAGAIN/EWOULDBLOCK, while an unrelated error is not.
func TestIsWouldBlockAndNotConnected(t *testing.T) {
	require.True(t, isWouldBlock(unix.EAGAIN))
	require.True(t, isWouldBlock(unix.EWOULDBLOCK))
	require.False(t, isWouldBlock(unix.ENOTCONN))

	require.True(t, isNotConnected(unix.ENOTCONN))
	require.True(t, isNotConnected(unix.EINPROGRESS))
	require.False(t, isNotConnected(unix.EAGAIN))

	require.False(t, isWouldBlock(errors.New("some other error")))
	require.False(t, isNotConnected(errors.New("some other error")))
}

// TestIOEcho covers spec scenario 3: two coroutines connected by a
// nonblocking pipe pair wrapped as GenericEvented, a producer writing
// 1..=1000 and a consumer reading all of it back unchanged, completing
// comfortably under a second.
func TestIOEcho(t *testing.T) {
	sched, err := New(WithWorkers(2))
	require.NoError(t, err)

	const n = 1000
	deadline := time.Now().Add(time.Second)

	result, err := Run(sched, func() bool {
		r, w, err := newNonblockingPipe()
		require.NoError(t, err)

		rev, err := NewGenericEvented[*pipeEvented](r, EventRead)
		require.NoError(t, err)
		wev, err := NewGenericEvented[*pipeEvented](w, EventWrite)
		require.NoError(t, err)
		defer func() { _ = rev.Close() }()
		defer func() { _ = wev.Close() }()

		produced := make([]byte, n)
		for i := range produced {
			produced[i] = byte(i + 1)
		}

		ch, err := Spawn(func() error {
			for off := 0; off < n; {
				k, err := wev.Write(produced[off:])
				if err != nil {
					return err
				}
				off += k
			}
			return nil
		})
		require.NoError(t, err)

		consumed := make([]byte, 0, n)
		buf := make([]byte, 64)
		for len(consumed) < n {
			k, err := rev.Read(buf)
			if err != nil {
				return false
			}
			consumed = append(consumed, buf[:k]...)
		}

		_, err = ch.Join()
		require.NoError(t, err)
		require.Equal(t, produced, consumed)
		return time.Now().Before(deadline)
	})
	require.NoError(t, err)
	require.True(t, result)
}

// TestGenericEventedCloseIdempotent asserts a second Close is a no-op.
func TestGenericEventedCloseIdempotent(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	_, err = Run(sched, func() int {
		r, _, err := newNonblockingPipe()
		require.NoError(t, err)
		ev, err := NewGenericEvented[*pipeEvented](r, EventRead)
		require.NoError(t, err)
		require.NoError(t, ev.Close())
		require.NoError(t, ev.Close())
		return 0
	})
	require.NoError(t, err)
}
