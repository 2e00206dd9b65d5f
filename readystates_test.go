package corogo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadyStatesMakeReadyThenWaitIsNoop pins the round-trip/idempotence
// property from §8: make_ready(k); wait(k) behaves as a no-op even when no
// coroutine is current (wait consumes the latched bit on its first check,
// before it would ever need a coroutine to park), and the bit is consumed
// exactly once.
func TestReadyStatesMakeReadyThenWaitIsNoop(t *testing.T) {
	rs := NewReadyStates()
	rs.makeReady(Readable)
	require.Equal(t, uint8(Readable), rs.mask)

	rs.wait(Readable) // consumes the latched bit without parking
	require.Equal(t, uint8(0), rs.mask)
}

// TestReadyStatesNotifyLatchesWithNoWaiter asserts notify sets the mask bit
// (rather than losing the event) when nothing is parked for that kind yet.
func TestReadyStatesNotifyLatchesWithNoWaiter(t *testing.T) {
	rs := NewReadyStates()
	woken := rs.notify(Readable | Writable)
	require.Empty(t, woken)
	require.Equal(t, uint8(Readable|Writable), rs.mask)
}

// TestReadyStatesNotifyWakesWaiter asserts a registered waiter is returned
// by notify rather than left latched.
func TestReadyStatesNotifyWakesWaiter(t *testing.T) {
	rs := NewReadyStates()
	h := &Handle{c: &coroutine{}}
	rs.waiters[Readable.index()] = h

	woken := rs.notify(Readable)
	require.Equal(t, []*Handle{h}, woken)
	require.Equal(t, uint8(0), rs.mask)
	require.Nil(t, rs.waiters[Readable.index()])
}

// TestReadyKindIndexIsStable pins the bit->index mapping notify/wait rely on.
func TestReadyKindIndexIsStable(t *testing.T) {
	require.Equal(t, 0, Readable.index())
	require.Equal(t, 1, Writable.index())
	require.Equal(t, 2, ErrorReady.index())
	require.Equal(t, 3, Hup.index())
}
