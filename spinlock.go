package corogo

import (
	"runtime"
	"sync/atomic"
)

// backoffBase and backoffCeiling bound the exponential backoff used while spinning.
// Values mirror the tuning used by the reference implementation this scheduler's
// synchronization primitives are modeled on.
const (
	backoffBase    = 16
	backoffCeiling = 4096
)

// cpuRelax yields the current goroutine's time slice back to the Go scheduler. Go
// exposes no portable CPU pause-hint instruction (no PAUSE/YIELD intrinsic reachable
// without assembly), so runtime.Gosched is the closest equivalent available without
// dropping into architecture-specific asm; this is a deliberate stdlib-only exception,
// not an oversight.
func cpuRelax() {
	runtime.Gosched()
}

// spinBackoff busy-waits for approximately n relax cycles, doubling n on return up to
// backoffCeiling. Callers should reset n to backoffBase once the lock is acquired.
func spinBackoff(n int) int {
	for i := 0; i < n; i++ {
		cpuRelax()
	}
	if n < backoffCeiling {
		n <<= 1
	}
	return n
}

// Spinlock is an unfair, allocation-free mutual exclusion lock built on a single CAS
// loop with exponential backoff. It never parks the calling goroutine on the OS
// scheduler beyond a Gosched yield, making it suitable for holding for only a few
// instructions at a time, such as inside ReadyStates. The processor run queue uses
// TicketSpinlock instead.
//
// Spinlock is not reentrant and provides no fairness guarantee: under contention a
// waiter may be starved indefinitely by other spinners. Use TicketSpinlock where
// fairness matters.
type Spinlock struct {
	locked atomic.Bool
}

// Lock blocks until the lock is acquired.
func (l *Spinlock) Lock() {
	backoff := backoffBase
	for !l.locked.CompareAndSwap(false, true) {
		backoff = spinBackoff(backoff)
	}
}

// TryLock attempts to acquire the lock without blocking, reporting whether it
// succeeded.
func (l *Spinlock) TryLock() bool {
	return l.locked.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking a lock not held by the caller is undefined
// behavior, matching sync.Mutex.
func (l *Spinlock) Unlock() {
	l.locked.Store(false)
}

// TicketSpinlock is a fair spinlock: waiters are served strictly in arrival order
// using a ticket/turn pair of counters, same as a bakery-style lock. Backoff is
// proportional to the waiter's distance from the front of the line, so goroutines
// further back in line poll less often than those closer to being served.
type TicketSpinlock struct {
	ticket atomic.Uint64
	turn   atomic.Uint64
}

// Lock blocks until the lock is acquired, in FIFO order relative to other callers of
// Lock.
func (l *TicketSpinlock) Lock() {
	my := l.ticket.Add(1) - 1
	for {
		cur := l.turn.Load()
		if cur == my {
			return
		}
		wait := int(my-cur) << 2
		if wait <= 0 {
			wait = 1
		}
		for i := 0; i < wait; i++ {
			cpuRelax()
		}
	}
}

// Unlock releases the lock, advancing to the next waiter in line.
func (l *TicketSpinlock) Unlock() {
	l.turn.Add(1)
}
