package corogo

import "math/bits"

// ReadyKind is one bit of I/O readiness.
type ReadyKind uint8

const (
	Readable ReadyKind = 1 << iota
	Writable
	ErrorReady
	Hup
)

func (k ReadyKind) index() int { return bits.TrailingZeros8(uint8(k)) }

// ReadyStates is the synchronization hinge between the reactor and parked
// coroutines. It latches readiness observed on the reactor thread (which can
// only deliver events edge-triggered) so that a coroutine calling wait after
// the event already fired still observes it, emulating level-triggered
// semantics. One ReadyStates exists per registered descriptor; its lifetime is
// exactly the registration's.
type ReadyStates struct {
	mu      Spinlock
	mask    uint8
	waiters [4]*Handle
}

// NewReadyStates returns a ReadyStates with an empty mask and no waiters.
func NewReadyStates() *ReadyStates {
	return &ReadyStates{}
}

// wait blocks the calling coroutine until kind becomes ready, consuming the
// corresponding mask bit. If kind is already latched it returns immediately
// without suspending. Must be called from within a running coroutine.
func (r *ReadyStates) wait(kind ReadyKind) {
	r.mu.Lock()
	if r.mask&uint8(kind) != 0 {
		r.mask &^= uint8(kind)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	c := currentCoroutine()
	if c == nil {
		// No Processor context to park through. Spin-poll the mask instead of
		// suspending, matching the documented "resumes inline" recovery path
		// for ready()-style calls made outside a coroutine; a warning is
		// logged so misuse is visible rather than silently degrading to a
		// busy loop forever.
		SWarn("readystates", "wait called outside a coroutine context; spin-polling instead of parking")
		backoff := backoffBase
		for {
			r.mu.Lock()
			if r.mask&uint8(kind) != 0 {
				r.mask &^= uint8(kind)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			backoff = spinBackoff(backoff)
		}
	}

	c.parkWith(func(h *Handle) {
		idx := kind.index()
		r.mu.Lock()
		defer r.mu.Unlock()
		// Re-check under the lock: a notify may have set the bit after our
		// first check above but before we finished parking. Closing this race
		// is the entire reason wait's disposition closure re-takes the lock
		// rather than trusting the earlier unlocked read.
		if r.mask&uint8(kind) != 0 {
			r.mask &^= uint8(kind)
			scheduleReady(h)
			return
		}
		r.waiters[idx] = h
	})
}

// makeReady unconditionally sets kind in the mask, promising the next wait on
// this ReadyStates for that kind returns without suspending.
func (r *ReadyStates) makeReady(kind ReadyKind) {
	r.mu.Lock()
	r.mask |= uint8(kind)
	r.mu.Unlock()
}

// notify is called by the reactor when the kernel poller reports readiness.
// For each bit set in events, it either hands the parked Handle back to the
// caller for dispatch, or latches the bit for a future wait. The spinlock is
// released before any produced Handle is scheduled.
func (r *ReadyStates) notify(events ReadyKind) []*Handle {
	var out []*Handle
	r.mu.Lock()
	for _, kind := range [...]ReadyKind{Readable, Writable, ErrorReady, Hup} {
		if events&kind == 0 {
			continue
		}
		idx := kind.index()
		if w := r.waiters[idx]; w != nil {
			r.waiters[idx] = nil
			out = append(out, w)
		} else {
			r.mask |= uint8(kind)
		}
	}
	r.mu.Unlock()
	return out
}
