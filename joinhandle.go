package corogo

// JoinHandle is a typed, single-owner reference to a spawned coroutine's
// eventual result. Unlike a chainable promise with many observers, a
// JoinHandle supports exactly one Join call from exactly one observer,
// backed by a plain channel close rather than a fulfilled/rejected/pending
// state machine.
type JoinHandle[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Join blocks until the coroutine finishes, returning its result and nil, or
// the zero value and a *PanicError if it panicked. Calling Join from within a
// coroutine parks that coroutine through parkWith rather than blocking its
// processor; called from outside any coroutine, it blocks the calling
// goroutine on the done channel.
func (j *JoinHandle[T]) Join() (T, error) {
	if c := currentCoroutine(); c != nil {
		c.parkWith(func(h *Handle) {
			go func() {
				<-j.done
				scheduleReady(h)
			}()
		})
	} else {
		<-j.done
	}
	return j.result, j.err
}

// Done returns a channel closed when the coroutine finishes, for use in a
// select alongside other readiness sources.
func (j *JoinHandle[T]) Done() <-chan struct{} {
	return j.done
}
