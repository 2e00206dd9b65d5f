package corogo

import (
	"context"
	"time"
)

// New constructs a Scheduler configured by opts.
func New(opts ...Option) (*Scheduler, error) {
	return NewScheduler(opts...)
}

// Spawn starts entry as a new coroutine managed by the currently running
// Scheduler and returns a JoinHandle for its result. Safe to call from any
// goroutine (inside or outside a coroutine) while a Scheduler is in Run.
func Spawn[T any](entry func() T, opts ...SpawnOption) (*JoinHandle[T], error) {
	s := theScheduler()
	if s == nil {
		return nil, ErrSchedulerMissing
	}

	cfg := resolveSpawnOptions(s, opts)
	weight := int64(cfg.stackSize)
	if err := s.acquireStack(context.Background(), weight); err != nil {
		return nil, err
	}

	jh := &JoinHandle[T]{done: make(chan struct{})}
	h := newCoroutine(cfg.name, func() {
		defer s.releaseStack(weight)
		defer func() {
			if r := recover(); r != nil {
				jh.err = &PanicError{Value: r, Coro: cfg.name}
			}
			close(jh.done)
		}()
		jh.result = entry()
	})
	s.globalPush(h)
	return jh, nil
}

// Sched voluntarily yields the calling coroutine back to its Processor,
// which re-enqueues it at the tail of the local runqueue. A no-op if called
// outside a coroutine.
func Sched() {
	c := currentCoroutine()
	if c == nil {
		return
	}
	c.sched()
}

// Sleep parks the calling coroutine until d has elapsed, using the active
// Scheduler's reactor timer wheel rather than blocking an OS thread. Must be
// called from within a coroutine; returns ErrSchedulerMissing otherwise.
func Sleep(d time.Duration) error {
	s := theScheduler()
	if s == nil {
		return ErrSchedulerMissing
	}
	c := currentCoroutine()
	if c == nil {
		return ErrSchedulerMissing
	}
	deadline := time.Now().Add(d)
	c.parkWith(func(h *Handle) {
		s.reactor.scheduleTimer(deadline, h, nil)
	})
	return nil
}

// SleepMs is Sleep expressed in milliseconds.
func SleepMs(ms int64) error {
	return Sleep(time.Duration(ms) * time.Millisecond)
}
