// Package corogo is a user-space M:N coroutine runtime coupled to a
// non-blocking I/O reactor, for writing network services in a direct,
// synchronous style: application code performs ordinary blocking-looking
// reads, writes, sleeps, and joins, while the runtime transparently suspends
// the caller on would-block, registers interest with the kernel poller, and
// resumes the caller when the descriptor becomes ready.
//
// # Architecture
//
// Three pieces do the work. A [Scheduler] owns a fixed pool of worker
// goroutines ("processors"), each with a bounded local run queue, that run
// coroutines cooperatively — work is handed out local-queue-first, then
// stolen from a peer, then pulled from the Scheduler's global queue, then the
// worker parks. A single reactor goroutine owns the kernel poller (epoll on
// Linux) and a millisecond-resolution timer wheel, and bridges kernel
// readiness back onto the global queue. [ReadyStates] is the synchronization
// primitive between them: a spinlock-protected sticky readiness latch plus
// one waiter slot per readiness kind, closing the race between a coroutine
// parking on WouldBlock and the reactor observing readiness first.
//
// A coroutine here is a goroutine paired with a resume/yield rendezvous
// channel pair that a processor drives the way a stackful runtime would
// drive a context switch — see the package's DESIGN.md for why this is the
// idiomatic Go rendition of "stackful coroutine multiplexed onto a worker
// thread" rather than a hand-rolled stack/register implementation.
//
// # Usage
//
//	sched, err := corogo.New(corogo.WithWorkers(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := corogo.Run(sched, func() int {
//		h, _ := corogo.Spawn(func() int { return 21 })
//		v, _ := h.Join()
//		return v * 2
//	})
//
// # Suspension points
//
// Exactly: [Sched], [Sleep]/[SleepMs], any read/write/flush on a
// [GenericEvented] that would otherwise block, and [JoinHandle.Join]. No
// other call in this package suspends the calling coroutine.
//
// # Non-goals
//
// No preemption — a coroutine that never yields monopolizes its worker. No
// priority classes, deadline scheduling, or admission control. No
// cross-process or cross-machine scheduling. Timer resolution is
// milliseconds only. Fairness is best-effort: [Spinlock] is explicitly
// unfair; use [TicketSpinlock] where starvation would be visible.
package corogo
