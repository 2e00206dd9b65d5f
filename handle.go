package corogo

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// CoroState is the lifecycle state of a single coroutine.
type CoroState uint32

const (
	// CoroRunnable means the coroutine is sitting in some queue, ready to run.
	CoroRunnable CoroState = iota
	// CoroRunning means the coroutine is currently executing on a processor.
	CoroRunning
	// CoroParked means the coroutine has suspended itself via park_with and is
	// owned by whatever closure it handed itself to (a waiter slot, a timer wheel
	// entry, the reactor's in-flight set).
	CoroParked
	// CoroFinished means the entry function has returned or panicked; the result
	// slot holds the outcome.
	CoroFinished
)

// parkRequest is what a coroutine goroutine sends to its processor when it
// suspends via park_with. The processor's run loop treats this as the single
// primitive all suspension funnels through: sched, I/O wait, timers, and join
// all resolve to a parkRequest with a different disposition closure.
type parkRequest struct {
	// dispose places the coroutine's Handle into a waiter slot, timer wheel,
	// or other structure, or lets it fall to the ground (effectively
	// dropping it, which is only valid if something else retains a way to
	// resume it, e.g. a channel close).
	dispose func(h *Handle)
}

// coroutine is the control block behind a Handle. In a real stackful runtime
// this would carry a stack region and saved machine registers; Go gives every
// goroutine its own stack managed by the runtime, so a coroutine here is a
// goroutine paired with a resume/yield rendezvous that a Processor drives
// exactly like it would drive a context switch. The Processor never touches
// the goroutine directly except through resume/yield, preserving the "exactly
// one owner at a time" invariant even though the OS thread doing the owning
// can vary between resumes.
type coroutine struct {
	// link is an intrusive next-pointer slot. HandleList does not use it: it
	// links Handles through pooled handleNode values instead (see nodePool).
	link unsafe.Pointer

	name  string
	state atomic.Uint32 // CoroState

	// resume is sent a parkRequest-free token to wake the coroutine goroutine
	// after it has parked; receiving from it is the coroutine's only blocking
	// operation between suspension points.
	resume chan struct{}
	// yield receives the parkRequest (or nil for a plain sched) each time the
	// coroutine goroutine suspends, handing control back to whichever
	// Processor is currently running it.
	yield chan *parkRequest

	entry func()

	panicVal  any
	panicking bool

	proc unsafe.Pointer // *processor currently running or owning this coroutine, may be nil

	id int64 // monotonic, for log correlation only
}

var coroIDCounter atomic.Int64

// Handle is an opaque, moveable owning reference to a coroutine. At most one
// Handle for a given coroutine is ever live: the unbuffered resume/yield
// rendezvous serves one driving processor at a time, so sharing a coroutine
// across two Handles is a programming error rather than merely discouraged.
type Handle struct {
	c *coroutine
}

// newCoroutine constructs a coroutine and starts its goroutine, immediately
// parking it until the first resume so it never races the caller for the
// "current" slot.
func newCoroutine(name string, entry func()) *Handle {
	c := &coroutine{
		name:   name,
		resume: make(chan struct{}),
		yield:  make(chan *parkRequest),
		entry:  entry,
		id:     coroIDCounter.Add(1),
	}
	c.state.Store(uint32(CoroRunnable))
	go c.loop()
	return &Handle{c: c}
}

// loop is the body of the coroutine's backing goroutine. It waits to be
// resumed, runs the entry function exactly once to completion (catching any
// panic), and reports Finished via yield with a nil parkRequest, which tells
// the driving Processor to drop the Handle rather than requeue it.
func (c *coroutine) loop() {
	<-c.resume
	registerCurrentCoroutine(c)
	func() {
		defer unregisterCurrentCoroutine()
		defer func() {
			if r := recover(); r != nil {
				c.panicking = true
				c.panicVal = r
				LogCoroutinePanicked(c.schedulerID(), c.id, r)
			}
		}()
		c.entry()
	}()
	if !c.panicking {
		LogCoroutineFinished(c.schedulerID(), c.id)
	}
	c.state.Store(uint32(CoroFinished))
	c.yield <- nil
}

// schedulerID returns the id of the Scheduler currently driving this
// coroutine, or 0 if none (only possible before the first resume).
func (c *coroutine) schedulerID() int64 {
	if p := c.currentProc(); p != nil {
		return p.sched.id
	}
	return 0
}

// currentProc returns the processor currently driving this coroutine.
func (c *coroutine) currentProc() *processor {
	return (*processor)(atomic.LoadPointer(&c.proc))
}

// setProc records which processor is about to drive this coroutine, or clears
// it (pass nil) once the coroutine has yielded back to the worker loop.
func (c *coroutine) setProc(p *processor) {
	atomic.StorePointer(&c.proc, unsafe.Pointer(p))
}

// parkWith is the single suspension primitive every blocking operation in this
// package funnels through. It must be called from the coroutine's own
// goroutine (i.e. from inside its entry function, directly or transitively).
// It hands control back to whichever processor is currently driving the
// coroutine, along with a dispose closure responsible for placing the
// coroutine's Handle into a waiter slot, a timer wheel, a join slot, or
// nothing at all; until dispose returns, the Handle belongs to no queue.
// parkWith blocks until some future resume wakes the coroutine back up.
func (c *coroutine) parkWith(dispose func(h *Handle)) {
	c.state.Store(uint32(CoroParked))
	c.yield <- &parkRequest{dispose: dispose}
	<-c.resume
}

// sched is a voluntary yield with no disposition: the caller (the Processor
// driving resumeAndWait) re-enqueues the Handle at the local queue's tail.
func (c *coroutine) sched() {
	c.yield <- nil
	<-c.resume
}

// Name returns the coroutine's configured name, or "" if unnamed.
func (h *Handle) Name() string { return h.c.name }

// State returns the coroutine's current lifecycle state.
func (h *Handle) State() CoroState { return CoroState(h.c.state.Load()) }

// resumeAndWait runs the coroutine until its next suspension point, returning
// the parkRequest it suspended with (nil means voluntary sched, or, combined
// with a Finished state, completion).
func (h *Handle) resumeAndWait() *parkRequest {
	c := h.c
	c.state.Store(uint32(CoroRunning))
	c.resume <- struct{}{}
	req := <-c.yield
	// A nil request with a non-Finished state is a plain voluntary sched: the
	// coroutine is immediately runnable again. A non-nil request means the
	// coroutine parked itself and its state (already CoroParked, set by
	// parkWith) must not be touched until something resumes it.
	if req == nil && c.state.Load() != uint32(CoroFinished) {
		c.state.Store(uint32(CoroRunnable))
	}
	return req
}

// nodePool backs HandleList's internal linking nodes. Node reuse keeps the
// steady-state enqueue/dequeue path allocation-free even though a genuinely
// intrusive link (the coroutine itself rotating through the dummy-node role)
// is unsafe here: the Michael-Scott algorithm requires the dequeued node to
// remain live as the new sentinel, which would alias list bookkeeping onto a
// coroutine struct that is simultaneously being resumed elsewhere. See
// DESIGN.md for the full tradeoff.
var nodePool = sync.Pool{New: func() any { return new(handleNode) }}

type handleNode struct {
	value *Handle
	next  unsafe.Pointer // *handleNode
}

// HandleList is a lock-free MPSC/MPMC FIFO queue of Handles, adapted from the
// Michael-Scott algorithm. It backs both the per-processor local runqueue
// overflow path and the Scheduler's global queue.
type HandleList struct {
	head unsafe.Pointer // *handleNode
	tail unsafe.Pointer // *handleNode
}

// NewHandleList returns an empty list.
func NewHandleList() *HandleList {
	n := nodePool.Get().(*handleNode)
	n.value, n.next = nil, nil
	p := unsafe.Pointer(n)
	return &HandleList{head: p, tail: p}
}

func loadHNode(p *unsafe.Pointer) *handleNode {
	return (*handleNode)(atomic.LoadPointer(p))
}

func casHNode(p *unsafe.Pointer, old, new *handleNode) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(old), unsafe.Pointer(new))
}

// Push appends a Handle to the tail of the list.
func (l *HandleList) Push(h *Handle) {
	n := nodePool.Get().(*handleNode)
	n.value, n.next = h, nil
	for {
		tail := loadHNode(&l.tail)
		next := loadHNode(&tail.next)
		if tail == loadHNode(&l.tail) {
			if next == nil {
				if casHNode(&tail.next, next, n) {
					casHNode(&l.tail, tail, n)
					return
				}
			} else {
				casHNode(&l.tail, tail, next)
			}
		}
	}
}

// Pop removes and returns the Handle at the head of the list, or nil if empty.
func (l *HandleList) Pop() *Handle {
	for {
		head := loadHNode(&l.head)
		tail := loadHNode(&l.tail)
		next := loadHNode(&head.next)
		if head != loadHNode(&l.head) {
			continue
		}
		if head == tail {
			if next == nil {
				return nil
			}
			casHNode(&l.tail, tail, next)
			continue
		}
		value := next.value
		if casHNode(&l.head, head, next) {
			head.value, head.next = nil, nil
			nodePool.Put(head)
			return value
		}
	}
}

// PopN removes and returns up to n Handles from the head of the list, for the
// global-queue refill path (peer steals go through localQueue.popHalf).
func (l *HandleList) PopN(n int) []*Handle {
	out := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h := l.Pop()
		if h == nil {
			break
		}
		out = append(out, h)
	}
	return out
}
