package corogo

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// ctrlShutdown is the only control message a processor's channel carries.
type ctrlMsg int

const (
	ctrlShutdown ctrlMsg = iota
)

// processor is a worker: it owns a bounded local runqueue and drives handles
// one at a time to completion or suspension. At most one processor drives a
// given Handle at any moment; which processor that is can change across
// suspensions (the Handle is stolen, or refilled from the global queue, by a
// different worker), which is what currentCoroutine/currentProcessor resolve
// dynamically rather than pinning at spawn time.
type processor struct {
	id      int
	sched   *Scheduler
	local   localQueue
	ctrl    chan ctrlMsg
	current *Handle
	spin    atomic.Bool
	state   *FastState
}

func newProcessor(id int, s *Scheduler) *processor {
	return &processor{
		id:    id,
		sched: s,
		ctrl:  make(chan ctrlMsg, 1),
		state: NewFastState(),
	}
}

// run is the processor's driver loop, started on its own goroutine by
// Scheduler.Run. It implements the fixed schedule described for a worker:
// pop local, else steal, else refill from global, else park.
func (p *processor) run() {
	p.state.Store(StateRunning)
	for {
		h := p.local.popFront()
		if h == nil {
			h = p.trySteal()
		}
		if h == nil {
			h = p.tryRefillFromGlobal()
		}
		if h == nil {
			if p.parkIdle() {
				return // shutdown while parked
			}
			continue
		}
		p.runHandle(h)

		select {
		case msg := <-p.ctrl:
			if msg == ctrlShutdown {
				p.state.Store(StateTerminated)
				return
			}
		default:
		}
	}
}

// trySteal marks the processor spinning and attempts to take half of a
// randomly chosen peer's local queue.
func (p *processor) trySteal() *Handle {
	procs := p.sched.processorSnapshot()
	if len(procs) <= 1 {
		return nil
	}
	p.spin.Store(true)
	defer p.spin.Store(false)

	start := rand.Intn(len(procs))
	for i := 0; i < len(procs); i++ {
		peer := procs[(start+i)%len(procs)]
		if peer == p || peer.state.Load() == StateTerminated {
			continue
		}
		stolen := peer.local.popHalf()
		if len(stolen) == 0 {
			continue
		}
		LogStealAttempt(p.sched.id, p.id, len(stolen))
		first := stolen[0]
		if rest := stolen[1:]; len(rest) > 0 {
			overflow := p.local.pushMany(rest)
			if len(overflow) > 0 {
				p.sched.globalPushAll(overflow)
			}
		}
		return first
	}
	return nil
}

// tryRefillFromGlobal pops up to queueSize/2 handles from the Scheduler's
// global queue into the local queue, returning the first one to run.
func (p *processor) tryRefillFromGlobal() *Handle {
	hs := p.sched.globalPopN(queueSize / 2)
	if len(hs) == 0 {
		return nil
	}
	first := hs[0]
	if rest := hs[1:]; len(rest) > 0 {
		overflow := p.local.pushMany(rest)
		if len(overflow) > 0 {
			p.sched.globalPushAll(overflow)
		}
	}
	return first
}

// parkIdle double-checks the global queue's size under the Scheduler's idle
// mutex, then blocks on the
// Scheduler's idle condition variable if it is still empty. Returns true if
// woken by shutdown.
func (p *processor) parkIdle() bool {
	p.state.TryTransition(StateRunning, StateSleeping)
	defer p.state.TryTransition(StateSleeping, StateRunning)
	return p.sched.parkIdleWorker(p)
}

// runHandle installs h as current, drives it to its next suspension point,
// and acts on the result.
func (p *processor) runHandle(h *Handle) {
	p.current = h
	h.c.setProc(p)

	var start time.Time
	if p.sched.latency != nil {
		start = time.Now()
	}

	req := h.resumeAndWait()

	if p.sched.latency != nil {
		p.sched.latency.Record(time.Since(start))
	}

	h.c.setProc(nil)
	p.current = nil

	switch {
	case req == nil && h.State() == CoroFinished:
		// done; nothing further owns the Handle.
		if p.sched.metrics != nil {
			p.sched.metrics.UpdateLocal(p.local.size())
		}
		if p.sched.tps != nil {
			p.sched.tps.Increment()
		}
	case req == nil:
		// voluntary sched: re-enqueue locally, overflow to global if full.
		if !p.local.pushBack(h) {
			p.sched.globalPush(h)
		}
		if p.sched.metrics != nil {
			p.sched.metrics.UpdateLocal(p.local.size())
		}
	default:
		req.dispose(h)
	}
}

// scheduleReady is called by ReadyStates (and other waiter-style holders) to
// hand a Handle straight back to scheduling, bypassing any waiter slot, when
// readiness was observed to have already arrived by the time parking
// completed.
func scheduleReady(h *Handle) {
	if s := theScheduler(); s != nil {
		s.globalPush(h)
	}
}
