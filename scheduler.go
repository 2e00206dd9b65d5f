package corogo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Scheduler is the M:N coroutine runtime: a fixed pool of Processor workers
// sharing a lock-free global runqueue and one reactor goroutine bridging
// kernel I/O readiness and timers back into that queue. User code runs only
// on the Processor workers; the reactor goroutine never executes user code
// directly.
type Scheduler struct {
	id   int64
	opts *schedulerOptions

	processors []*processor

	global    *HandleList
	globalLen atomic.Int64

	idleMu    sync.Mutex
	idleCond  *sync.Cond
	idleCount int
	spinning  atomic.Int32
	shutdown  atomic.Bool

	reactor  *reactor
	stackSem *semaphore.Weighted

	state *FastState

	metrics *QueueMetrics
	latency *LatencyMetrics
	tps     *TPSCounter

	wg sync.WaitGroup
}

var (
	schedulerIDCounter atomic.Int64
	activeScheduler    atomic.Pointer[Scheduler]
)

// theScheduler returns the Scheduler currently inside Run, or nil if none is
// running. Used by package-level helpers (scheduleReady, Spawn, Sched, Sleep)
// that need to reach the active runtime without every call site threading a
// *Scheduler through explicitly.
func theScheduler() *Scheduler {
	return activeScheduler.Load()
}

// NewScheduler constructs a Scheduler. It does not start any goroutines;
// call Run to do that.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		id:       schedulerIDCounter.Add(1),
		opts:     cfg,
		global:   NewHandleList(),
		stackSem: semaphore.NewWeighted(cfg.maxStackBytes),
		state:    NewFastState(),
	}
	s.idleCond = sync.NewCond(&s.idleMu)

	if cfg.logger != nil {
		SetStructuredLogger(cfg.logger)
	}

	if cfg.metricsEnabled {
		s.metrics = &QueueMetrics{}
		s.latency = &LatencyMetrics{}
		s.tps = NewTPSCounter(10*time.Second, 100*time.Millisecond)
	}

	s.processors = make([]*processor, cfg.workers)
	for i := range s.processors {
		s.processors[i] = newProcessor(i, s)
	}

	r, err := newReactor(s)
	if err != nil {
		return nil, err
	}
	s.reactor = r

	return s, nil
}

// processorSnapshot returns the fixed processor slice; it never changes
// after construction, so no lock is needed to read it.
func (s *Scheduler) processorSnapshot() []*processor {
	return s.processors
}

// globalPush enqueues a single Handle on the lock-free global runqueue and
// wakes an idle worker if any are parked and none are already spinning.
func (s *Scheduler) globalPush(h *Handle) {
	s.global.Push(h)
	n := s.globalLen.Add(1)
	if s.metrics != nil {
		s.metrics.UpdateGlobal(int(n))
	}
	s.unparkOne()
}

// globalPushAll is globalPush for a batch, used when a steal or refill
// produces overflow that didn't fit the taking processor's local queue.
func (s *Scheduler) globalPushAll(hs []*Handle) {
	for _, h := range hs {
		s.global.Push(h)
	}
	n := s.globalLen.Add(int64(len(hs)))
	if s.metrics != nil {
		s.metrics.UpdateGlobal(int(n))
	}
	s.unparkMany(len(hs))
}

// globalPopN pops up to n Handles from the global runqueue.
func (s *Scheduler) globalPopN(n int) []*Handle {
	out := s.global.PopN(n)
	if len(out) > 0 {
		rem := s.globalLen.Add(-int64(len(out)))
		if s.metrics != nil {
			s.metrics.UpdateGlobal(int(rem))
		}
	}
	return out
}

// unparkOne wakes a single idle worker: cheap, deduplicated by idleCount, a
// no-op if nobody is parked or a worker is already spinning (it will find
// the work itself).
func (s *Scheduler) unparkOne() {
	s.unparkMany(1)
}

// unparkMany implements the "how many workers to wake for n new runnable
// handles" policy: min(idleCount, n/(queueSize/2)+1), and only if no worker
// is currently spinning (an already-spinning worker will find the work via
// trySteal/tryRefillFromGlobal without needing a wakeup).
func (s *Scheduler) unparkMany(n int) {
	if s.anySpinning() {
		return
	}
	want := n/(queueSize/2) + 1
	s.idleMu.Lock()
	if want > s.idleCount {
		want = s.idleCount
	}
	for i := 0; i < want; i++ {
		s.idleCond.Signal()
	}
	s.idleMu.Unlock()
}

func (s *Scheduler) anySpinning() bool {
	for _, p := range s.processors {
		if p.spin.Load() {
			return true
		}
	}
	return false
}

// parkIdleWorker double-checks the global queue is empty before blocking p
// on the idle condition variable, then re-checks after waking. Returns true
// if the wake was due to shutdown rather than new work.
func (s *Scheduler) parkIdleWorker(p *processor) bool {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	for {
		if s.shutdown.Load() {
			return true
		}
		if s.globalLen.Load() > 0 {
			return false
		}
		s.idleCount++
		s.idleCond.Wait()
		s.idleCount--
		if s.shutdown.Load() {
			return true
		}
		if s.globalLen.Load() > 0 {
			return false
		}
	}
}

// Run starts the reactor and worker Processors, spawns entry as the first
// coroutine, and blocks until entry returns (or panics), then shuts the
// workers and reactor down and returns entry's result. Work still queued or
// parked at that point is not run. Only one Scheduler may be active (in Run)
// per process at a time.
func Run[T any](s *Scheduler, entry func() T) (result T, err error) {
	if !activeScheduler.CompareAndSwap(nil, s) {
		err = ErrSchedulerAlreadyRunning
		return
	}
	defer activeScheduler.Store(nil)
	s.state.Store(StateRunning)

	stopReactor := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reactor.run(stopReactor)
	}()

	for _, p := range s.processors {
		s.wg.Add(1)
		go func(p *processor) {
			defer s.wg.Done()
			p.run()
		}(p)
	}

	done := make(chan struct{})
	var panicVal any
	h := newCoroutine("<main>", func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
			}
			close(done)
		}()
		result = entry()
	})
	s.globalPush(h)

	<-done

	s.shutdownRuntime(stopReactor)

	if panicVal != nil {
		err = &PanicError{Value: panicVal, Coro: "<main>"}
	}
	return
}

// shutdownRuntime signals every Processor and the reactor to stop and waits
// for them to exit.
func (s *Scheduler) shutdownRuntime(stopReactor chan struct{}) {
	s.state.TryTransition(StateRunning, StateTerminating)
	s.shutdown.Store(true)
	s.idleMu.Lock()
	s.idleCond.Broadcast()
	s.idleMu.Unlock()

	for _, p := range s.processors {
		p.ctrl <- ctrlShutdown
	}
	close(stopReactor)
	s.reactor.wake()

	s.wg.Wait()
	s.reactor.close()
	s.state.Store(StateTerminated)
}

// RunState reports the Scheduler's current lifecycle state: Awake before
// Run, Running/Terminating while Run is active or winding down, Terminated
// once Run has returned.
func (s *Scheduler) RunState() RunState {
	return s.state.Load()
}

// acquireStack blocks until enough stack-ceiling weight is free, per the
// "block" resolution of the aggregate stack-memory ceiling's open policy
// question (see DESIGN.md): Spawn backpressures the spawning coroutine
// rather than ever failing outright.
func (s *Scheduler) acquireStack(ctx context.Context, weight int64) error {
	return s.stackSem.Acquire(ctx, weight)
}

func (s *Scheduler) releaseStack(weight int64) {
	s.stackSem.Release(weight)
}

// Metrics returns the Scheduler's queue-depth metrics, or nil if
// WithMetrics(true) was not passed to NewScheduler.
func (s *Scheduler) Metrics() *QueueMetrics {
	return s.metrics
}

// Latency returns the Scheduler's run-slice latency percentile tracker, or
// nil if metrics are disabled.
func (s *Scheduler) Latency() *LatencyMetrics {
	return s.latency
}

// Throughput returns the Scheduler's completed-coroutine rolling TPS
// counter, or nil if metrics are disabled.
func (s *Scheduler) Throughput() *TPSCounter {
	return s.tps
}
