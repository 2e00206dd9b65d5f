package corogo

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSingleWorkerJoin covers spec scenario 1: a single spawned coroutine's
// result round-trips through Join unchanged.
func TestSingleWorkerJoin(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	result, err := Run(sched, func() int {
		h, err := Spawn(func() int { return 1 })
		require.NoError(t, err)
		v, err := h.Join()
		require.NoError(t, err)
		return v
	})
	require.NoError(t, err)
	require.Equal(t, 1, result)
}

// TestPingPongYield covers spec scenario 2: a coroutine that yields twice via
// Sched before returning still delivers its result intact.
func TestPingPongYield(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	result, err := Run(sched, func() int {
		h, err := Spawn(func() int {
			Sched()
			Sched()
			return 7
		})
		require.NoError(t, err)
		v, err := h.Join()
		require.NoError(t, err)
		return v
	})
	require.NoError(t, err)
	require.Equal(t, 7, result)
}

// TestSleepAccuracy covers spec scenario 4: SleepMs(50) returns within
// [50ms, 50ms+20ms] slack on at least 99 of 100 trials.
func TestSleepAccuracy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing-sensitive test in short mode")
	}
	sched, err := New(WithWorkers(2))
	require.NoError(t, err)

	const trials = 100
	within := 0

	_, err = Run(sched, func() int {
		for i := 0; i < trials; i++ {
			start := time.Now()
			require.NoError(t, SleepMs(50))
			elapsed := time.Since(start)
			if elapsed >= 50*time.Millisecond && elapsed <= 70*time.Millisecond {
				within++
			}
		}
		return 0
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, within, 99)
}

// TestParallelFanOut covers spec scenario 5: 10,000 spawned coroutines each
// computing i*i, joined and summed, across 4 workers.
func TestParallelFanOut(t *testing.T) {
	sched, err := New(WithWorkers(4))
	require.NoError(t, err)

	const total = 10_000
	var want int64
	for i := int64(0); i < total; i++ {
		want += i * i
	}

	sum, err := Run(sched, func() int64 {
		handles := make([]*JoinHandle[int64], total)
		for i := int64(0); i < total; i++ {
			i := i
			h, err := Spawn(func() int64 { return i * i })
			require.NoError(t, err)
			handles[i] = h
		}
		var sum int64
		for _, h := range handles {
			v, err := h.Join()
			require.NoError(t, err)
			sum += v
		}
		return sum
	})
	require.NoError(t, err)
	require.Equal(t, want, sum)
}

// TestPanicPropagation covers spec scenario 6: a spawned coroutine's panic
// surfaces from Join as a *PanicError, and a panic in the entry passed to
// Run surfaces from Run itself the same way.
func TestPanicPropagation(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	_, err = Run(sched, func() int {
		h, err := Spawn(func() int { panic("x") })
		require.NoError(t, err)
		_, joinErr := h.Join()
		var panicErr *PanicError
		require.ErrorAs(t, joinErr, &panicErr)
		require.Equal(t, "x", panicErr.Value)
		return 0
	})
	require.NoError(t, err)

	sched2, err := New(WithWorkers(1))
	require.NoError(t, err)

	_, runErr := Run(sched2, func() int {
		panic("y")
	})
	var panicErr *PanicError
	require.ErrorAs(t, runErr, &panicErr)
	require.Equal(t, "y", panicErr.Value)
}

// TestRunRejectsConcurrentSchedulers asserts only one Scheduler may be
// active in Run at a time, per §6.
func TestRunRejectsConcurrentSchedulers(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)

	started := make(chan struct{})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Run(sched, func() int {
			close(started)
			<-stop
			return 0
		})
	}()
	<-started

	sched2, err := New(WithWorkers(1))
	require.NoError(t, err)
	_, err = Run(sched2, func() int { return 0 })
	require.True(t, errors.Is(err, ErrSchedulerAlreadyRunning))

	close(stop)
	<-done
}

// TestSpawnOutsideRunFails asserts Spawn/Sleep report ErrSchedulerMissing
// rather than panicking when called with no Scheduler active, and that Sched
// is a no-op there.
func TestSpawnOutsideRunFails(t *testing.T) {
	_, err := Spawn(func() int { return 0 })
	require.ErrorIs(t, err, ErrSchedulerMissing)

	err = Sleep(time.Millisecond)
	require.ErrorIs(t, err, ErrSchedulerMissing)

	// Sched is a silent no-op outside a coroutine, not an error.
	require.NotPanics(t, Sched)
}

// TestMetricsWiring asserts WithMetrics(true) populates Metrics/Latency/
// Throughput, and that they stay nil otherwise.
func TestMetricsWiring(t *testing.T) {
	sched, err := New(WithWorkers(2), WithMetrics(true))
	require.NoError(t, err)
	require.NotNil(t, sched.Metrics())
	require.NotNil(t, sched.Latency())
	require.NotNil(t, sched.Throughput())

	var observedLocalMax int32
	_, err = Run(sched, func() int {
		handles := make([]*JoinHandle[int], 0, 64)
		for i := 0; i < 64; i++ {
			h, err := Spawn(func() int { Sched(); return 0 })
			require.NoError(t, err)
			handles = append(handles, h)
		}
		for _, h := range handles {
			_, _ = h.Join()
		}
		return 0
	})
	require.NoError(t, err)

	sched.Latency().Sample()
	atomic.StoreInt32(&observedLocalMax, int32(sched.Metrics().LocalMax))
	require.GreaterOrEqual(t, observedLocalMax, int32(0))

	sched3, err := New(WithWorkers(1))
	require.NoError(t, err)
	require.Nil(t, sched3.Metrics())
	require.Nil(t, sched3.Latency())
	require.Nil(t, sched3.Throughput())
}

// TestStackCeilingBlocksRatherThanFails asserts Spawn backpressures (blocks)
// once the stack-memory ceiling is saturated instead of returning an error,
// per the resolved Open Question recorded in DESIGN.md.
func TestStackCeilingBlocksRatherThanFails(t *testing.T) {
	sched, err := New(WithWorkers(2), WithMaxStackBytes(2), WithDefaultStackSize(1))
	require.NoError(t, err)

	_, err = Run(sched, func() int {
		block := make(chan struct{})
		h1, err := Spawn(func() int { <-block; return 0 }, WithStackSize(1))
		require.NoError(t, err)
		h2, err := Spawn(func() int { <-block; return 0 }, WithStackSize(1))
		require.NoError(t, err)

		spawned := make(chan struct{})
		go func() {
			// Runs on a plain goroutine, not a coroutine: acquireStack's
			// context.Background() blocks this goroutine, not a worker,
			// confirming Spawn backpressures rather than failing outright.
			_, _ = Spawn(func() int { return 0 }, WithStackSize(1))
			close(spawned)
		}()

		select {
		case <-spawned:
			t.Fatal("third Spawn should have blocked while the ceiling is saturated")
		case <-time.After(50 * time.Millisecond):
		}

		close(block)
		_, _ = h1.Join()
		_, _ = h2.Join()
		<-spawned
		return 0
	})
	require.NoError(t, err)
}

// TestSchedulerRunStateTransitions pins down the Scheduler's FastState
// lifecycle: Awake before Run, Running during, Terminated once Run returns.
func TestSchedulerRunStateTransitions(t *testing.T) {
	sched, err := New(WithWorkers(1))
	require.NoError(t, err)
	require.Equal(t, StateAwake, sched.RunState())

	mid := make(chan RunState, 1)
	_, err = Run(sched, func() int {
		mid <- sched.RunState()
		return 0
	})
	require.NoError(t, err)
	require.Equal(t, StateRunning, <-mid)
	require.Equal(t, StateTerminated, sched.RunState())
}
