package corogo

import (
	"runtime"
	"sync"
)

// coroRegistry maps a goroutine ID to the coroutine executing on it. Go has no
// public goroutine-local-storage primitive, so membership is tracked explicitly:
// a coroutine's backing goroutine registers itself the moment it starts running
// the user's entry function and deregisters when that function returns. Only
// coroutine goroutines ever appear here — Processor and Scheduler driver
// goroutines never register, which is what makes currentCoroutine() return nil
// when called from outside any coroutine.
var coroRegistry sync.Map // goroutineID uint64 -> *coroutine

// getGoroutineID returns the calling goroutine's runtime-assigned ID by parsing
// the header line of runtime.Stack. This recovers a form of goroutine-local
// context without resorting to runtime-internal linkname tricks.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// registerCurrentCoroutine associates the calling goroutine with c for the
// duration of c's entry function.
func registerCurrentCoroutine(c *coroutine) {
	coroRegistry.Store(getGoroutineID(), c)
}

// unregisterCurrentCoroutine removes the calling goroutine's association,
// called once the coroutine's entry function has returned or panicked.
func unregisterCurrentCoroutine() {
	coroRegistry.Delete(getGoroutineID())
}

// currentCoroutine returns the coroutine running on the calling goroutine, or
// nil if the caller is not executing inside one (e.g. it is a Processor driver
// goroutine or an arbitrary application goroutine that never went through
// Spawn).
func currentCoroutine() *coroutine {
	v, ok := coroRegistry.Load(getGoroutineID())
	if !ok {
		return nil
	}
	return v.(*coroutine)
}

// currentProcessor returns the processor currently driving the calling
// coroutine, or nil if there is none (not inside a coroutine, or the
// coroutine is between resumes, e.g. in flight to a waiter slot).
func currentProcessor() *processor {
	c := currentCoroutine()
	if c == nil {
		return nil
	}
	return c.currentProc()
}
