package corogo

import (
	"sync/atomic"
)

// RunState is the lifecycle state of a Scheduler or a processor.
//
// State Machine:
//
//	Awake (0) -> Running (3)          [Run() / processor.run]
//	Running (3) -> Sleeping (2)       [processor idle parking, via CAS]
//	Sleeping (2) -> Running (3)       [processor woken, via CAS]
//	Running (3) -> Terminating (4)    [Scheduler shutdownRuntime, via CAS]
//	Terminating (4) -> Terminated (1) [Scheduler, once all workers exited]
//	Running (3) -> Terminated (1)     [processor shutdown control message]
//	Terminated (1) -> (terminal)
//
// Use TryTransition (CAS) when a transition must be contended-safe (e.g. a processor
// being concurrently asked to shut down while it is about to sleep). A sole owner that
// is not racing anyone else for its own state (a processor setting its own Running ->
// Sleeping) may Store directly.
type RunState uint64

const (
	// StateAwake indicates the owner has been constructed but not started.
	StateAwake RunState = 0
	// StateTerminated indicates the owner has fully stopped.
	StateTerminated RunState = 1
	// StateSleeping indicates the owner is parked, waiting for work.
	StateSleeping RunState = 2
	// StateRunning indicates the owner is actively processing.
	StateRunning RunState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating RunState = 4
)

// String returns a human-readable representation of the state.
func (s RunState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine with cache-line padding, shared by the
// Scheduler and every processor to avoid a mutex on the hot run/park path.
type FastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte
	v atomic.Uint64 // state value
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte
}

// NewFastState creates a new state machine in the Awake state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() RunState {
	return RunState(s.v.Load())
}

// Store atomically stores a new state unconditionally. Used by a sole owner
// for its own transitions (entering Running, reaching Terminated); use
// TryTransition where the transition can race.
func (s *FastState) Store(state RunState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *FastState) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal reports whether the current state is terminal.
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// IsRunning reports whether the owner is currently running or sleeping (i.e. has been
// started and has not yet terminated).
func (s *FastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
