// Package corogo provides a user-space M:N coroutine runtime with error types
// that support Go's cause-chain matching via errors.Is/errors.As.
package corogo

import (
	"errors"
	"fmt"
)

// ErrSchedulerMissing is returned (or panics are avoided in favor of it, where
// an error can be returned) when a scheduler-requiring operation — Spawn,
// Sleep, NewGenericEvented — is called with no Scheduler currently running
// on any thread reachable from the caller. Sched returns no error: outside a
// coroutine it is a silent no-op.
var ErrSchedulerMissing = errors.New("corogo: no scheduler is running")

// ErrQueueFull names the "target queue is full" back-pressure condition. No
// code path in this package returns it: the local runqueue reports a full
// queue through pushBack's boolean result and overflows to the global queue.
var ErrQueueFull = errors.New("corogo: queue full")

// ErrSchedulerAlreadyRunning is returned by Run when another Scheduler is
// already active in this process; only one Scheduler may be in Run at a time
// because Spawn/Sched/Sleep resolve the active Scheduler out-of-band via
// theScheduler rather than threading it through every call site.
var ErrSchedulerAlreadyRunning = errors.New("corogo: a scheduler is already running")

// RangeError reports a configuration value outside its valid range, e.g. an
// Option or SpawnOption given a non-positive size.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// TimerError represents a timer-registration failure. No function in this
// package returns it: the reactor's timer heap accepts every timer, so Sleep
// and SleepMs have no registration failure to report.
type TimerError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TimerError) Error() string {
	if e.Message == "" {
		return "timer registration failed"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *TimerError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a coroutine's panic. It is
// delivered through JoinHandle.Join for a spawned coroutine's panic, and
// returned as Run's error when the "<main>" coroutine itself panics.
type PanicError struct {
	// Value is exactly what recover() returned inside the coroutine.
	Value any
	// Coro is the name of the coroutine that panicked, if it had one.
	Coro string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Coro != "" {
		return fmt.Sprintf("corogo: coroutine %q panicked: %v", e.Coro, e.Value)
	}
	return fmt.Sprintf("corogo: coroutine panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is itself an error,
// enabling errors.Is/errors.As to see through to it.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WrapError wraps an error with a message, preserving the cause chain so that
// errors.Is(result, cause) == true.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
