//go:build linux

package corogo

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Evented is the narrow, non-blocking descriptor contract [GenericEvented]
// wraps. Concrete TCP/UDP/Unix-domain implementations are treated as
// external collaborators (§6 of the component design): this package only
// consumes the interface below, it does not ship a net.Conn replacement.
type Evented interface {
	// FD returns the underlying OS file descriptor used for kernel poller
	// registration. Must stay stable for the Evented's lifetime.
	FD() int
	// Read performs one non-blocking read attempt.
	Read(p []byte) (int, error)
	// Write performs one non-blocking write attempt.
	Write(p []byte) (int, error)
	// Flush pushes any buffered output. Implementations with no internal
	// buffering may return nil unconditionally.
	Flush() error
}

// GenericEvented wraps a non-blocking descriptor E: on construction it
// registers with the active Scheduler's reactor for the requested interest;
// each Read/Write/Flush loops the underlying call around
// [ReadyStates.wait] on WouldBlock/NotConnected, giving callers ordinary
// blocking-looking I/O while only ever parking the calling coroutine, never
// the OS thread under it. Close deregisters.
type GenericEvented[E Evented] struct {
	E     E
	sched *Scheduler
	token Token
	rs    *ReadyStates

	closed bool
}

// NewGenericEvented registers e with the running Scheduler's reactor for
// interest (some combination of EventRead/EventWrite) and returns a ready
// wrapper. Must be called from within Run (i.e. a Scheduler must be active).
func NewGenericEvented[E Evented](e E, interest IOEvents) (*GenericEvented[E], error) {
	s := theScheduler()
	if s == nil {
		return nil, ErrSchedulerMissing
	}
	tok, rs, err := s.reactor.registerFD(e.FD(), interest)
	if err != nil {
		return nil, err
	}
	return &GenericEvented[E]{E: e, sched: s, token: tok, rs: rs}, nil
}

// Read loops E.Read around ReadyStates.wait(Readable) until it returns
// something other than WouldBlock/NotConnected.
func (g *GenericEvented[E]) Read(p []byte) (int, error) {
	return g.loopIO(Readable, func() (int, error) { return g.E.Read(p) })
}

// Write loops E.Write around ReadyStates.wait(Writable) until it returns
// something other than WouldBlock/NotConnected.
func (g *GenericEvented[E]) Write(p []byte) (int, error) {
	return g.loopIO(Writable, func() (int, error) { return g.E.Write(p) })
}

// FlushIO loops E.Flush around ReadyStates.wait(Writable), for descriptors
// that buffer writes internally (e.g. a TLS record layer).
func (g *GenericEvented[E]) FlushIO() error {
	_, err := g.loopIO(Writable, func() (int, error) { return 0, g.E.Flush() })
	return err
}

// loopIO is the shared retry loop behind Read/Write/FlushIO: perform the
// call, return on success or a non-transient error, otherwise park on kind
// and retry. A syncGuard ensures a panic raised by op before the first park
// yields once on the way out rather than leaving the worker in a tight
// panic-retry loop.
func (g *GenericEvented[E]) loopIO(kind ReadyKind, op func() (int, error)) (int, error) {
	guard := newSyncGuard()
	defer guard.release()

	for {
		n, err := op()
		if err == nil {
			guard.disarm()
			return n, nil
		}
		if !isWouldBlock(err) && !isNotConnected(err) {
			guard.disarm()
			return n, err
		}
		guard.disarm()
		g.rs.wait(kind)
	}
}

// Close deregisters from the reactor. Safe to call more than once. Per §7,
// a GenericEvented must not outlive its Scheduler; closing one after the
// Scheduler has already shut down is a program error and panics rather
// than silently leaking the registration.
func (g *GenericEvented[E]) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if theScheduler() == nil {
		panic("corogo: GenericEvented closed with no Scheduler running")
	}
	return g.sched.reactor.deregisterFD(g.token, g.E.FD())
}

// isWouldBlock reports whether err is the standard non-blocking "try again"
// signal.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// isNotConnected folds ENOTCONN/EINPROGRESS (seen on a non-blocking socket
// mid-connect) into the same retry path as WouldBlock. This is a deliberate,
// tested choice (see evented_test.go and DESIGN.md): a real connection
// failure still surfaces because the kernel reports it as EventError/Hup on
// the same registration, not as a Go error from Read/Write.
func isNotConnected(err error) bool {
	return errors.Is(err, unix.ENOTCONN) || errors.Is(err, unix.EINPROGRESS)
}

// syncGuard implements the per-operation panic/yield discipline from §4.6:
// armed at the start of an I/O call, disarmed the moment the call either
// returns without ever parking or is about to park for the first time. If
// armed when released (meaning op panicked before the first park), it
// yields once via Sched to avoid a tight panic-retry loop monopolizing the
// worker.
type syncGuard struct {
	armed bool
}

func newSyncGuard() *syncGuard { return &syncGuard{armed: true} }

func (g *syncGuard) disarm() { g.armed = false }

func (g *syncGuard) release() {
	if g.armed {
		g.armed = false
		Sched()
	}
}
