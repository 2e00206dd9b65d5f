//go:build linux

package corogo

import (
	"time"

	"golang.org/x/sys/unix"
)

// reactor owns the kernel poller, the Token→ReadyStates slab, and the timer
// wheel. Exactly one goroutine (started by Scheduler.Run) ever touches the
// slab, the timer wheel, or the poller, so none of them need their own
// synchronization; everything else reaches the reactor through msgs, an
// external-queue-then-wakeup pattern using a single message channel rather
// than separate ingress queues per caller.
type reactor struct {
	sched  *Scheduler
	poller FastPoller
	slab   *slab
	timers *timerWheel

	msgs chan reactorMsg

	wakeFd      int
	wakeWriteFd int

	done chan struct{}
}

type reactorMsg struct {
	register   *registerReq
	deregister *deregisterReq
	timer      *timerReq
	cancel     *cancelReq
}

type registerReq struct {
	fd     int
	events IOEvents
	reply  chan registerResult
}

type registerResult struct {
	token Token
	rs    *ReadyStates
	err   error
}

type deregisterReq struct {
	token Token
	fd    int
	reply chan error
}

type timerReq struct {
	when   time.Time
	handle *Handle
	fn     func()
	reply  chan TimerID
}

type cancelReq struct {
	id TimerID
}

func newReactor(s *Scheduler) (*reactor, error) {
	wakeFd, wakeWriteFd, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}

	r := &reactor{
		sched:       s,
		slab:        newSlab(),
		timers:      newTimerWheel(),
		msgs:        make(chan reactorMsg, 256),
		wakeFd:      wakeFd,
		wakeWriteFd: wakeWriteFd,
		done:        make(chan struct{}),
	}

	if err := r.poller.Init(); err != nil {
		_ = closeWakeFd(wakeFd, wakeWriteFd)
		return nil, err
	}

	if err := r.poller.RegisterFD(wakeFd, EventRead, func(IOEvents) {
		_ = drainWakeFd(wakeFd)
	}); err != nil {
		_ = r.poller.Close()
		_ = closeWakeFd(wakeFd, wakeWriteFd)
		return nil, err
	}

	return r, nil
}

// wake interrupts a blocked PollIO call; safe from any goroutine.
func (r *reactor) wake() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(r.wakeWriteFd, buf[:])
}

// registerFD registers fd for events and returns a Token plus the
// ReadyStates a waiting coroutine parks against. Safe from any goroutine;
// blocks until the reactor goroutine services the request.
func (r *reactor) registerFD(fd int, events IOEvents) (Token, *ReadyStates, error) {
	reply := make(chan registerResult, 1)
	r.msgs <- reactorMsg{register: &registerReq{fd: fd, events: events, reply: reply}}
	r.wake()
	res := <-reply
	return res.token, res.rs, res.err
}

// deregisterFD undoes registerFD.
func (r *reactor) deregisterFD(tok Token, fd int) error {
	reply := make(chan error, 1)
	r.msgs <- reactorMsg{deregister: &deregisterReq{token: tok, fd: fd, reply: reply}}
	r.wake()
	return <-reply
}

// scheduleTimer arranges for handle to be resumed (if non-nil) or fn to be
// invoked on the reactor goroutine (if non-nil) at or after when.
func (r *reactor) scheduleTimer(when time.Time, handle *Handle, fn func()) TimerID {
	reply := make(chan TimerID, 1)
	r.msgs <- reactorMsg{timer: &timerReq{when: when, handle: handle, fn: fn, reply: reply}}
	r.wake()
	return <-reply
}

// cancelTimer cancels a previously scheduled timer; safe to call even if it
// already fired.
func (r *reactor) cancelTimer(id TimerID) {
	r.msgs <- reactorMsg{cancel: &cancelReq{id: id}}
	r.wake()
}

// run is the reactor's driver loop: drain pending messages, compute a poll
// timeout from the nearest timer deadline, poll, then fire due timers. It
// exits when stop is closed.
func (r *reactor) run(stop <-chan struct{}) {
	defer close(r.done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		r.drainMsgs()

		timeoutMs := r.pollTimeout()
		if _, err := r.poller.PollIO(timeoutMs); err != nil {
			LogReactorPollError(r.sched.id, err, true)
		}

		r.fireTimers()

		select {
		case <-stop:
			return
		default:
		}
	}
}

func (r *reactor) drainMsgs() {
	for {
		select {
		case m := <-r.msgs:
			r.handleMsg(m)
		default:
			return
		}
	}
}

func (r *reactor) handleMsg(m reactorMsg) {
	switch {
	case m.register != nil:
		r.handleRegister(m.register)
	case m.deregister != nil:
		r.handleDeregister(m.deregister)
	case m.timer != nil:
		r.handleTimer(m.timer)
	case m.cancel != nil:
		if e, ok := r.timers.cancel(m.cancel.id); ok {
			LogTimerCanceled(r.sched.id, int64(e.id), time.Since(e.scheduledAt))
		}
	}
}

func (r *reactor) handleRegister(req *registerReq) {
	rs := NewReadyStates()
	tok := r.slab.insert(rs)
	err := r.poller.RegisterFD(req.fd, req.events, func(ev IOEvents) {
		r.dispatch(rs, ev)
	})
	if err != nil {
		r.slab.remove(tok)
		req.reply <- registerResult{err: err}
		return
	}
	req.reply <- registerResult{token: tok, rs: rs}
}

func (r *reactor) handleDeregister(req *deregisterReq) {
	r.slab.remove(req.token)
	req.reply <- r.poller.UnregisterFD(req.fd)
}

func (r *reactor) handleTimer(req *timerReq) {
	id := r.timers.schedule(req.when, req.handle, req.fn)
	desc := "callback"
	if req.handle != nil {
		desc = "sleep"
	}
	LogTimerScheduled(r.sched.id, int64(id), time.Until(req.when), desc)
	req.reply <- id
}

// dispatch turns a kernel readiness notification into ReadyKind bits,
// latches/wakes through rs, and pushes any woken Handles onto the global
// runqueue. Runs on the reactor goroutine, inside PollIO's dispatch call.
func (r *reactor) dispatch(rs *ReadyStates, ev IOEvents) {
	var kind ReadyKind
	if ev&EventRead != 0 {
		kind |= Readable
	}
	if ev&EventWrite != 0 {
		kind |= Writable
	}
	if ev&EventError != 0 {
		kind |= ErrorReady
	}
	if ev&EventHangup != 0 {
		kind |= Hup
	}
	if kind == 0 {
		return
	}
	for _, h := range rs.notify(kind) {
		r.sched.globalPush(h)
	}
}

// pollTimeout returns the millisecond timeout to pass to PollIO: 0 if timers
// are already due, the gap to the next deadline if one exists, or -1 (block
// indefinitely) otherwise. No coalescing sleep is added after an empty
// epoll_wait (see DESIGN.md): wake() already debounces via the eventfd, and
// coroutines parked for I/O have no other way to make progress, so an extra
// sleep would only add latency.
func (r *reactor) pollTimeout() int {
	when, ok := r.timers.nextDeadline()
	if !ok {
		return -1
	}
	d := time.Until(when)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms <= 0 {
		return 1
	}
	return int(ms)
}

// fireTimers resumes/calls every timer due by now.
func (r *reactor) fireTimers() {
	for _, e := range r.timers.popExpired(time.Now()) {
		LogTimerFired(r.sched.id, int64(e.id), time.Since(e.when))
		if e.handle != nil {
			r.sched.globalPush(e.handle)
		}
		if e.fn != nil {
			safeCall(e.fn)
		}
	}
}

func (r *reactor) close() {
	_ = r.poller.Close()
	_ = closeWakeFd(r.wakeFd, r.wakeWriteFd)
}

// safeCall runs fn with panic recovery, logging any panic rather than
// crashing the reactor goroutine.
func safeCall(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			SError("reactor", "timer callback panicked", &PanicError{Value: rec})
		}
	}()
	fn()
}

// drainWakeFd drains a specific wake eventfd; the caller passes the fd
// explicitly rather than reaching through a global reactor reference.
func drainWakeFd(fd int) error {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return nil
		}
	}
}
