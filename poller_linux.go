//go:build linux

package corogo

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs bounds the direct-indexed fd table; a descriptor beyond this range
// is rejected rather than silently handled through a slower map-backed path.
const maxFDs = 65536

// IOEvents is a bitset of the readiness kinds the kernel poller can report
// for one registered descriptor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Standard poller errors.
var (
	ErrFDOutOfRange        = errors.New("corogo: fd out of range (max 65535)")
	ErrFDAlreadyRegistered = errors.New("corogo: fd already registered")
	ErrFDNotRegistered     = errors.New("corogo: fd not registered")
	ErrPollerClosed        = errors.New("corogo: poller closed")
)

// IOCallback is invoked by the poller, on the reactor goroutine, when a
// registered descriptor becomes ready.
type IOCallback func(IOEvents)

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// FastPoller is the reactor's kernel poller: epoll on Linux, registered and
// polled edge-triggered-at-the-kernel-level while presenting a sticky,
// level-triggered readiness latch to callers via ReadyStates (see §4.2/§4.3
// of the component design). Exactly one goroutine (the reactor's) ever calls
// PollIO; RegisterFD/UnregisterFD/ModifyFD may be called from that same
// goroutine only, by construction of how reactor.go uses it.
type FastPoller struct { // betteralign:ignore
	_        [sizeOfCacheLine]byte
	epfd     int32 // epoll file descriptor
	_        [sizeOfCacheLine - sizeOfInt32]byte
	version  atomic.Uint64 // version counter for post-syscall staleness checks
	_        [sizeOfCacheLine - sizeOfAtomicUint64]byte
	eventBuf [256]unix.EpollEvent // preallocated epoll_wait result buffer
	fds      [maxFDs]fdInfo       // direct indexing, no map
	fdMu     sync.RWMutex         // protects fds array access
	closed   atomic.Bool
}

// Init creates the underlying epoll instance.
func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	return nil
}

// Close closes the epoll instance.
func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

// RegisterFD registers a file descriptor for the given events, invoking cb
// inline (on the reactor goroutine) whenever PollIO observes readiness.
func (p *FastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}

	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev)
	if err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{} // rollback
		p.fdMu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (p *FastPoller) UnregisterFD(fd int) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd] = fdInfo{}
	p.version.Add(1)
	p.fdMu.Unlock()

	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd].events = events
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// PollIO blocks up to timeoutMs (or indefinitely if negative) waiting for
// kernel readiness, dispatching each ready descriptor's callback inline
// before returning the event count.
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	v := p.version.Load()

	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	if p.version.Load() != v {
		// A concurrent Register/Unregister raced this call; the event
		// buffer may reference stale fds, so discard rather than dispatch
		// against a table that moved under us.
		return 0, nil
	}

	p.dispatchEvents(n)

	return n, nil
}

// dispatchEvents runs each ready fd's callback inline, on the reactor
// goroutine. The fdInfo is copied under a read lock so the callback itself
// can run unlocked even while a peer RegisterFD/UnregisterFD is in flight
// for a different fd.
func (p *FastPoller) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd >= 0 && fd < maxFDs {
			p.fdMu.RLock()
			info := p.fds[fd]
			p.fdMu.RUnlock()

			if info.active && info.callback != nil {
				events := epollToEvents(p.eventBuf[i].Events)
				info.callback(events)
			}
		}
	}
}

func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32 = unix.EPOLLET
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
