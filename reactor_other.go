//go:build !linux

package corogo

import "time"

// reactor is an unimplemented stand-in on non-Linux platforms; see
// poller_other.go and DESIGN.md. newReactor fails fast so NewScheduler
// returns ErrUnsupportedPlatform instead of leaving half a runtime running,
// which is why every method below is unreachable in practice.
type reactor struct{}

func newReactor(s *Scheduler) (*reactor, error) {
	return nil, ErrUnsupportedPlatform
}

func (r *reactor) run(stop <-chan struct{})                                 {}
func (r *reactor) wake()                                                    {}
func (r *reactor) registerFD(fd int, events IOEvents) (Token, *ReadyStates, error) {
	return 0, nil, ErrUnsupportedPlatform
}
func (r *reactor) deregisterFD(tok Token, fd int) error { return ErrUnsupportedPlatform }
func (r *reactor) scheduleTimer(when time.Time, handle *Handle, fn func()) TimerID {
	return 0
}
func (r *reactor) cancelTimer(id TimerID) {}
func (r *reactor) close()                 {}
