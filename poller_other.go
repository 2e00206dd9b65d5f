//go:build !linux

package corogo

import "errors"

// ErrUnsupportedPlatform is returned by FastPoller.Init on platforms other
// than Linux. The reactor's edge-triggered registration/dispatch contract
// (§4.3) is specified against epoll; porting it to kqueue (darwin/bsd) or
// IOCP (windows) needs a different completion-vs-readiness event model and
// is future work, not silently stubbed out — see DESIGN.md.
var ErrUnsupportedPlatform = errors.New("corogo: reactor poller not implemented on this platform")

// IOEvents is a bitset of readiness kinds; kept so code that imports corogo
// on a non-Linux GOOS still compiles, even though the reactor cannot run.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

type IOCallback func(IOEvents)

// FastPoller is an unimplemented stand-in on non-Linux platforms; every
// method returns ErrUnsupportedPlatform.
type FastPoller struct{}

func (p *FastPoller) Init() error                                     { return ErrUnsupportedPlatform }
func (p *FastPoller) Close() error                                    { return ErrUnsupportedPlatform }
func (p *FastPoller) RegisterFD(int, IOEvents, IOCallback) error      { return ErrUnsupportedPlatform }
func (p *FastPoller) UnregisterFD(int) error                          { return ErrUnsupportedPlatform }
func (p *FastPoller) ModifyFD(int, IOEvents) error                    { return ErrUnsupportedPlatform }
func (p *FastPoller) PollIO(int) (int, error)                         { return 0, ErrUnsupportedPlatform }

func createWakeFd(uint, int) (int, int, error) { return -1, -1, ErrUnsupportedPlatform }
func closeWakeFd(int, int) error               { return nil }
