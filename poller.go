// Poller registration is implemented per-platform:
//   - poller_linux.go: a real epoll-backed FastPoller.
//   - poller_other.go: a stub returning ErrUnsupportedPlatform on every
//     method, so the rest of the package builds on non-Linux GOOS without
//     pretending to support a reactor there (see DESIGN.md).
package corogo
