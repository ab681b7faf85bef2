//go:build linux

package fiberrts

import "golang.org/x/sys/unix"

// poolWorkerThreadID returns the OS thread id a pool worker goroutine is
// currently running on, for worker diagnostics/logging. Grounded on the
// teacher's platform-specific poller split (poller_linux.go/poller_darwin.go):
// here the same per-platform build-tag shape carries a narrower concern,
// since this runtime has no FD readiness polling to bind x/sys's epoll
// support to (see SPEC_FULL.md's Domain Stack section).
func poolWorkerThreadID() int {
	return unix.Gettid()
}
