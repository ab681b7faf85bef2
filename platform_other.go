//go:build !linux

package fiberrts

// poolWorkerThreadID returns -1 (no id) on non-Linux platforms: the OS thread id
// diagnostic this runtime exercises golang.org/x/sys/unix through only has
// a Linux implementation (unix.Gettid), matching the teacher's own
// per-platform fallback convention (e.g. poller_windows.go standing in for
// poller_linux.go/poller_darwin.go) rather than a full cross-platform port.
func poolWorkerThreadID() int { return -1 }
