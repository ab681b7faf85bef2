// Package fiberrts is a fiber-based runtime system for programs expressed as
// values of an effect description type IO[A] — a typed, composable
// alternative to writing side-effecting Go directly. Each fiber is a
// cooperatively scheduled, independently interruptible unit of work with its
// own evaluation stack, finalizer stack, and supervision state.
//
// # Architecture
//
// The runtime is a tag-dispatched interpreter ([evaluate] in interpreter.go)
// that walks IO node graphs built by the package's smart constructors
// ([Pure], [FlatMap], [Redeem], [Fork], [Race], [Async], ...). Each fiber
// owns a chunked evaluation stack (stack.go) recording pending continuations,
// Redeem handlers, and Ensuring finalizers; an atomic, CAS-driven status
// cell (status.go) coordinates join/kill/async-resume across goroutines
// without ever blocking on a lock for the hot path.
//
// An [RTS] owns the thread pool fibers run on and the scheduled executor
// backing [Sleep]. Programs are started with [UnsafeRun], [UnsafeRunSync],
// or [UnsafeRunAsync], and the RTS is torn down with
// [RTS.UnsafeShutdownAndWait].
//
// # Error Model
//
// Every fiber settles into exactly one of three outcomes ([ExitResult]):
// Completed (a value), Failed (a typed, recoverable error reachable via
// [Redeem]/[Catch]), or Terminated (an unrecoverable defect, from
// [Terminate], a host panic, or interruption). Finalizers installed with
// [Ensuring] run exactly once on every exit path, including interruption.
//
// # Concurrency
//
// [Fork] starts a child fiber without waiting for it; [Race] runs two
// fibers and resumes with whichever settles first, leaving the loser
// running (no implicit cross-interruption — see spec §8 invariant 3).
// [Supervise] opens a structured-concurrency scope: every fiber the
// supervising fiber forks while its body runs is interrupted when the body
// exits, so none of those fibers can outlive the scope that spawned it.
// Fibers forked by those children are not tracked by the scope.
package fiberrts
