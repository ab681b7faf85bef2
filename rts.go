package fiberrts

import (
	"errors"
	"time"
)

// RTS is the runtime system host: the thread pool, the scheduled executor,
// the metrics and logging collaborators, and the handful of unsafeRun*
// entry points a caller uses to actually execute an IO. Grounded on the
// teacher's Loop type (loop.go), which plays the same "own the pool(s),
// expose Run/Submit/Shutdown" role for a single-threaded event loop; an RTS
// generalizes that to a multi-worker pool running many concurrent fibers.
type RTS struct {
	config    *rtsConfig
	pool      *workerPool
	scheduler *scheduledExecutor
	metrics   *Metrics
}

// New constructs an RTS with its thread pool and scheduled executor already
// running. Callers must eventually call UnsafeShutdownAndWait.
func New(opts ...RTSOption) *RTS {
	cfg := resolveRTSConfig(opts)
	metrics := newMetrics()
	metrics.SetEnabled(cfg.metricsEnabled)
	rts := &RTS{
		config:    cfg,
		pool:      newWorkerPool(cfg.threadPoolSize, metrics),
		scheduler: newScheduledExecutor(),
		metrics:   metrics,
	}
	return rts
}

// Metrics returns a snapshot of the RTS's fiber counters.
func (r *RTS) Metrics() Snapshot { return r.metrics.Snapshot() }

// reportUnhandled dispatches cause to the configured unhandled handler.
// Per SPEC_FULL.md Open Question 2, the default handler (logging.go) never
// calls back into UnsafeRun synchronously, so this call never risks the
// pool-thread starvation spec.md §9 warns a naive synchronous re-entry
// would cause.
func (r *RTS) reportUnhandled(fiberID uint64, cause *Cause) {
	if cause == nil {
		return
	}
	if cause.Interrupted {
		// Interruption is an expected, requested outcome, not a surprise
		// worth reporting to the unhandled handler.
		return
	}
	r.config.unhandledHandler(r, &UnhandledError{FiberID: fiberID, Cause: cause})
}

// forkTopLevel starts n on a brand-new, unsupervised fiber and returns its
// context, used by every unsafeRun* entry point and by the "lift a pure
// canceler into a host-callable canceler on a fresh top-level fiber"
// requirement of spec.md §4.1's Async register branch (see
// runTopLevelCanceler below).
func (r *RTS) forkTopLevel(n *node) *FiberContext {
	ctx := newFiberContext(r, n, nil)
	r.metrics.recordFork()
	r.pool.Submit(func() { evaluate(ctx) })
	return ctx
}

// ForkTopLevel starts io on a new, top-level (unsupervised) fiber and
// returns a handle to it without blocking.
func ForkTopLevel[A any](r *RTS, io IO[A]) *Fiber[A] {
	return &Fiber[A]{ctx: r.forkTopLevel(io.n)}
}

// runTopLevelCanceler lifts a pure (non-async) cancellation effect into a
// host-callable func(), running it on a fresh top-level fiber and reporting
// any failure/defect to the unhandled handler — this is spec.md §4.1's
// "MaybeLaterIO: lift the pure canceler into a host-callable canceler on a
// fresh top-level fiber" requirement.
func (r *RTS) runTopLevelCanceler(io IO[Unit]) func() {
	return func() {
		ctx := r.forkTopLevel(io.n)
		ctx.onceDone(func(result ExitResult[any]) {
			if result.IsFailed() {
				r.reportUnhandled(ctx.id, &Cause{Defect: result.Err()})
			} else if result.IsTerminated() {
				r.reportUnhandled(ctx.id, result.TerminationCause())
			}
		})
	}
}

// UnsafeRun blocks the calling goroutine until io completes, returning the
// success value. A typed failure is returned wrapped as *UnhandledError.
// A termination never panics; it is returned as an error: *InterruptedError
// for an interruption, the defect itself when it is an error, and otherwise
// an *UnhandledError carrying the cause (spec.md §6).
func UnsafeRun[A any](r *RTS, io IO[A]) (A, error) {
	result := UnsafeRunSync(r, io)
	switch {
	case result.IsCompleted():
		return result.Value(), nil
	case result.IsFailed():
		var zero A
		return zero, &UnhandledError{Cause: &Cause{Defect: result.Err()}, Message: "typed failure"}
	default:
		var zero A
		cause := result.TerminationCause()
		if cause != nil && cause.Interrupted {
			return zero, &InterruptedError{}
		}
		if cause != nil {
			if err, ok := cause.Defect.(error); ok {
				return zero, err
			}
		}
		return zero, &UnhandledError{Cause: cause, Message: "defect"}
	}
}

// UnsafeRunSync blocks the calling goroutine until io completes and returns
// its raw ExitResult, without wrapping or unwrapping anything.
func UnsafeRunSync[A any](r *RTS, io IO[A]) ExitResult[A] {
	ch := make(chan ExitResult[any], 1)
	ctx := r.forkTopLevel(io.n)
	ctx.onceDone(func(result ExitResult[any]) { ch <- result })
	return mapExit[A](<-ch)
}

// UnsafeRunAsync is the non-blocking entry point: it forks io and delivers
// its ExitResult to k on a pool goroutine (or immediately from the calling
// goroutine if the fiber happens to have already completed synchronously,
// matching onceDone's "fire immediately if Done" contract).
func UnsafeRunAsync[A any](r *RTS, io IO[A], k func(ExitResult[A])) {
	ctx := r.forkTopLevel(io.n)
	ctx.onceDone(func(result ExitResult[any]) { k(mapExit[A](result)) })
}

// ErrShutdownTimeout is returned by UnsafeShutdownAndWait when the pools do
// not finish draining within the given timeout.
var ErrShutdownTimeout = errors.New("fiberrts: shutdown timed out")

// UnsafeShutdownAndWait shuts down both the worker pool and the scheduled
// executor, waiting up to timeout for in-flight tasks to drain.
func (r *RTS) UnsafeShutdownAndWait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.scheduler.Shutdown()
		r.pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
