package fiberrts

import (
	"sync"
	"sync/atomic"
)

// FiberContext is the untyped, internal run-state of one fiber: its current
// program counter (cur), its evaluation stack, its atomic status cell, and
// the bookkeeping needed for interruption and join fanout. The generic
// Fiber[A] below is the typed handle a caller actually holds.
type FiberContext struct {
	id     uint64
	rts    *RTS
	status *Status
	stack  *evalStack

	cur *node

	// uninterruptibleDepth is read by the fiber's own worker goroutine
	// (lock-free increment/decrement) AND by interruptor goroutines
	// deciding whether a force-to-Done transition is safe while the fiber
	// is suspended in an AsyncRegion — spec.md §5's "interruptors only read
	// noInterrupt" contract, hence the atomic rather than a plain int.
	uninterruptibleDepth atomic.Int32
	canceler             func()

	// interruptCause latches the cause passed to the first interrupt() call
	// this fiber ever receives (spec.md §4.4's kill: "defect retained only
	// if none previously"); nil until the first interrupt arrives.
	interruptCause atomic.Pointer[Cause]

	opCount int

	scope      *Scope // the scope this fiber was forked into (nil for top-level)
	childScope *Scope // the scope this fiber opens for ITS OWN children, if any

	mu      sync.Mutex
	result  ExitResult[any]
	done    bool
	joiners []func(ExitResult[any])
}

var fiberIDs fiberIDGen

type fiberIDGen struct {
	mu   sync.Mutex
	next uint64
}

func (g *fiberIDGen) next_() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

func newFiberContext(rts *RTS, n *node, scope *Scope) *FiberContext {
	return &FiberContext{
		id:     fiberIDs.next_(),
		rts:    rts,
		status: newStatus(),
		stack:  newEvalStack(),
		cur:    n,
		scope:  scope,
	}
}

// complete records the fiber's final outcome, marks the status Done, and
// fans the result out to every registered joiner — the teacher's
// ChainedPromise.fanOut (promise.go) adapted to a fixed set of callbacks
// registered before settlement, since a fiber (unlike a promise) never
// needs to accept late subscribers after it races to Done without having
// been asked to join first: callers arriving after completion just read
// the cached result instead of subscribing.
func (f *FiberContext) complete(result ExitResult[any]) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.result = result
	joiners := f.joiners
	f.joiners = nil
	f.mu.Unlock()

	f.status.markDone()
	if f.scope != nil {
		f.scope.removeChild(f)
	}
	for _, j := range joiners {
		j(result)
	}
}

// onceDone either calls cb immediately with the cached result, or queues it
// to be called from complete(), depending on whether the fiber has already
// settled — this is the fanout half of §4.5's join protocol.
func (f *FiberContext) onceDone(cb func(ExitResult[any])) {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		cb(result)
		return
	}
	f.joiners = append(f.joiners, cb)
	f.mu.Unlock()
}

// latchInterruptCause records cause as this fiber's interruption cause if
// none has been latched yet — the first caller's cause wins, mirroring
// spec.md §4.4's kill: "defect retained only if none previously" — and
// returns whichever cause ends up latched. A nil cause means "plain
// interrupt, no caller-supplied defect".
func (f *FiberContext) latchInterruptCause(cause *Cause) *Cause {
	if cause == nil {
		cause = InterruptedCause()
	}
	if f.interruptCause.CompareAndSwap(nil, cause) {
		return cause
	}
	return f.interruptCause.Load()
}

// interrupt latches the interruption request (with cause, or a plain
// InterruptedCause if cause is nil) and, if the fiber is currently suspended
// in an AsyncRegion and not protected by an Uninterruptible region, forces
// it straight to Done(Terminated(cause)) itself — spec.md §4.4's kill
// transition: nothing else will ever resume a fiber parked on a callback
// that may never fire, so the interruptor must settle it directly rather
// than merely latching a flag and hoping the fiber's own worker notices. If
// the fiber is Executing, the flag is only latched: its own worker will
// synthesize the Terminate node the next time runLoop's step 1 check runs.
// If it is Uninterruptible, the flag is latched and deferred until that
// region ends, exactly as spec.md §8 invariant 2 requires.
func (f *FiberContext) interrupt(cause *Cause) {
	effective := f.latchInterruptCause(cause)
	wasAsync, alreadyDone := f.status.requestInterrupt()
	if alreadyDone || !wasAsync {
		return
	}
	if f.uninterruptibleDepth.Load() > 0 {
		return
	}
	if !f.status.tryTransition(StatusAsyncRegion, StatusDone) {
		// Lost the race: the fiber's own resume already fired, or some
		// other transition beat us to it. The latched flag (still set)
		// will be honored by the fiber's own next interpreter step.
		return
	}
	f.mu.Lock()
	c := f.canceler
	f.canceler = nil
	f.mu.Unlock()
	if c != nil {
		safeRunCanceler(f.rts, f.id, c)
	}
	f.finishInterrupted(effective)
}

// safeRunCanceler invokes c, reporting a recovered panic to the unhandled
// handler instead of letting it escape into the interrupting goroutine
// (spec.md §4.4: "host exceptions during cancel are forked through the
// unhandled handler").
func safeRunCanceler(rts *RTS, fiberID uint64, c func()) {
	defer func() {
		if r := recover(); r != nil {
			rts.reportUnhandled(fiberID, DefectCause(r))
		}
	}()
	c()
}

// finishInterrupted runs interruptStack against this fiber's own stack to
// collect and dispatch any pending finalizers uninterruptibly before the
// fiber settles Terminated(interrupted) — spec.md §4.4's "unwind the stack
// via interruptStack; if finalizers existed, fork their dispatch and notify
// joiners/killers after it finishes; else notify immediately". Since
// unwind's own frameResumeAfter bookkeeping (unwind.go) already threads the
// original interrupted signal through every intervening finalizer, this
// just needs to hand the first one to the pool and let the fiber's own
// interpreter loop carry the rest forward on its own stack.
func (f *FiberContext) finishInterrupted(cause *Cause) {
	outcome := interruptStack(f.stack, cause)
	if outcome.final != nil {
		settle(f, *outcome.final)
		return
	}
	f.uninterruptibleDepth.Add(1)
	f.cur = outcome.node
	f.rts.pool.Submit(func() { evaluate(f) })
}

// Fiber is the typed, host-facing handle to a running or completed
// computation started by Fork.
type Fiber[A any] struct{ ctx *FiberContext }

// Await builds an IO that completes with this fiber's ExitResult once it
// finishes, without blocking the interpreter thread running it.
func (f *Fiber[A]) Await() IO[ExitResult[A]] {
	return Async(func(resume func(ExitResult[ExitResult[A]])) AsyncDescriptor {
		f.ctx.onceDone(func(r ExitResult[any]) {
			resume(Completed(mapExit[A](r)))
		})
		return MaybeLater(nil)
	})
}

// Interrupt requests that the fiber stop, carrying cause (or a plain
// InterruptedCause if cause is nil), then awaits its final (now necessarily
// Terminated, unless it had already completed first) outcome.
func (f *Fiber[A]) Interrupt(cause *Cause) IO[ExitResult[A]] {
	return FlatMap(Sync(func() Unit {
		f.ctx.interrupt(cause)
		return UnitValue
	}), func(Unit) IO[ExitResult[A]] {
		return f.Await()
	})
}

// ID returns the fiber's identity, stable for its whole lifetime.
func (f *Fiber[A]) ID() uint64 { return f.ctx.id }
