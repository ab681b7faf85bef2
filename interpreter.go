package fiberrts

import "sync/atomic"

// evaluate runs ctx's interpreter loop until it either settles the fiber,
// suspends waiting on an async registration, or yields by resubmitting
// itself to the pool (spec.md §4.1). This is the tag-dispatched evaluator:
// a single local variable cur walks the IO node graph, the same "hoist the
// tag into a local to aid branch prediction" shape §9's design notes call
// for, grounded on the teacher's own tick()/runFastPath() step-budget loop
// (loop.go) generalized from one shared event queue to one stack per fiber.
func evaluate(ctx *FiberContext) {
	defer func() {
		if r := recover(); r != nil {
			// A host exception escaped the interpreter's own inline guards:
			// thunks and registration functions are wrapped below, but
			// continuations and Redeem handlers are called unguarded, so a
			// panic in one of them lands here; treat it as any other defect
			// rather than taking the whole pool worker down with it.
			ctx.uninterruptibleDepth.Add(1)
			runLoop(ctx, &node{t: tagTerminate, cause: DefectCause(r)})
		}
	}()
	runLoop(ctx, ctx.cur)
}

// runLoop is the body of evaluate, factored out so the panic-recovery defer
// above can re-enter it once with a synthesized Terminate node.
func runLoop(ctx *FiberContext, start *node) {
	cur := start
	rts := ctx.rts

	for {
		// Step 1: die if killed and not protected, forcing uninterruptibility
		// so the Terminate we synthesize here can't itself be interrupted
		// again mid-unwind.
		if ctx.uninterruptibleDepth.Load() == 0 && ctx.status.InterruptRequested() && cur.t != tagTerminate {
			ctx.uninterruptibleDepth.Add(1)
			// The flag only ever gets latched alongside a cause (see
			// interrupt()), so this always returns the caller-supplied
			// defect (or a plain InterruptedCause) rather than discarding
			// it in favor of a generic one.
			cur = &node{t: tagTerminate, cause: ctx.latchInterruptCause(nil)}
		}

		// Step 2: cooperative yield.
		ctx.opCount++
		if ctx.opCount >= rts.config.yieldMaxOpCount {
			ctx.opCount = 0
			ctx.cur = cur
			rts.pool.Submit(func() { evaluate(ctx) })
			return
		}

		next, suspended := step(ctx, cur)
		if suspended {
			return
		}
		if next == nil {
			// The fiber settled; step() already called ctx.complete.
			return
		}
		cur = next
	}
}

// step dispatches a single IO node. It returns the next node to evaluate,
// or (nil, false) once the fiber has settled, or (nil, true) once the
// fiber has suspended waiting on an async callback or a forked child.
func step(ctx *FiberContext, cur *node) (next *node, suspended bool) {
	switch cur.t {
	case tagPure:
		return valueSignal(ctx, cur.value)

	case tagLazy, tagSync:
		v, sig, ok := safeCall(cur.thunk)
		if !ok {
			return resolveSignal(ctx, sig)
		}
		return valueSignal(ctx, v)

	case tagSequence:
		// Sequence fast path (§4.1): inline Pure/Lazy/Sync instead of
		// pushing a continuation frame, eliminating heap churn on the hot
		// path of a deep FlatMap chain.
		switch cur.left.t {
		case tagPure:
			return cur.cont(cur.left.value), false
		case tagLazy, tagSync:
			v, sig, ok := safeCall(cur.left.thunk)
			if !ok {
				return resolveSignal(ctx, sig)
			}
			return cur.cont(v), false
		default:
			ctx.stack.Push(stackEntry{kind: frameCont, cont: cur.cont})
			return cur.left, false
		}

	case tagRedeem:
		ctx.stack.Push(stackEntry{
			kind:      frameRedeem,
			onSuccess: cur.onSuccess,
			onFail:    cur.onFail,
			onDefect:  cur.onDefect,
		})
		return cur.base, false

	case tagFail:
		return resolveSignal(ctx, signal{kind: signalFail, err: cur.err})

	case tagTerminate:
		return resolveSignal(ctx, signal{kind: signalTerminate, cause: cur.cause})

	case tagSuspend:
		built, sig, ok := safeCallNode(cur.suspend)
		if !ok {
			return resolveSignal(ctx, sig)
		}
		return built, false

	case tagEnsuring:
		// A failure or defect raised by the finalizer is reported to the
		// unhandled handler and replaced by Unit, so it never changes the
		// guarded body's outcome.
		report := func(c *Cause) *node {
			ctx.rts.reportUnhandled(ctx.id, c)
			return &node{t: tagPure, value: UnitValue}
		}
		ctx.stack.Push(stackEntry{kind: frameFinalize, finalizer: &node{
			t:         tagRedeem,
			base:      cur.finalizer,
			onSuccess: func(v any) *node { return &node{t: tagPure, value: v} },
			onFail:    func(err error) *node { return report(&Cause{Defect: err}) },
			onDefect:  report,
		}})
		return cur.body, false

	case tagUninterruptible:
		// The depth decrement must run on every exit path (success,
		// failure, or termination), not just success, so it is installed
		// as a finalizer rather than a plain success continuation —
		// otherwise a failing body would leak the increment and the
		// region would stay uninterruptible forever.
		ctx.uninterruptibleDepth.Add(1)
		ctx.stack.Push(stackEntry{kind: frameFinalize, finalizer: &node{
			t: tagSync,
			thunk: func() any {
				ctx.uninterruptibleDepth.Add(-1)
				return UnitValue
			},
		}})
		return cur.body, false

	case tagSleep:
		return stepAsync(ctx, func(resume func(ExitResult[any])) AsyncDescriptor {
			cancel := ctx.rts.scheduler.ScheduleCancelable(cur.duration, func() {
				resume(Completed[any](UnitValue))
			})
			return MaybeLater(cancel)
		})

	case tagAsyncRegister:
		return stepAsync(ctx, cur.register)

	case tagAsyncRegisterEffectful:
		return stepAsyncEffectful(ctx, cur.registerIO)

	case tagFork:
		child := forkChild(ctx, cur.body)
		return valueSignal(ctx, &Fiber[any]{ctx: child})

	case tagRun:
		return stepAsync(ctx, func(resume func(ExitResult[any])) AsyncDescriptor {
			ctx.rts.pool.Submit(func() {
				v, sig, ok := safeCall(cur.thunk)
				if !ok {
					resume(sig.toExitAny())
					return
				}
				resume(Completed[any](v))
			})
			return MaybeLater(nil)
		})

	case tagRace:
		return stepRace(ctx, cur)

	case tagSupervise:
		parent := ctx.childScope
		scope := newScope()
		ctx.childScope = scope
		cause := cur.cause
		if cause == nil {
			cause = InterruptedCause()
		}
		// Installed as a finalizer (like tagUninterruptible's decrement) so
		// the scope's children are interrupted and the parent scope is
		// restored on every exit path of the body, not only on success.
		ctx.stack.Push(stackEntry{kind: frameFinalize, finalizer: &node{
			t: tagSync,
			thunk: func() any {
				scope.interruptAll(cause)
				ctx.childScope = parent
				return UnitValue
			},
		}})
		return cur.body, false

	case tagSupervisor:
		return cur.superBody(ctx.childScope), false

	default:
		return resolveSignal(ctx, signal{kind: signalTerminate, cause: DefectCause(unknownTagPanic(cur.t))})
	}
}

type unknownTagPanic tag

// valueSignal feeds a successful value down the stack, either into the next
// continuation or, if the stack is empty, as the fiber's final result.
func valueSignal(ctx *FiberContext, v any) (*node, bool) {
	return resolveSignal(ctx, signal{kind: signalValue, value: v})
}

// resolveSignal is the shared tail of every node kind that produces a
// value, failure, or termination: it unwinds the stack against sig and
// either continues with the node the unwind found, or settles the fiber.
func resolveSignal(ctx *FiberContext, sig signal) (*node, bool) {
	outcome := unwind(ctx.stack, sig)
	if outcome.node != nil {
		return outcome.node, false
	}
	settle(ctx, *outcome.final)
	return nil, false
}

// settle finalizes the fiber once the stack has been exhausted: it reports
// an unhandled typed failure or an unhandled defect through the RTS's
// handler, updates metrics, and marks the fiber Done.
func settle(ctx *FiberContext, sig signal) {
	var result ExitResult[any]
	switch sig.kind {
	case signalValue:
		result = Completed[any](sig.value)
		ctx.rts.metrics.recordCompleted()
	case signalFail:
		result = Failed[any](sig.err)
		ctx.rts.metrics.recordFailed()
		ctx.rts.reportUnhandled(ctx.id, &Cause{Defect: sig.err})
	case signalTerminate:
		result = Terminated[any](sig.cause)
		ctx.rts.metrics.recordTerminated()
		ctx.rts.reportUnhandled(ctx.id, sig.cause)
	}
	ctx.complete(result)
}

// toExitAny converts a signal into the boxed ExitResult an async callback
// carries, used by tagRun to report a panicking thunk back to its waiter.
func (s signal) toExitAny() ExitResult[any] {
	switch s.kind {
	case signalFail:
		return Failed[any](s.err)
	case signalTerminate:
		return Terminated[any](s.cause)
	default:
		return Completed[any](s.value)
	}
}

// safeCall invokes thunk, recovering a panic into a termination signal
// instead of letting it cross into the interpreter's own call frames.
func safeCall(thunk func() any) (v any, sig signal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			sig = signal{kind: signalTerminate, cause: DefectCause(r)}
		}
	}()
	return thunk(), signal{}, true
}

// safeCallNode is safeCall specialized for thunks producing *node (Suspend).
func safeCallNode(thunk func() *node) (n *node, sig signal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			sig = signal{kind: signalTerminate, cause: DefectCause(r)}
		}
	}()
	return thunk(), signal{}, true
}

// forkChild allocates, registers, and starts a new fiber running body,
// returning its context. If ctx currently has an open supervision scope
// (from an enclosing Supervise), the child is tracked there so it is
// interrupted when that scope exits (spec.md §4.6).
func forkChild(ctx *FiberContext, body *node) *FiberContext {
	scope := ctx.childScope
	child := newFiberContext(ctx.rts, body, scope)
	if scope != nil {
		scope.addChild(child)
	}
	ctx.rts.metrics.recordFork()
	ctx.rts.pool.Submit(func() { evaluate(child) })
	return child
}

// stepAsync implements spec.md §4.1's Async register branch: it enters an
// async region, invokes register once with a resume callback, and dispatches
// on the returned descriptor. A Now result is injected immediately, unless
// resume already fired from another goroutine during registration: both
// paths claim the same countOnce latch, so only one of them drives the fiber
// on. A MaybeLater result records the canceler and suspends the fiber, to be
// woken later by the resume callback calling back into the pool.
func stepAsync(ctx *FiberContext, register func(resume func(ExitResult[any])) AsyncDescriptor) (*node, bool) {
	token, ok := ctx.status.enterAsyncRegion()
	if !ok {
		// The fiber raced to Done (e.g. concurrent interruption already
		// settled it) before this registration could even begin; treat the
		// registration as never having happened.
		return nil, true
	}
	ctx.rts.metrics.recordAsyncSuspend()

	resumed := make(chan struct{}, 1)
	var once countOnce
	resume := func(result ExitResult[any]) {
		if !once.claim() {
			return
		}
		if !ctx.status.enterAsyncEnd(token) {
			// Stale: the fiber already settled (interrupted) before this
			// callback fired. Per SPEC_FULL.md Open Question 4 this is a
			// documented no-op.
			return
		}
		select {
		case resumed <- struct{}{}:
		default:
		}
		ctx.mu.Lock()
		ctx.canceler = nil
		ctx.mu.Unlock()
		ctx.cur = signalToNode(result)
		// Always resubmit to the pool rather than resuming inline on
		// whatever goroutine called resume — see DESIGN.md's Open Question
		// decision on MaxResumptionDepth: this deliberately forgoes the
		// spec's bounded-inline-resumption fast path in favor of a single,
		// uniformly safe resumption strategy with no unbounded-recursion
		// risk to reason about.
		ctx.rts.pool.Submit(func() { evaluate(ctx) })
	}

	desc, sig, ok := safeCallDescriptor(register, resume)
	if !ok {
		ctx.status.enterAsyncEnd(token)
		return resolveSignal(ctx, sig)
	}
	if desc.IsNow() {
		if once.claim() {
			ctx.status.enterAsyncEnd(token)
			return signalToNode(desc.Result()), false
		}
		// resume() already fired concurrently (e.g. the registration
		// function spawned a goroutine that called resume before
		// returning); the resume path owns continuation from here.
		return nil, true
	}

	ctx.mu.Lock()
	ctx.canceler = desc.Canceler()
	ctx.mu.Unlock()
	return nil, true
}

// stepAsyncEffectful implements the Async register effectful variant: the
// registration step is itself an IO[Unit] rather than a plain Go function.
// Per SPEC_FULL.md Open Question 5, its own ExitResult collapses onto an
// AsyncDescriptor: Completed becomes MaybeLater(nil) (the registration
// merely arranged for resume to be called later), while Failed/Terminated
// surface immediately through Now so the registration's own failure isn't
// silently swallowed.
func stepAsyncEffectful(ctx *FiberContext, registerIO func(resume func(ExitResult[any])) *node) (*node, bool) {
	return stepAsync(ctx, func(resume func(ExitResult[any])) AsyncDescriptor {
		regNode := registerIO(resume)
		child := newFiberContext(ctx.rts, regNode, nil)
		resultCh := make(chan ExitResult[any], 1)
		child.onceDone(func(r ExitResult[any]) { resultCh <- r })
		evaluate(child)
		r := <-resultCh
		switch {
		case r.IsCompleted():
			return MaybeLater(nil)
		default:
			return Now(r)
		}
	})
}

// safeCallDescriptor invokes register, recovering a panic into a
// termination signal.
func safeCallDescriptor(register func(func(ExitResult[any])) AsyncDescriptor, resume func(ExitResult[any])) (d AsyncDescriptor, sig signal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			sig = signal{kind: signalTerminate, cause: DefectCause(r)}
		}
	}()
	return register(resume), signal{}, true
}

// signalToNode converts a boxed ExitResult arriving from an async resume
// callback back into a node the interpreter can continue stepping.
func signalToNode(r ExitResult[any]) *node {
	switch {
	case r.IsCompleted():
		return &node{t: tagPure, value: r.Value()}
	case r.IsFailed():
		return &node{t: tagFail, err: r.Err()}
	default:
		return &node{t: tagTerminate, cause: r.TerminationCause()}
	}
}

// countOnce is a tiny CAS-guarded single-fire latch, used so a resume
// callback and an immediate Now result can never both drive the same fiber
// forward (mirrors shouldResumeAsync's "at most one resumer proceeds"
// guarantee from spec.md §5).
type countOnce struct{ fired atomic.Bool }

func (o *countOnce) claim() bool {
	return o.fired.CompareAndSwap(false, true)
}
