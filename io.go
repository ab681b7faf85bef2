package fiberrts

import "time"

// node is the untyped internal representation of an IO[E,A] expression.
// The public API is the generic IO[A] wrapper below; internally everything
// collapses to *node with values boxed as any, the same convention the
// teacher uses for ChainedPromise.Result (promise.go: "Result = any").
// Go generics can't express a closed recursive sum type whose branches hold
// different continuation arities, so the node set is dispatched on tag
// (tag.go) rather than modeled as one generic struct per variant.
type node struct {
	t tag

	// tagPure
	value any

	// tagLazy, tagSync, tagRun: a thunk producing a value (or panicking)
	thunk func() any

	// tagSequence: run left, then feed its value to cont to get the next node
	left *node
	cont func(any) *node

	// tagRedeem: run base; route through exactly one of the three handlers
	base      *node
	onSuccess func(any) *node
	onFail    func(error) *node
	onDefect  func(*Cause) *node

	// tagFail
	err error

	// tagTerminate: the defect/interruption being raised.
	// tagSupervise: the cause every still-running child in the opened scope
	// is interrupted with on exit (spec.md §4.1's "Supervise(io, cause)");
	// nil means "use a plain InterruptedCause".
	cause *Cause

	// tagAsyncRegister
	register func(resume func(ExitResult[any])) AsyncDescriptor

	// tagAsyncRegisterEffectful: the registration side effect is itself an IO
	registerIO func(resume func(ExitResult[any])) *node

	// tagFork, tagSupervise, tagUninterruptible, tagEnsuring: a single child IO
	body *node

	// tagRace: the other side, and the per-side finisher combinators applied
	// to whichever side wins (spec.md §3's "Race: two IOs plus left/right
	// finisher combinators"); each takes the winning value and a handle to
	// the losing side's FiberContext.
	right       *node
	finishLeft  func(any, *FiberContext) *node
	finishRight func(any, *FiberContext) *node

	// tagSuspend: build the real node lazily, for stack-safe recursion
	suspend func() *node

	// tagSleep
	duration time.Duration

	// tagEnsuring
	finalizer *node

	// tagSupervisor: builds the next node once the interpreter hands it
	// the fiber's current supervision scope
	superBody func(*Scope) *node
}

// IO[A] is the typed facade over *node. The zero value is not usable;
// construct via the package functions below.
type IO[A any] struct{ n *node }

func wrap[A any](n *node) IO[A] { return IO[A]{n: n} }

// Pure lifts a pure value into IO.
func Pure[A any](value A) IO[A] {
	return wrap[A](&node{t: tagPure, value: value})
}

// Lazy defers evaluation of a pure (non-failing) thunk until the fiber runs
// it; a panic inside thunk still surfaces as a defect (Terminated), exactly
// as Sync does — the two tags exist to document caller intent, not to
// change interpreter behavior.
func Lazy[A any](thunk func() A) IO[A] {
	return wrap[A](&node{t: tagLazy, thunk: func() any { return thunk() }})
}

// Sync lifts a synchronous effectful computation. Panics are caught by the
// interpreter and turned into a Terminated(defect) result.
func Sync[A any](thunk func() A) IO[A] {
	return wrap[A](&node{t: tagSync, thunk: func() any { return thunk() }})
}

// Fail builds an IO that fails with a typed application error (not a
// defect): the failure is expected to be handled by Redeem/Fold.
func Fail[A any](err error) IO[A] {
	return wrap[A](&node{t: tagFail, err: err})
}

// Terminate builds an IO that dies with a defect. Unlike Fail, a defect is
// never passed to a Redeem frame's onFail handler; it is passed to the
// nearest Redeem frame's onDefect handler, which may recover from it (Fold
// and Catch re-raise it). A cause with Interrupted set passes every Redeem
// frame (see unwind.go).
func Terminate[A any](cause *Cause) IO[A] {
	return wrap[A](&node{t: tagTerminate, cause: cause})
}

// FlatMap sequences io, feeding its successful result into cont to build
// the continuation. This is the Sequence node (§4.1's "sequence fast path").
func FlatMap[A, B any](io IO[A], cont func(A) IO[B]) IO[B] {
	return wrap[B](&node{
		t:    tagSequence,
		left: io.n,
		cont: func(v any) *node { return cont(v.(A)).n },
	})
}

// Map transforms io's result with f; sugar over FlatMap+Pure, matching
// spec.md's Identity/Associativity laws directly (no new node tag).
func Map[A, B any](io IO[A], f func(A) B) IO[B] {
	return FlatMap(io, func(a A) IO[B] { return Pure(f(a)) })
}

// As replaces io's result with a constant value, discarding the original.
func As[A, B any](io IO[A], value B) IO[B] {
	return Map(io, func(A) B { return value })
}

// Zip runs left then right, in that order, returning both results.
func Zip[A, B any](left IO[A], right IO[B]) IO[struct {
	Left  A
	Right B
}] {
	type pair = struct {
		Left  A
		Right B
	}
	return FlatMap(left, func(a A) IO[pair] {
		return Map(right, func(b B) pair { return pair{Left: a, Right: b} })
	})
}

// Redeem routes io's three possible outcomes to three continuations: a
// typed failure, a defect/interruption, or a success value. This is the
// primitive that Fold/Catch/error-recovery combinators desugar to.
func Redeem[A, B any](io IO[A], onFail func(error) IO[B], onDefect func(*Cause) IO[B], onSuccess func(A) IO[B]) IO[B] {
	return wrap[B](&node{
		t:         tagRedeem,
		base:      io.n,
		onSuccess: func(v any) *node { return onSuccess(v.(A)).n },
		onFail:    func(e error) *node { return onFail(e).n },
		onDefect:  func(c *Cause) *node { return onDefect(c).n },
	})
}

// Fold is Redeem restricted to typed failures and successes; defects still
// propagate unhandled (consistent with a defect not being an ordinary error).
func Fold[A, B any](io IO[A], onFail func(error) IO[B], onSuccess func(A) IO[B]) IO[B] {
	return Redeem(io, onFail, func(c *Cause) IO[B] { return Terminate[B](c) }, onSuccess)
}

// Catch recovers from a typed failure, leaving success and defects alone.
func Catch[A any](io IO[A], onFail func(error) IO[A]) IO[A] {
	return Fold(io, onFail, func(a A) IO[A] { return Pure(a) })
}

// Suspend defers construction of the next IO until the fiber is ready to
// run it, used to keep deep recursive IO-building code stack-safe.
func Suspend[A any](thunk func() IO[A]) IO[A] {
	return wrap[A](&node{t: tagSuspend, suspend: func() *node { return thunk().n }})
}

// Ensuring runs finalizer after io completes, regardless of outcome
// (success, failure, or termination); the finalizer's own outcome cannot
// change io's result: a failure or defect it raises is reported to the
// RTS's unhandled handler instead.
func Ensuring[A any](io IO[A], finalizer IO[Unit]) IO[A] {
	return wrap[A](&node{t: tagEnsuring, body: io.n, finalizer: finalizer.n})
}

// Uninterruptible marks io's region as not subject to external interruption
// until it completes.
func Uninterruptible[A any](io IO[A]) IO[A] {
	return wrap[A](&node{t: tagUninterruptible, body: io.n})
}

// Sleep builds an IO that completes after d elapses, scheduled via the
// host's scheduled executor (pool.go).
func Sleep(d time.Duration) IO[Unit] {
	return wrap[Unit](&node{t: tagSleep, duration: d})
}

// Async registers a callback-style asynchronous operation. register is
// invoked once by the interpreter; it must either return an immediate
// AsyncDescriptor (Now) or arrange to call resume later (MaybeLater).
func Async[A any](register func(resume func(ExitResult[A])) AsyncDescriptor) IO[A] {
	return wrap[A](&node{
		t: tagAsyncRegister,
		register: func(resume func(ExitResult[any])) AsyncDescriptor {
			return register(func(e ExitResult[A]) { resume(boxExit(e)) })
		},
	})
}

// AsyncEffectful is Async whose registration step is itself an effect that
// can fail or die (spec.md's "Async register effectful" variant); see
// SPEC_FULL.md's Open Question 5 for how its outcome collapses onto
// AsyncDescriptor.
func AsyncEffectful[A any](register func(resume func(ExitResult[A])) IO[Unit]) IO[A] {
	return wrap[A](&node{
		t: tagAsyncRegisterEffectful,
		registerIO: func(resume func(ExitResult[any])) *node {
			return register(func(e ExitResult[A]) { resume(boxExit(e)) }).n
		},
	})
}

// Fork starts io on a new fiber and immediately returns a handle to it,
// without waiting for it to finish.
func Fork[A any](io IO[A]) IO[*Fiber[A]] {
	// The interpreter produces an untyped *Fiber[any]; re-wrap its context
	// as *Fiber[A] so continuations receive the type they expect.
	return wrap[*Fiber[A]](&node{
		t:    tagSequence,
		left: &node{t: tagFork, body: io.n},
		cont: func(v any) *node {
			return &node{t: tagPure, value: &Fiber[A]{ctx: v.(*Fiber[any]).ctx}}
		},
	})
}

// Run offloads a blocking thunk to the host's thread pool and resumes the
// fiber asynchronously when it completes, so a long synchronous call never
// blocks the interpreter goroutine running other fibers cooperatively.
func Run[A any](thunk func() A) IO[A] {
	return wrap[A](&node{t: tagRun, thunk: func() any { return thunk() }})
}

// Race runs left and right concurrently on their own fibers and completes
// with whichever settles first; the loser keeps running (spec.md §8
// invariant 3 — no automatic cross-interruption in this version). The
// winning side's completed value is passed through its own finisher
// combinator (finishLeft for left, finishRight for right) along with a
// handle to the losing fiber, and the IO that combinator returns is what
// the race actually completes with (spec.md §3, §4.1's "the winner calls
// back with the corresponding finisher combinator applied to the completed
// value"). A winner that Failed or Terminated bypasses its finisher
// entirely and propagates as-is.
func Race[A any](left IO[A], right IO[A], finishLeft func(A, *Fiber[A]) IO[A], finishRight func(A, *Fiber[A]) IO[A]) IO[A] {
	return wrap[A](&node{
		t:     tagRace,
		left:  left.n,
		right: right.n,
		finishLeft: func(v any, loser *FiberContext) *node {
			return finishLeft(v.(A), &Fiber[A]{ctx: loser}).n
		},
		finishRight: func(v any, loser *FiberContext) *node {
			return finishRight(v.(A), &Fiber[A]{ctx: loser}).n
		},
	})
}

// Supervise runs io in a freshly opened child-fiber scope; any fiber that
// the supervising fiber itself forks while io runs is tracked in that scope
// and interrupted with cause when io exits (success, failure, or
// termination), so it cannot outlive its parent (spec.md §4.1, §4.6).
// Fibers forked by those children are not tracked in the scope. A nil cause
// interrupts children with a plain InterruptedCause.
func Supervise[A any](io IO[A], cause *Cause) IO[A] {
	return wrap[A](&node{t: tagSupervise, body: io.n, cause: cause})
}

// Supervisor exposes the current fiber's active supervision scope to body,
// letting code inspect or fork further explicitly-tracked children.
func Supervisor[A any](body func(*Scope) IO[A]) IO[A] {
	return wrap[A](&node{
		t:         tagSupervisor,
		superBody: func(s *Scope) *node { return body(s).n },
	})
}

// Unit is the type of an effect run purely for its side effects.
type Unit struct{}

// UnitValue is the single value of type Unit, for building IO[Unit] results.
var UnitValue = Unit{}
