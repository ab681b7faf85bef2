package fiberrts

// popOutcome is what popping frames off a fiber's stack against a signal
// produces: either another node to evaluate (whose own outcome gets fed
// back into unwind), or a final signal once the stack is exhausted.
type popOutcome struct {
	node  *node
	final *signal
}

// unwind pops stack frames against sig until it finds a frame that wants to
// handle it (a continuation for a value, a Redeem handler for a typed
// failure, or a finalizer for any of the three), or the stack runs out.
//
// This single function implements both of spec.md §4.2's named
// algorithms: catchError (called with a signalFail) stops at the first
// Redeem frame willing to take it; interruptStack (called with a
// signalTerminate) skips every Redeem frame's onFail but still gives a
// Redeem frame the chance to catch a non-interruption defect via onDefect
// — true interruption (cause.Interrupted) is never caught by any handler,
// only ever observed by finalizers, which always still run regardless of
// which of the three signal kinds is unwinding.
func unwind(stack *evalStack, sig signal) popOutcome {
	for {
		e, has := stack.Pop()
		if !has {
			return popOutcome{final: &sig}
		}
		switch e.kind {
		case frameCont:
			if sig.kind == signalValue {
				return popOutcome{node: e.cont(sig.value)}
			}
			// a plain continuation only ever applies to success; discard it
			// while a failure or termination is unwinding past it.

		case frameRedeem:
			switch sig.kind {
			case signalValue:
				return popOutcome{node: e.onSuccess(sig.value)}
			case signalFail:
				return popOutcome{node: e.onFail(sig.err)}
			case signalTerminate:
				if !sig.cause.Interrupted && e.onDefect != nil {
					return popOutcome{node: e.onDefect(sig.cause)}
				}
				// interruption, or no onDefect handler: keep unwinding past it
			}

		case frameFinalize:
			stack.Push(stackEntry{kind: frameResumeAfter, resumeSignal: sig})
			if sig.kind != signalValue {
				// On the Fail and Terminate paths the finalizer runs
				// uninterruptibly: a concurrent interrupt landing between
				// this return and the finalizer actually being stepped must
				// defer, not discard it. Not every Terminate is raised with
				// uninterruptibleDepth already held (a user Terminate node or
				// a panicking thunk is not), so the wrapping is applied here
				// for both kinds.
				return popOutcome{node: &node{t: tagUninterruptible, body: e.finalizer}}
			}
			return popOutcome{node: e.finalizer}

		case frameResumeAfter:
			if sig.kind == signalValue {
				// the finalizer completed successfully: resume whatever
				// outcome was pending before it ran.
				sig = e.resumeSignal
			}
			// if the finalizer itself failed or terminated, that outcome
			// shadows the one it was guarding and keeps unwinding as sig.
		}
	}
}

// catchError is the Fail-path name for unwind, kept distinct from
// interruptStack so call sites read as spec.md §4.2 describes them.
func catchError(stack *evalStack, err error) popOutcome {
	return unwind(stack, signal{kind: signalFail, err: err})
}

// interruptStack is the Terminate-path name for unwind.
func interruptStack(stack *evalStack, cause *Cause) popOutcome {
	return unwind(stack, signal{kind: signalTerminate, cause: cause})
}
