package fiberrts

import "sync/atomic"

// raceState is the three-way CAS state machine spec.md §4.3 describes for
// a two-fiber race: Started, FirstFailed (one side arrived with a non-value
// outcome and is waiting to see if it's actually the loser), Finished (a
// winner has been chosen). Grounded on the teacher's JS.Race (promise.go),
// generalized from its single atomic.Bool "first settle wins" flag to a
// three-state word because spec.md additionally wants a failed side to
// defer to whichever side eventually produces a value, rather than letting
// the first side to settle at all (success or failure) win outright.
type raceState uint32

const (
	raceStarted raceState = iota
	raceFirstFailed
	raceFinished
)

// raceCoordinator runs left and right concurrently on their own forked
// fibers and resumes the parent once a winner is chosen, per the CAS
// protocol in spec.md §4.3.
type raceCoordinator struct {
	state atomic.Uint32
}

// arrive runs the CAS protocol for one side's settlement and reports
// whether this arrival is the winner.
func (c *raceCoordinator) arrive(result ExitResult[any]) (win bool) {
	for {
		old := raceState(c.state.Load())
		switch old {
		case raceFinished:
			return false
		case raceFirstFailed:
			if c.state.CompareAndSwap(uint32(old), uint32(raceFinished)) {
				return true
			}
		case raceStarted:
			if result.IsCompleted() {
				if c.state.CompareAndSwap(uint32(old), uint32(raceFinished)) {
					return true
				}
			} else {
				if c.state.CompareAndSwap(uint32(old), uint32(raceFirstFailed)) {
					return false
				}
			}
		}
	}
}

// stepRace implements the tagRace node: fork both sides, register a race
// callback on each via onceDone, and resume the parent fiber with
// whichever finisher combinator the winning side's ExitResult maps to.
// Losers are left running per spec.md §8 invariant 3 and SPEC_FULL.md Open
// Question 1 — no automatic cross-interruption in this version.
func stepRace(ctx *FiberContext, cur *node) (*node, bool) {
	leftChild := forkChild(ctx, cur.left)
	rightChild := forkChild(ctx, cur.right)

	coord := &raceCoordinator{}

	return stepAsync(ctx, func(resume func(ExitResult[any])) AsyncDescriptor {
		leftChild.onceDone(func(r ExitResult[any]) {
			if coord.arrive(r) {
				finishRaceWinner(ctx, r, cur.finishLeft, rightChild, resume)
			}
		})
		rightChild.onceDone(func(r ExitResult[any]) {
			if coord.arrive(r) {
				finishRaceWinner(ctx, r, cur.finishRight, leftChild, resume)
			}
		})
		return MaybeLater(nil)
	})
}

// finishRaceWinner applies the winning side's finisher combinator to its
// completed value (spec.md §4.1: "the winner calls back with the
// corresponding finisher combinator applied to the completed value"),
// running the resulting IO on its own fiber and forwarding its ExitResult to
// resume. A Failed or Terminated winner bypasses the finisher entirely and
// propagates directly — there is no completed value to apply it to.
func finishRaceWinner(ctx *FiberContext, r ExitResult[any], finish func(any, *FiberContext) *node, loser *FiberContext, resume func(ExitResult[any])) {
	if !r.IsCompleted() {
		resume(r)
		return
	}
	finisherChild := newFiberContext(ctx.rts, finish(r.Value(), loser), nil)
	finisherChild.onceDone(resume)
	ctx.rts.pool.Submit(func() { evaluate(finisherChild) })
}
