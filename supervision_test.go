package fiberrts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeAddAndRemoveChild(t *testing.T) {
	scope := newScope()
	rts := &RTS{metrics: newMetrics()}
	ctx := newFiberContext(rts, &node{t: tagPure, value: 1}, scope)

	scope.addChild(ctx)
	require.Equal(t, 1, scope.ChildCount())

	scope.removeChild(ctx)
	require.Equal(t, 0, scope.ChildCount())
}

func TestScopeInterruptAllOnlyTouchesLiveChildren(t *testing.T) {
	scope := newScope()
	rts := &RTS{metrics: newMetrics()}

	live := newFiberContext(rts, &node{t: tagPure, value: 1}, scope)
	scope.addChild(live)

	// Created without a scope so complete() does not unlink it: it stays in
	// the scope's map and only interruptAll's live filter can skip it.
	done := newFiberContext(rts, &node{t: tagPure, value: 2}, nil)
	scope.addChild(done)
	done.complete(Completed[any](2))

	scope.interruptAll(InterruptedWithDefect("scope"))

	require.True(t, live.status.InterruptRequested())
	require.Equal(t, "scope", live.interruptCause.Load().Defect)
	// The already-done child must not be touched: interrupt() would have
	// latched a cause on it, so a nil cause proves the live filter skipped it.
	require.True(t, done.status.IsDone())
	require.Nil(t, done.interruptCause.Load())
}

func TestScopeScavengeDropsDeadEntries(t *testing.T) {
	scope := newScope()
	rts := &RTS{metrics: newMetrics()}
	// Created without a scope so complete() does not unlink it; only
	// Scavenge can drop the entry.
	ctx := newFiberContext(rts, &node{t: tagPure, value: 1}, nil)
	scope.addChild(ctx)
	ctx.complete(Completed[any](1))
	require.Equal(t, 1, scope.ChildCount())

	scope.Scavenge(10)
	require.Equal(t, 0, scope.ChildCount())
}
