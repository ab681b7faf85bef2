package fiberrts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusInitialKindExecuting(t *testing.T) {
	s := newStatus()
	require.Equal(t, StatusExecuting, s.Kind())
	require.False(t, s.IsDone())
	require.False(t, s.InterruptRequested())
}

func TestStatusEnterAsyncRegionRoundTrip(t *testing.T) {
	s := newStatus()
	token, ok := s.enterAsyncRegion()
	require.True(t, ok)
	require.Equal(t, StatusAsyncRegion, s.Kind())

	// A stale token (from a previous region) must not be honored.
	require.False(t, s.enterAsyncEnd(token+1))
	require.Equal(t, StatusAsyncRegion, s.Kind())

	require.True(t, s.enterAsyncEnd(token))
	require.Equal(t, StatusExecuting, s.Kind())
}

func TestStatusEnterAsyncRegionFailsWhenNotExecuting(t *testing.T) {
	s := newStatus()
	s.markDone()
	_, ok := s.enterAsyncRegion()
	require.False(t, ok)
}

func TestStatusMarkDoneIsMonotone(t *testing.T) {
	s := newStatus()
	s.markDone()
	require.True(t, s.IsDone())
	// A second markDone (e.g. a racing caller) must not panic or revert state.
	s.markDone()
	require.True(t, s.IsDone())
}

func TestStatusRequestInterruptLatchesAndReportsAsyncRegion(t *testing.T) {
	s := newStatus()
	_, ok := s.enterAsyncRegion()
	require.True(t, ok)

	wasAsync, alreadyDone := s.requestInterrupt()
	require.True(t, wasAsync)
	require.False(t, alreadyDone)
	require.True(t, s.InterruptRequested())

	// Latched: calling again must still report interrupted, never clearing it.
	wasAsync2, alreadyDone2 := s.requestInterrupt()
	require.True(t, wasAsync2)
	require.False(t, alreadyDone2)
}

func TestStatusRequestInterruptOnDoneIsNoop(t *testing.T) {
	s := newStatus()
	s.markDone()
	wasAsync, alreadyDone := s.requestInterrupt()
	require.False(t, wasAsync)
	require.True(t, alreadyDone)
}

func TestStatusTryTransitionOnlyFromMatchingKind(t *testing.T) {
	s := newStatus()
	require.False(t, s.tryTransition(StatusAsyncRegion, StatusDone))
	require.True(t, s.tryTransition(StatusExecuting, StatusAsyncRegion))
	require.Equal(t, StatusAsyncRegion, s.Kind())
}
