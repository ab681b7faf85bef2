package fiberrts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRaceCoordinatorFirstCompletedWins exercises spec.md §4.3's base case:
// the first arrival with a Completed result wins outright.
func TestRaceCoordinatorFirstCompletedWins(t *testing.T) {
	c := &raceCoordinator{}
	require.True(t, c.arrive(Completed[any]("A")))
	require.False(t, c.arrive(Completed[any]("B")))
}

// TestRaceCoordinatorFailedThenCompletedDefersToCompletion matches §4.3's
// FirstFailed transition: a non-value arrival loses but leaves the race
// open for the other side to win.
func TestRaceCoordinatorFailedThenCompletedDefersToCompletion(t *testing.T) {
	c := &raceCoordinator{}
	require.False(t, c.arrive(Failed[any](errors.New("x"))))
	require.True(t, c.arrive(Completed[any]("B")))
}

// TestRaceCoordinatorBothFailedSecondWins matches §4.3's "FirstFailed: CAS
// to Finished; this arrival wins regardless of outcome" rule.
func TestRaceCoordinatorBothFailedSecondWins(t *testing.T) {
	c := &raceCoordinator{}
	require.False(t, c.arrive(Failed[any](errors.New("x"))))
	require.True(t, c.arrive(Failed[any](errors.New("y"))))
}

// TestRaceCoordinatorLateArrivalAfterFinishedAlwaysLoses ensures a third (or
// delayed) arrival after the race already settled never wins.
func TestRaceCoordinatorLateArrivalAfterFinishedAlwaysLoses(t *testing.T) {
	c := &raceCoordinator{}
	require.True(t, c.arrive(Completed[any]("A")))
	require.False(t, c.arrive(Completed[any]("late")))
	require.False(t, c.arrive(Terminated[any](InterruptedCause())))
}
