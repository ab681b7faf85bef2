package fiberrts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitResultValuePanicsWhenNotCompleted(t *testing.T) {
	r := Failed[int](errors.New("x"))
	require.Panics(t, func() { r.Value() })
}

func TestExitResultKindPredicates(t *testing.T) {
	require.True(t, Completed(1).IsCompleted())
	require.True(t, Failed[int](errors.New("x")).IsFailed())
	require.True(t, Terminated[int](InterruptedCause()).IsTerminated())
}

func TestCauseStringVariants(t *testing.T) {
	require.Equal(t, "interrupted", InterruptedCause().String())
	require.Contains(t, DefectCause("boom").String(), "boom")
	var nilCause *Cause
	require.Equal(t, "<nil cause>", nilCause.String())
}

func TestMapExitRoundTripsBoxedValue(t *testing.T) {
	boxed := boxExit(Completed(42))
	typed := mapExit[int](boxed)
	require.True(t, typed.IsCompleted())
	require.Equal(t, 42, typed.Value())
}

func TestMapExitPreservesFailureAndTermination(t *testing.T) {
	err := errors.New("e")
	failed := mapExit[int](boxExit(Failed[int](err)))
	require.True(t, failed.IsFailed())
	require.Equal(t, err, failed.Err())

	cause := DefectCause("d")
	term := mapExit[int](boxExit(Terminated[int](cause)))
	require.True(t, term.IsTerminated())
	require.Equal(t, cause, term.TerminationCause())
}
