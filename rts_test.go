package fiberrts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunOffloadsBlockingThunkWithoutBlockingInterpreter(t *testing.T) {
	rts := newTestRTS(t)
	result := UnsafeRunSync(rts, Run(func() int {
		time.Sleep(10 * time.Millisecond)
		return 9
	}))
	require.True(t, result.IsCompleted())
	require.Equal(t, 9, result.Value())
}

func TestRunPropagatesPanicAsTermination(t *testing.T) {
	rts := newTestRTS(t)
	result := UnsafeRunSync(rts, Run(func() int { panic("kaboom") }))
	require.True(t, result.IsTerminated())
	require.Equal(t, "kaboom", result.TerminationCause().Defect)
}

// TestAsyncRegisterEffectfulCompletedRegistrationSuspends exercises
// SPEC_FULL.md Open Question 5's first branch: a registration IO that
// itself merely Completes collapses to MaybeLater, so the fiber suspends
// until resume is called independently.
func TestAsyncRegisterEffectfulCompletedRegistrationSuspends(t *testing.T) {
	rts := newTestRTS(t)

	io := AsyncEffectful(func(resume func(ExitResult[int])) IO[Unit] {
		return Sync(func() Unit {
			go resume(Completed(11))
			return UnitValue
		})
	})

	result := UnsafeRunSync(rts, io)
	require.True(t, result.IsCompleted())
	require.Equal(t, 11, result.Value())
}

// TestAsyncRegisterEffectfulFailedRegistrationSurfacesImmediately exercises
// Open Question 5's second branch: a registration IO that itself fails
// surfaces through the ordinary Fail path without ever suspending.
func TestAsyncRegisterEffectfulFailedRegistrationSurfacesImmediately(t *testing.T) {
	rts := newTestRTS(t)

	io := AsyncEffectful(func(resume func(ExitResult[int])) IO[Unit] {
		return Fail[Unit](errors.New("registration failed"))
	})

	result := UnsafeRunSync(rts, io)
	require.True(t, result.IsFailed())
	require.EqualError(t, result.Err(), "registration failed")
}

func TestUnsafeShutdownAndWaitTimesOut(t *testing.T) {
	rts := New(WithThreadPoolSize(1))
	blocked := make(chan struct{})
	rts.pool.Submit(func() { <-blocked })

	err := rts.UnsafeShutdownAndWait(30 * time.Millisecond)
	require.ErrorIs(t, err, ErrShutdownTimeout)
	close(blocked)
}

func TestForkTopLevelIsUnsupervised(t *testing.T) {
	rts := newTestRTS(t)
	f := ForkTopLevel(rts, Pure(3))
	require.Nil(t, f.ctx.scope)
	result := UnsafeRunSync(rts, f.Await())
	require.True(t, result.IsCompleted())
	require.Equal(t, 3, result.Value().Value())
}
