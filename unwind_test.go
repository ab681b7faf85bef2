package fiberrts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwindCatchErrorStopsAtRedeemFrame(t *testing.T) {
	s := newEvalStack()
	s.Push(stackEntry{kind: frameCont, cont: func(any) *node { t.Fatal("should not run: failure must skip plain continuations"); return nil }})
	s.Push(stackEntry{kind: frameRedeem, onFail: func(err error) *node { return &node{t: tagPure, value: "caught:" + err.Error()} }})

	outcome := catchError(s, errors.New("boom"))
	require.NotNil(t, outcome.node)
	require.Equal(t, "caught:boom", outcome.node.value)
}

func TestUnwindCatchErrorEmptyStackMeansUncaught(t *testing.T) {
	s := newEvalStack()
	outcome := catchError(s, errors.New("boom"))
	require.Nil(t, outcome.node)
	require.NotNil(t, outcome.final)
	require.Equal(t, signalFail, outcome.final.kind)
}

func TestUnwindCollectsFinalizerBeforeHandler(t *testing.T) {
	s := newEvalStack()
	var order []string
	s.Push(stackEntry{kind: frameRedeem, onFail: func(error) *node {
		order = append(order, "handler")
		return &node{t: tagPure, value: "handled"}
	}})
	s.Push(stackEntry{kind: frameFinalize, finalizer: &node{t: tagSync, thunk: func() any {
		order = append(order, "finalizer")
		return UnitValue
	}}})

	outcome := catchError(s, errors.New("x"))
	require.NotNil(t, outcome.node)
	// On the Fail path the finalizer comes back wrapped uninterruptibly.
	require.Equal(t, tagUninterruptible, outcome.node.t)
	require.Equal(t, tagSync, outcome.node.body.t)

	// Simulate the interpreter running the finalizer and feeding its
	// success value back through the stack.
	v := outcome.node.body.thunk()
	require.Equal(t, UnitValue, v)

	next := unwind(s, signal{kind: signalValue, value: v})
	require.NotNil(t, next.node)
	require.Equal(t, "handled", next.node.value)
	require.Equal(t, []string{"finalizer", "handler"}, order)
}

func TestInterruptStackSkipsErrorHandlersButHonorsDefectHandler(t *testing.T) {
	s := newEvalStack()
	var sawDefect bool
	s.Push(stackEntry{
		kind:     frameRedeem,
		onFail:   func(error) *node { t.Fatal("onFail must not run for a termination"); return nil },
		onDefect: func(c *Cause) *node { sawDefect = true; return &node{t: tagPure, value: "recovered"} },
	})

	outcome := interruptStack(s, DefectCause("boom"))
	require.NotNil(t, outcome.node)
	require.True(t, sawDefect)
	require.Equal(t, "recovered", outcome.node.value)
}

func TestInterruptStackNeverCaughtWhenInterrupted(t *testing.T) {
	s := newEvalStack()
	s.Push(stackEntry{
		kind:     frameRedeem,
		onDefect: func(*Cause) *node { t.Fatal("true interruption must bypass onDefect too"); return nil },
	})
	outcome := interruptStack(s, InterruptedCause())
	require.Nil(t, outcome.node)
	require.NotNil(t, outcome.final)
	require.Equal(t, signalTerminate, outcome.final.kind)
	require.True(t, outcome.final.cause.Interrupted)
}
