package fiberrts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalStackPushPopOrder(t *testing.T) {
	s := newEvalStack()
	for i := 0; i < 5; i++ {
		i := i
		s.Push(stackEntry{kind: frameCont, cont: func(any) *node { return &node{t: tagPure, value: i} }})
	}
	require.Equal(t, 5, s.Len())
	for i := 4; i >= 0; i-- {
		e, ok := s.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.cont(nil).value)
	}
	_, ok := s.Pop()
	require.False(t, ok)
}

// TestEvalStackChunkOverflow exercises pushing past one chunk's capacity so
// a new chunk links below the old one, and popping back across that
// boundary unthreads it correctly — spec.md §3's "storage must be chunked".
func TestEvalStackChunkOverflow(t *testing.T) {
	s := newEvalStack()
	const n = stackChunkSize*2 + 7
	for i := 0; i < n; i++ {
		i := i
		s.Push(stackEntry{kind: frameCont, cont: func(any) *node { return &node{t: tagPure, value: i} }})
	}
	require.Equal(t, n, s.Len())
	for i := n - 1; i >= 0; i-- {
		e, ok := s.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.cont(nil).value)
	}
	require.Equal(t, 0, s.Len())
}

func TestEvalStackReset(t *testing.T) {
	s := newEvalStack()
	for i := 0; i < stackChunkSize+3; i++ {
		s.Push(stackEntry{kind: frameFinalize})
	}
	s.Reset()
	require.Equal(t, 0, s.Len())
	_, ok := s.Pop()
	require.False(t, ok)
}
