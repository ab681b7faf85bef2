package fiberrts

import "sync"

// frameKind distinguishes the four kinds of entries pushed onto a fiber's
// evaluation stack while interpreting a Sequence/Redeem chain.
type frameKind uint8

const (
	frameCont        frameKind = iota // func(any) *node continuation from FlatMap
	frameRedeem                       // a Redeem frame: routes success/fail/defect
	frameFinalize                     // an Ensuring finalizer to run unconditionally
	frameResumeAfter                  // marks where to resume once a finalizer above it settles
)

// signalKind is which of the three step outcomes a signal carries.
type signalKind uint8

const (
	signalValue signalKind = iota
	signalFail
	signalTerminate
)

// signal is the interpreter's notion of "what just happened": either a
// value is flowing down the stack looking for its next continuation, or a
// failure/termination is flowing down looking for a handler or finalizer.
type signal struct {
	kind  signalKind
	value any
	err   error
	cause *Cause
}

// stackEntry is one slot of the evaluation stack.
type stackEntry struct {
	kind frameKind

	cont func(any) *node

	onSuccess func(any) *node
	onFail    func(error) *node
	onDefect  func(*Cause) *node

	finalizer *node

	// frameResumeAfter: the signal to resume once the finalizer pushed
	// alongside it (run immediately above, on the same stack) completes.
	resumeSignal signal
}

const stackChunkSize = 32

// stackChunk is a fixed-size array of entries, linked to the chunk beneath
// it. This is the teacher's ChunkedIngress chunk shape (ingress.go)
// repurposed to hold evaluation-stack frames instead of queued tasks: a
// fixed array avoids a slice-growth copy on every push, and chunks that Pop
// (or Reset) empties are recycled through a sync.Pool instead of left for
// the GC.
type stackChunk struct {
	entries [stackChunkSize]stackEntry
	next    *stackChunk // the chunk below this one (toward the stack's base)
	pos     int         // next free slot in entries
}

var stackChunkPool = sync.Pool{New: func() any { return new(stackChunk) }}

func newStackChunk() *stackChunk {
	c := stackChunkPool.Get().(*stackChunk)
	return c
}

func returnStackChunk(c *stackChunk) {
	c.next = nil
	c.pos = 0
	for i := range c.entries {
		c.entries[i] = stackEntry{} // drop closures so pooling can't leak them
	}
	stackChunkPool.Put(c)
}

// evalStack is a chunked, O(1)-amortized-push/pop LIFO stack of stackEntry,
// used by a single fiber (never shared, so it needs no internal locking —
// same non-thread-safe contract as ChunkedIngress).
type evalStack struct {
	top    *stackChunk // chunk currently being written/read
	length int
}

func newEvalStack() *evalStack {
	return &evalStack{top: newStackChunk()}
}

func (s *evalStack) Len() int { return s.length }

func (s *evalStack) Push(e stackEntry) {
	if s.top.pos == stackChunkSize {
		c := newStackChunk()
		c.next = s.top
		s.top = c
	}
	s.top.entries[s.top.pos] = e
	s.top.pos++
	s.length++
}

// Pop removes and returns the top entry. ok is false on an empty stack.
func (s *evalStack) Pop() (stackEntry, bool) {
	for s.top.pos == 0 {
		if s.top.next == nil {
			return stackEntry{}, false
		}
		empty := s.top
		s.top = s.top.next
		returnStackChunk(empty)
	}
	s.top.pos--
	e := s.top.entries[s.top.pos]
	s.top.entries[s.top.pos] = stackEntry{}
	s.length--
	return e, true
}

// Reset drops all entries, recycling every chunk but the bottom one, leaving
// the stack empty and ready for reuse.
func (s *evalStack) Reset() {
	for s.top.next != nil {
		empty := s.top
		s.top = s.top.next
		returnStackChunk(empty)
	}
	s.top.pos = 0
	for i := 0; i < stackChunkSize; i++ {
		s.top.entries[i] = stackEntry{}
	}
	s.length = 0
}
