package fiberrts

import "fmt"

// exitKind distinguishes the three ways a fiber can finish, mirroring the
// three-way settle state the teacher's ChainedPromise uses for
// pending/resolved/rejected (promise.go). Interruption has no kind of its
// own: it is an exitTerminated result whose Cause has Interrupted set.
type exitKind uint8

const (
	exitCompleted exitKind = iota
	exitFailed
	exitTerminated
)

// ExitResult is the outcome of running an IO[A] to completion: a normal
// value, a typed application failure, or a defect/interruption ("termination").
// Exactly one of the three states ever holds: constructors enforce this, and
// callers should test IsCompleted/IsFailed/IsTerminated before reading a
// field's accessor.
type ExitResult[A any] struct {
	kind  exitKind
	value A
	err   error // valid when kind == exitFailed; the typed E value, boxed
	cause *Cause
}

// Completed builds a successful ExitResult holding value.
func Completed[A any](value A) ExitResult[A] {
	return ExitResult[A]{kind: exitCompleted, value: value}
}

// Failed builds an ExitResult representing a typed application error.
func Failed[A any](err error) ExitResult[A] {
	return ExitResult[A]{kind: exitFailed, err: err}
}

// Terminated builds an ExitResult representing a defect or interruption.
func Terminated[A any](cause *Cause) ExitResult[A] {
	return ExitResult[A]{kind: exitTerminated, cause: cause}
}

func (e ExitResult[A]) IsCompleted() bool  { return e.kind == exitCompleted }
func (e ExitResult[A]) IsFailed() bool     { return e.kind == exitFailed }
func (e ExitResult[A]) IsTerminated() bool { return e.kind == exitTerminated }

// Value returns the success value; it panics if the result is not Completed,
// matching the "test the kind before reading fields" contract above.
func (e ExitResult[A]) Value() A {
	if e.kind != exitCompleted {
		panic(fmt.Sprintf("fiberrts: Value() called on non-completed ExitResult (kind=%d)", e.kind))
	}
	return e.value
}

// Err returns the typed failure error; valid only when IsFailed.
func (e ExitResult[A]) Err() error { return e.err }

// TerminationCause returns the defect/interruption cause; valid only when
// IsTerminated.
func (e ExitResult[A]) TerminationCause() *Cause { return e.cause }

// Cause describes why a fiber terminated: either it was interrupted, or it
// panicked/died to an unrecovered host exception (Defect holds the
// recovered value). An interruption carries a Defect only when the
// interrupter supplied one (InterruptedWithDefect).
type Cause struct {
	Interrupted bool
	Defect      any // always set when !Interrupted; optional when Interrupted
}

func (c *Cause) String() string {
	if c == nil {
		return "<nil cause>"
	}
	if c.Interrupted {
		return "interrupted"
	}
	return fmt.Sprintf("defect: %v", c.Defect)
}

// InterruptedCause builds a Cause representing plain fiber interruption,
// with no caller-supplied defect attached.
func InterruptedCause() *Cause { return &Cause{Interrupted: true} }

// InterruptedWithDefect builds a Cause representing fiber interruption that
// also carries a caller-supplied defect value, per spec.md §5's
// `interrupt(defect)`: "sets killed, merges defect".
func InterruptedWithDefect(defect any) *Cause {
	return &Cause{Interrupted: true, Defect: defect}
}

// DefectCause builds a Cause wrapping a recovered panic value or other
// unrecoverable host exception.
func DefectCause(v any) *Cause { return &Cause{Defect: v} }

// mapExit converts the boxed ExitResult carried internally (any-typed, see
// io.go) into a typed ExitResult[A] for the public API surface.
func mapExit[A any](e ExitResult[any]) ExitResult[A] {
	switch e.kind {
	case exitCompleted:
		v, _ := e.value.(A)
		return Completed(v)
	case exitFailed:
		return Failed[A](e.err)
	default:
		return Terminated[A](e.cause)
	}
}

func boxExit[A any](e ExitResult[A]) ExitResult[any] {
	switch e.kind {
	case exitCompleted:
		return Completed[any](e.value)
	case exitFailed:
		return Failed[any](e.err)
	default:
		return Terminated[any](e.cause)
	}
}
