package fiberrts

import (
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// pkgLogger is a package-level structured logger, following the teacher's
// own global-logger design (logging.go's globalLogger): logging is a
// cross-cutting concern every fiber/pool goroutine needs, and threading a
// logger reference through every constructor would bloat this package's
// config surface for no benefit over one swappable global.
var (
	loggerMu  sync.RWMutex
	pkgLogger = stumpy.L.New(stumpy.L.WithStumpy())
)

// SetLogger replaces the package-level structured logger, following the
// call shape logiface-stumpy's own example_test.go demonstrates:
// stumpy.L.New(stumpy.L.WithStumpy(options...)).
func SetLogger(l *logiface.Logger[*stumpy.Event]) {
	loggerMu.Lock()
	pkgLogger = l
	loggerMu.Unlock()
}

func getLogger() *logiface.Logger[*stumpy.Event] {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return pkgLogger
}

func logWarn(msg string, field string, value any) {
	l := getLogger()
	if l == nil {
		return
	}
	l.Warning().Str(field, fmt.Sprint(value)).Log(msg)
}

func logErr(msg string, fiberID uint64, cause string) {
	l := getLogger()
	if l == nil {
		return
	}
	l.Err().Int64("fiber_id", int64(fiberID)).Str("cause", cause).Log(msg)
}

func logInfo(msg string, fiberID uint64) {
	l := getLogger()
	if l == nil {
		return
	}
	l.Info().Int64("fiber_id", int64(fiberID)).Log(msg)
}

// defaultUnhandledHandler is the RTS's default unhandled-error handler
// (spec.md §6/§7): it logs a stack-like summary of the defect rather than
// panicking the host process. Per SPEC_FULL.md's Open Question 2, it must
// never call back into UnsafeRun synchronously (that would risk the
// reentrancy hazard spec.md §9 flags); logging itself is synchronous and
// has no effect on fiber scheduling, so it is safe to call directly from
// whichever goroutine discovered the unhandled error.
func defaultUnhandledHandler(rts *RTS, err *UnhandledError) {
	logErr("unhandled fiber termination", err.FiberID, err.Cause.String())
}
