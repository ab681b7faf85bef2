package fiberrts

import "runtime"

func defaultThreadPoolSize() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// rtsConfig holds the resolved configuration for an RTS, following the
// teacher's loopOptions/LoopOption shape (options.go): a private config
// struct, a public functional-option interface, and constructor functions
// returning option values rather than exposing the config type directly.
type rtsConfig struct {
	threadPoolSize    int
	scheduledPoolSize int
	yieldMaxOpCount   int
	unhandledHandler  func(*RTS, *UnhandledError)
	metricsEnabled    bool
}

// RTSOption configures an RTS at construction time.
type RTSOption interface{ apply(*rtsConfig) }

type rtsOptionFunc func(*rtsConfig)

func (f rtsOptionFunc) apply(c *rtsConfig) { f(c) }

// WithThreadPoolSize sets the number of goroutines in the general-purpose
// worker pool fibers run on. Defaults to runtime.GOMAXPROCS(0) if unset.
func WithThreadPoolSize(n int) RTSOption {
	return rtsOptionFunc(func(c *rtsConfig) { c.threadPoolSize = n })
}

// WithScheduledPoolSize is accepted for symmetry with WithThreadPoolSize
// and stored in the resolved configuration, but New does not read it: the
// scheduled executor (pool.go) is always a single goroutine driving one
// timer heap, whatever n is.
func WithScheduledPoolSize(n int) RTSOption {
	return rtsOptionFunc(func(c *rtsConfig) { c.scheduledPoolSize = n })
}

// WithYieldMaxOpCount sets the number of interpreter steps a fiber runs
// before cooperatively yielding by resubmitting itself to the pool
// (spec.md's YieldMaxOpCount, default 2^20).
func WithYieldMaxOpCount(n int) RTSOption {
	return rtsOptionFunc(func(c *rtsConfig) { c.yieldMaxOpCount = n })
}

// WithUnhandledHandler overrides the default logging unhandled-error
// handler (logging.go).
func WithUnhandledHandler(h func(*RTS, *UnhandledError)) RTSOption {
	return rtsOptionFunc(func(c *rtsConfig) { c.unhandledHandler = h })
}

// WithMetrics toggles whether fork/completion counters are tracked;
// disabling it skips the atomic increments on the interpreter's hot path.
func WithMetrics(enabled bool) RTSOption {
	return rtsOptionFunc(func(c *rtsConfig) { c.metricsEnabled = enabled })
}

func resolveRTSConfig(opts []RTSOption) *rtsConfig {
	c := &rtsConfig{
		threadPoolSize:    defaultThreadPoolSize(),
		scheduledPoolSize: 1,
		yieldMaxOpCount:   1 << 20,
		metricsEnabled:    true,
	}
	for _, o := range opts {
		if o != nil {
			o.apply(c)
		}
	}
	if c.unhandledHandler == nil {
		c.unhandledHandler = defaultUnhandledHandler
	}
	return c
}
