package core

import "time"

// loopConfig holds the resolved configuration for a new Loop.
type loopConfig struct {
	logger           Logger
	executorSize     int
	executorKeep     int
	acceptBackoff    time.Duration
	strictMicrotasks bool
}

// Option configures a Loop at construction time, grounded on the functional
// options pattern in eventloop/options.go.
type Option func(*loopConfig)

// WithLogger sets the structured logger the loop uses for its ambient
// diagnostics. If omitted, a stumpy-backed default writing to stderr is used.
func WithLogger(logger Logger) Option {
	return func(c *loopConfig) { c.logger = logger }
}

// WithExecutorSize sets the number of worker goroutines in the loop's
// thread-pool executor (spec.md §5, "Executor").
func WithExecutorSize(n int) Option {
	return func(c *loopConfig) {
		if n > 0 {
			c.executorSize = n
		}
	}
}

// WithExecutorKeepAlive sets the minimum number of executor workers retained
// across idle periods (spec.md §5, "a minimum 'keep' count of workers is
// retained across idle periods").
func WithExecutorKeepAlive(n int) Option {
	return func(c *loopConfig) {
		if n >= 0 {
			c.executorKeep = n
		}
	}
}

// WithAcceptBackoff sets the delay the selector waits before retrying a
// listening fd after EMFILE/ENFILE/ENOBUFS/ENOMEM (spec.md §4.1, "Failure
// semantics"). The spec'd default is one second.
func WithAcceptBackoff(d time.Duration) Option {
	return func(c *loopConfig) {
		if d > 0 {
			c.acceptBackoff = d
		}
	}
}

// WithStrictMicrotaskOrdering records a strict-microtask-ordering flag in
// the loop's configuration; grounded on eventloop/options.go's
// WithStrictMicrotaskOrdering. The Loop has no microtask queue and never
// reads the flag, so it does not change dispatch order.
func WithStrictMicrotaskOrdering(enabled bool) Option {
	return func(c *loopConfig) { c.strictMicrotasks = enabled }
}

func resolveOptions(opts []Option) *loopConfig {
	cfg := &loopConfig{
		executorSize:  8,
		executorKeep:  2,
		acceptBackoff: time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg
}
