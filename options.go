package taskgraph

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// graphOptions holds every resolved [Option]. Unexported: callers only
// ever see it through the functional-option constructors below and
// through the resulting *Graph.
type graphOptions struct {
	alloc      Allocator
	sched      Scheduler
	logger     *logiface.Logger[*stumpy.Event]
	metrics    *Metrics
	assertions bool
}

// Option configures a [Graph] at construction time.
type Option interface {
	apply(*graphOptions)
}

type optionFunc func(*graphOptions)

func (f optionFunc) apply(o *graphOptions) { f(o) }

// WithAllocator overrides the default sync.Pool-backed [Allocator].
func WithAllocator(a Allocator) Option {
	return optionFunc(func(o *graphOptions) { o.alloc = a })
}

// WithScheduler overrides the default [DequeScheduler].
func WithScheduler(s Scheduler) Option {
	return optionFunc(func(o *graphOptions) { o.sched = s })
}

// WithLogger attaches a structured logger, overriding the default
// stumpy-backed logger that writes JSON lines to stderr. Edge
// installations made through Graph.SetOrder are logged at debug level,
// and allocation failures in Graph.NewTask and Graph.SetOrder at error
// level; spawns and work-bypasses are not logged.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(o *graphOptions) { o.logger = l })
}

// WithMetrics attaches a [Metrics] collector.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(o *graphOptions) { o.metrics = m })
}

// WithAssertions controls panic-on-violation programming-error checks
// (double-release, missing dynamic state, and so on). Enabled by
// default, matching an assertion-enabled debug build; pass false to
// strip them for a release build once the graph's usage is trusted.
func WithAssertions(enabled bool) Option {
	return optionFunc(func(o *graphOptions) { o.assertions = enabled })
}

func resolveGraphOptions(opts []Option) graphOptions {
	o := graphOptions{assertions: true}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.alloc == nil {
		o.alloc = NewPoolAllocator()
	}
	if o.sched == nil {
		o.sched = NewDequeScheduler(defaultWorkerCount(), o.assertions)
	}
	if o.logger == nil {
		o.logger = NewDefaultLogger()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	return o
}
