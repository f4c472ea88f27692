package taskgraph

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Graph is the entry point: it owns an [Allocator], a [Scheduler], a
// logger, and a [Metrics] collector, and exposes the operations needed
// to build a dependency graph of tasks and submit it for execution.
// A zero Graph is not usable; construct one with [New].
type Graph struct {
	opts graphOptions
	seq  atomic.Int64
}

// New constructs a Graph, resolving every [Option] against sensible
// defaults: a sync.Pool-backed allocator, a work-stealing deque
// scheduler sized to GOMAXPROCS, a stumpy-backed logger, and a fresh
// Metrics collector.
func New(opts ...Option) *Graph {
	return &Graph{opts: resolveGraphOptions(opts)}
}

func defaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// NewTask allocates a task bound to fn, ctx, and wait, and returns a
// unique-ownership handle to it. wait may be nil, in which case the
// task's completion is not reported to any wait tree.
func (g *Graph) NewTask(fn Fn, ctx context.Context, wait WaitTreeVertex) (TaskHandle, error) {
	t, err := g.opts.alloc.NewTask()
	if err != nil {
		g.opts.metrics.recordAllocError()
		g.logAllocError(err)
		return TaskHandle{}, wrapAllocErr(err)
	}
	t.Fn = fn
	t.Ctx = ctx
	t.Wait = wait
	t.alloc = g.opts.alloc
	t.sched = g.opts.sched
	t.metrics = g.opts.metrics

	if t.Wait != nil {
		t.Wait.Reserve()
	}

	h, err := newTaskHandle(t)
	if err != nil {
		if t.Wait != nil {
			t.Wait.Release()
		}
		g.opts.alloc.FreeTask(t)
		g.opts.metrics.recordAllocError()
		g.logAllocError(err)
		return TaskHandle{}, err
	}
	return h, nil
}

// SetOrder declares that succ must not run until pred completes (and,
// transitively, until any continuation pred returns also completes). It
// may be called any number of times against the same pred, from any
// number of goroutines, both before and after pred has been submitted —
// including, in the rare case, after pred has already finished, in
// which case succ's dependency resolves immediately instead of queuing.
func (g *Graph) SetOrder(pred, succ TaskHandle) error {
	predState, err := pred.task.ensureDynamicState()
	if err != nil {
		g.opts.metrics.recordAllocError()
		g.logAllocError(err)
		return err
	}
	succState, err := succ.task.ensureDynamicState()
	if err != nil {
		g.opts.metrics.recordAllocError()
		g.logAllocError(err)
		return err
	}

	wasComplete := predState.succHead.Load() == completedSentinel
	if err := predState.addSuccessor(succState, g.opts.assertions); err != nil {
		g.opts.metrics.recordAllocError()
		g.logAllocError(err)
		return err
	}
	if wasComplete {
		g.opts.metrics.recordLateEdge()
		g.logLateEdge(g.taskSeq(succ.task))
	} else {
		g.opts.metrics.recordEdge()
		g.logEdge(g.taskSeq(pred.task), g.taskSeq(succ.task))
	}
	return nil
}

// NewCompletionHandle constructs a [CompletionHandle] for h's task,
// callable any time before Submit consumes h (including immediately
// after NewTask, before any edge is even declared). It does not consume
// or otherwise affect h: a caller that wants to observe completion only
// sometimes is free to skip this call entirely and Submit a task with no
// completion handle at all.
func (g *Graph) NewCompletionHandle(h *TaskHandle) (CompletionHandle, error) {
	s, err := h.task.ensureDynamicState()
	if err != nil {
		return CompletionHandle{}, err
	}
	return newCompletionHandle(s), nil
}

// Submit hands h's task to the graph's scheduler once it has no
// outstanding predecessors, consuming h. It does not itself return a
// [CompletionHandle]; call NewCompletionHandle beforehand if the caller
// wants one to observe when the task (and any continuation it returns)
// finishes.
func (g *Graph) Submit(h *TaskHandle) error {
	t := h.task
	s, err := t.ensureDynamicState()
	if err != nil {
		return err
	}

	if _, err := s.getOrCreateContinuationVertex(); err != nil {
		return err
	}

	// The task's implicit reservation (granted when its state was first
	// created) now belongs to the running task rather than the handle;
	// it is released once the task's body actually finishes, in
	// Task.run, not here.
	h.task = nil

	ready := s.releaseContinuation(g.opts.assertions)
	if ready == nil {
		return nil
	}
	g.opts.metrics.recordSpawn()
	g.opts.sched.Spawn(ready, ready.Ctx)
	return nil
}

// HasDependencies reports whether the task referenced by ch is still
// blocked on at least one predecessor.
func (g *Graph) HasDependencies(ch CompletionHandle) bool {
	return ch.HasDependencies()
}

// AllocatorStats reports the graph's allocator's outstanding object
// counts, or the zero value if the configured allocator does not
// support introspection.
func (g *Graph) AllocatorStats() AllocatorStats {
	if sp, ok := g.opts.alloc.(statsProvider); ok {
		return sp.Stats()
	}
	return AllocatorStats{}
}

// MetricsSnapshot reports the graph's activity counters.
func (g *Graph) MetricsSnapshot() MetricsSnapshot {
	return g.opts.metrics.Snapshot()
}

// taskSeq returns the next value of a graph-wide, monotonically
// increasing counter, used only to label log records; it has no bearing
// on scheduling or completion order. It does not remember t: the same
// task gets a new number on every call.
func (g *Graph) taskSeq(_ *Task) int64 {
	return g.seq.Add(1)
}
