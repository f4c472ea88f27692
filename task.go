package taskgraph

import (
	"context"
	"sync/atomic"
)

// GroupContext is the opaque, cancellation-propagating context a task
// runs under. It is exactly a context.Context, passed unchanged to the
// task's Fn and to Scheduler.Spawn. The core itself never inspects it:
// cancelling it does not stop a task from being spawned or run; an Fn
// observes cancellation only by checking the ctx it receives.
type GroupContext = context.Context

// Fn is the work a Task performs. It receives the GroupContext it was
// submitted under and returns an optional continuation: a non-nil
// returned *Task is run next, directly by the caller of run, as this
// task's replacement for the purposes
// of every successor edge that was (or will be) linked to the returning
// task — none of those successors run until the continuation itself
// completes.
type Fn func(ctx GroupContext) (continuation *Task, err error)

// Task is one schedulable unit of work: a function plus the plumbing
// needed to run it exactly once and propagate its completion to
// whatever depends on it. Tasks are allocated through an [Allocator] and
// normally reached only through a [TaskHandle]; user code never
// constructs one directly.
type Task struct {
	Fn   Fn
	Ctx  GroupContext
	Wait WaitTreeVertex

	dyn     atomic.Pointer[DynamicState]
	sched   Scheduler
	alloc   Allocator
	metrics *Metrics
}

// dynamicState returns this task's DynamicState, or nil if none has been
// created yet; it never allocates (see ensureDynamicState). Every Task
// built through Graph.NewTask, or ever named
// in a dependency edge or submitted directly ends up with a non-nil
// state by the time that matters; a Task that is only ever run standalone
// (no edges, no handle taken) may never need one.
func (t *Task) dynamicState() *DynamicState {
	return t.dyn.Load()
}

// ensureDynamicState is the write path behind dynamicState: it
// allocates and publishes a state if one is not already present, using a
// CAS so concurrent callers converge on a single winner.
func (t *Task) ensureDynamicState() (*DynamicState, error) {
	if s := t.dyn.Load(); s != nil {
		return s, nil
	}
	s, err := t.alloc.NewDynamicState()
	if err != nil {
		return nil, wrapAllocErr(err)
	}
	s.task = t
	s.refcount.Store(1)
	if t.dyn.CompareAndSwap(nil, s) {
		return s, nil
	}
	s.refcount.Store(0)
	t.alloc.FreeDynamicState(s)
	return t.dyn.Load(), nil
}

// scheduler returns the Scheduler this task is bound to: set by
// Graph.NewTask, by DequeScheduler.Spawn, or taken over from the task a
// continuation replaces. It is nil only for a task that none of those
// ever touched.
func (t *Task) scheduler() Scheduler {
	return t.sched
}

// run executes the task's function and returns the next task the caller
// should run immediately, in place of pushing it through a scheduler: a
// returned continuation (this task's replacement), or the one successor
// released as a work-bypass by this task's own completion. A worker loop
// that keeps calling run on whatever it returns, until it returns nil,
// rides every continuation/bypass chain without an extra enqueue. If
// Fn returns a non-nil error, run still drains t's dynamic state (so
// successors are released rather than left blocked forever) before
// returning the error for the caller to route to the task's Wait; that
// drain may free t, so the caller reads t.Wait before calling run. Any
// work-bypass successor uncovered by that drain is spawned directly, since
// the caller will not use run's returned next task once err is non-nil.
func (t *Task) run(assertEnabled bool) (next *Task, err error) {
	cont, err := t.Fn(t.Ctx)
	s := t.dynamicState()

	if err != nil {
		// The task's own error is reported to the caller, which is
		// responsible for routing it to t.Wait (see DequeScheduler.runChain
		// and the test-only inlineScheduler); but abandoning the run must
		// not also abandon anything depending on t. Its successors are
		// drained exactly as if t had completed with no continuation, or
		// they would block forever on a predecessor that never arrives.
		if s != nil {
			bypass := s.completeTask(assertEnabled)
			if bypass != nil {
				if t.metrics != nil {
					t.metrics.recordBypass()
				}
				if sched := bypass.scheduler(); sched != nil {
					sched.Spawn(bypass, bypass.Ctx)
				}
			}
			s.release(assertEnabled)
		}
		return nil, err
	}

	if cont != nil {
		// A continuation always takes over the scheduler and metrics of
		// the task it replaces, and inherits its context and wait-tree
		// reservation unless the caller set its own: the reservation taken
		// out when the task was built is only released once the chain
		// finally settles with no further continuation.
		cont.sched = t.sched
		cont.metrics = t.metrics
		if cont.Ctx == nil {
			cont.Ctx = t.Ctx
		}
		if cont.Wait == nil {
			cont.Wait = t.Wait
		}
		if s != nil {
			target, cerr := cont.ensureDynamicState()
			if cerr != nil {
				return nil, cerr
			}
			s.transferSuccessorsTo(target, assertEnabled)
			// t's body has finished, even though a continuation stands
			// in for it: its own implicit reservation is done, and the
			// back-edge transferSuccessorsTo just placed on target is
			// what keeps target alive until t's last handle lets go.
			s.release(assertEnabled)
		}
		return cont, nil
	}

	if t.Wait != nil {
		t.Wait.Release()
	}

	if s == nil {
		// No handle or edge ever touched this task; nothing left to
		// notify of its completion.
		return nil, nil
	}
	bypass := s.completeTask(assertEnabled)
	if bypass != nil && t.metrics != nil {
		t.metrics.recordBypass()
	}
	s.release(assertEnabled)
	return bypass, nil
}
