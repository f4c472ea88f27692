package taskgraph

import "sync/atomic"

// ContinuationVertex is the refcounted join point owned by one task.
// Decrementing it to zero releases that task for execution. It is
// created lazily, by the first predecessor that links a successor edge
// to its owning task (via DynamicState.getOrCreateContinuationVertex),
// and holds no reference of its own back to that task's DynamicState —
// only a raw pointer to the Task itself, to avoid a reference cycle
// between a task's state and its own join point.
type ContinuationVertex struct { //nolint:govet // betteralign:ignore
	_        [sizeOfCacheLine]byte
	task     *Task
	refcount atomic.Int32
	_        [sizeOfCacheLine]byte
	alloc    Allocator
}

// reserve adds one reference. Called when a new successor node links to
// this vertex; the node's pointer back to the vertex is only ever valid
// while the reservation it took out is held.
func (v *ContinuationVertex) reserve() {
	v.refcount.Add(1)
}

// release removes one reference without scheduling. If the count reaches
// zero, the vertex is freed immediately — this path is only reachable
// from cleanup (checkTransferOrCompletion undoing a reserve for a node it
// is about to discard, or addSuccessor undoing its reserve when the node
// allocation fails), never from the normal
// predecessor-completion path, which must use releaseBypass so the
// released task is not silently dropped.
func (v *ContinuationVertex) release() {
	if v.refcount.Add(-1) == 0 {
		v.alloc.FreeVertex(v)
	}
}

// releaseBypass removes delta references. If the result is zero, it
// clears the "has pending dependency" flag on the vertex's task's own
// DynamicState, frees the vertex, and returns the task (ready, true): the
// caller spawns it, or — for the single "work-bypass" successor returned
// by completeTask — executes it directly. If the result is non-zero, it
// returns (nil, false).
func (v *ContinuationVertex) releaseBypass(delta int32) (*Task, bool) {
	if v.refcount.Add(-delta) != 0 {
		return nil, false
	}
	t := v.task
	if s := t.dynamicState(); s != nil {
		s.unsetDependency()
	}
	v.alloc.FreeVertex(v)
	return t, true
}
