package taskgraph

import (
	"sync"
	"sync/atomic"
)

// Allocator is the small-object allocator collaborator: every control
// block the core needs — a new_object/delete_object pair per type. The
// core never allocates control blocks directly; every successorNode,
// ContinuationVertex, DynamicState, and Task passes through one, so that
// callers with their own pooling strategy (or an arena, or a debug
// allocator that poisons freed memory) can supply it via [WithAllocator].
//
// Implementations must be safe for concurrent use: every method may be
// called from any goroutine, including scheduler workers.
type Allocator interface {
	NewSuccessorNode() (*successorNode, error)
	FreeSuccessorNode(*successorNode)

	NewVertex() (*ContinuationVertex, error)
	FreeVertex(*ContinuationVertex)

	NewDynamicState() (*DynamicState, error)
	FreeDynamicState(*DynamicState)

	NewTask() (*Task, error)
	FreeTask(*Task)
}

// AllocatorStats reports outstanding (allocated, not yet freed) object
// counts, useful for asserting that a graph leaves no dangling control
// block behind once every task has run, without relying on a race
// detector.
type AllocatorStats struct {
	SuccessorNodes int64
	Vertices       int64
	DynamicStates  int64
	Tasks          int64
}

// statsProvider is implemented by allocators that track AllocatorStats.
// Not part of the Allocator interface proper: a caller-supplied allocator
// need not support it, in which case (*Graph).AllocatorStats returns the
// zero value.
type statsProvider interface {
	Stats() AllocatorStats
}

// objectPool is a generic sync.Pool wrapper that tracks outstanding
// allocations, generalised with type parameters since the core needs
// four independent pools of distinct control-block types.
type objectPool[T any] struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

func newObjectPool[T any](zero func() *T) *objectPool[T] {
	return &objectPool[T]{pool: sync.Pool{New: func() any { return zero() }}}
}

func (p *objectPool[T]) get() *T {
	v := p.pool.Get().(*T)
	p.outstanding.Add(1)
	return v
}

func (p *objectPool[T]) put(v *T) {
	p.outstanding.Add(-1)
	p.pool.Put(v)
}

// poolAllocator is the default [Allocator], backed by one [objectPool]
// per control-block type. It never fails: NewXxx always returns a nil
// error, since in-process pooled allocation is not a routine failure
// mode.
type poolAllocator struct {
	nodes    *objectPool[successorNode]
	vertices *objectPool[ContinuationVertex]
	states   *objectPool[DynamicState]
	tasks    *objectPool[Task]
}

// NewPoolAllocator constructs the default sync.Pool-backed [Allocator].
func NewPoolAllocator() Allocator {
	return &poolAllocator{
		nodes:    newObjectPool(func() *successorNode { return &successorNode{} }),
		vertices: newObjectPool(func() *ContinuationVertex { return &ContinuationVertex{} }),
		states:   newObjectPool(func() *DynamicState { return &DynamicState{} }),
		tasks:    newObjectPool(func() *Task { return &Task{} }),
	}
}

func (a *poolAllocator) NewSuccessorNode() (*successorNode, error) {
	n := a.nodes.get()
	n.next = nil
	n.vertex = nil
	n.alloc = a
	return n, nil
}

func (a *poolAllocator) FreeSuccessorNode(n *successorNode) {
	n.next = nil
	n.vertex = nil
	a.nodes.put(n)
}

func (a *poolAllocator) NewVertex() (*ContinuationVertex, error) {
	v := a.vertices.get()
	v.task = nil
	v.alloc = a
	v.refcount.Store(0)
	return v, nil
}

func (a *poolAllocator) FreeVertex(v *ContinuationVertex) {
	v.task = nil
	a.vertices.put(v)
}

func (a *poolAllocator) NewDynamicState() (*DynamicState, error) {
	s := a.states.get()
	s.task = nil
	s.alloc = a
	s.succHead.Store(nil)
	s.contVertex.Store(nil)
	s.forward.Store(nil)
	s.refcount.Store(0)
	return s, nil
}

func (a *poolAllocator) FreeDynamicState(s *DynamicState) {
	s.task = nil
	a.states.put(s)
}

func (a *poolAllocator) NewTask() (*Task, error) {
	t := a.tasks.get()
	t.Fn = nil
	t.Ctx = nil
	t.Wait = nil
	t.alloc = a
	t.sched = nil
	t.metrics = nil
	t.dyn.Store(nil)
	return t, nil
}

func (a *poolAllocator) FreeTask(t *Task) {
	t.Fn = nil
	t.Ctx = nil
	t.Wait = nil
	t.sched = nil
	t.metrics = nil
	a.tasks.put(t)
}

func (a *poolAllocator) Stats() AllocatorStats {
	return AllocatorStats{
		SuccessorNodes: a.nodes.outstanding.Load(),
		Vertices:       a.vertices.outstanding.Load(),
		DynamicStates:  a.states.outstanding.Load(),
		Tasks:          a.tasks.outstanding.Load(),
	}
}
