package taskgraph

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scheduler is the work-execution collaborator: whatever runs a ready
// Task, on whatever goroutines it likes, under the context it was given.
// The core never calls Fn itself outside of a Task.run invoked by a
// Scheduler; every other method on this package only manipulates state
// and hands ready tasks off to one.
type Scheduler interface {
	// Spawn makes t eligible to run. Implementations may run it
	// synchronously, queue it, or steal-balance it across workers; the
	// only contract is that it eventually runs exactly once under ctx.
	Spawn(t *Task, ctx context.Context)
}

// wsDeque is a single worker's half of a Chase-Lev work-stealing deque:
// the owner pushes and pops from the bottom without synchronisation
// against other owners, while any number of other workers steal from the
// top under a CAS. top and bottom are cache-padded to keep the owner's
// hot bottom-only traffic from ever bouncing the cache line a thief is
// spinning on. pushBottom/popBottom are owner-only, exactly as in the
// reference they are grounded on: only the owning worker goroutine may
// ever call them. Everyone else — any Graph.Submit caller, or a drain on
// some other worker's goroutine handing off a ready successor — must go
// through enqueue instead, which is safe from any goroutine; the owner
// later moves those tasks onto its bottom via drainInject.
type wsDeque struct { //nolint:govet // betteralign:ignore
	_      [sizeOfCacheLine]byte
	top    atomic.Uint64
	_      [sizeOfCacheLine]byte
	bottom atomic.Uint64
	_      [sizeOfCacheLine]byte

	buf atomic.Pointer[[]*Task]

	injectMu sync.Mutex
	inject   []*Task
}

func newWSDeque(capacity int) *wsDeque {
	if capacity < 1 {
		capacity = 1
	}
	capacity = nextPow2(capacity)
	buf := make([]*Task, capacity)
	d := &wsDeque{}
	d.buf.Store(&buf)
	return d
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// pushBottom adds t to the owner's end. Only ever called by the deque's
// owning worker.
func (d *wsDeque) pushBottom(t *Task) {
	b := d.bottom.Load()
	top := d.top.Load()
	buf := *d.buf.Load()
	if b-top >= uint64(len(buf)) {
		buf = d.grow(buf, top, b)
	}
	buf[b%uint64(len(buf))] = t
	d.bottom.Store(b + 1)
}

func (d *wsDeque) grow(buf []*Task, top, bottom uint64) []*Task {
	grown := make([]*Task, len(buf)*2)
	for i := top; i < bottom; i++ {
		grown[i%uint64(len(grown))] = buf[i%uint64(len(buf))]
	}
	d.buf.Store(&grown)
	return grown
}

// popBottom removes from the owner's end. Only ever called by the
// deque's owning worker. Returns nil if the deque is empty, or if this
// pop raced a thief down to the single last element and lost.
func (d *wsDeque) popBottom() *Task {
	b := d.bottom.Load()
	if b == 0 {
		return nil
	}
	b--
	d.bottom.Store(b)
	top := d.top.Load()
	buf := *d.buf.Load()

	if top > b {
		d.bottom.Store(top)
		return nil
	}
	t := buf[b%uint64(len(buf))]
	if top == b {
		if !d.top.CompareAndSwap(top, top+1) {
			t = nil
		}
		d.bottom.Store(top + 1)
	}
	return t
}

// enqueue queues t for the owning worker to pick up, safe to call from
// any goroutine: the one cross-thread entry point into this deque that
// isn't a Chase-Lev owner/thief operation.
func (d *wsDeque) enqueue(t *Task) {
	d.injectMu.Lock()
	d.inject = append(d.inject, t)
	d.injectMu.Unlock()
}

// drainInject empties the injector queue. Only ever called by the
// owning worker, which folds the result onto its own bottom via
// pushBottom — the only place pushBottom is called; continuation and
// bypass chains run directly in runChain and never touch the deque.
func (d *wsDeque) drainInject() []*Task {
	d.injectMu.Lock()
	injected := d.inject
	d.inject = nil
	d.injectMu.Unlock()
	return injected
}

// steal removes from the non-owning end. Safe for any number of
// concurrent thieves and one concurrent owner. Returns nil if the deque
// looked empty, or if this steal lost a race against another thief or
// the owner's popBottom.
func (d *wsDeque) steal() *Task {
	top := d.top.Load()
	bottom := d.bottom.Load()
	if top >= bottom {
		return nil
	}
	buf := *d.buf.Load()
	t := buf[top%uint64(len(buf))]
	if !d.top.CompareAndSwap(top, top+1) {
		return nil
	}
	return t
}

// DequeScheduler is a reference work-stealing [Scheduler]: a fixed pool
// of goroutines, each owning one wsDeque, spawning onto the
// least-recently-used deque round-robin and otherwise running its own
// deque bottom-first, stealing from the top of the next peer in turn
// whenever its own runs dry.
type DequeScheduler struct {
	deques []*wsDeque
	next   atomic.Uint64
	done   chan struct{}
	assert bool
}

// NewDequeScheduler starts workers goroutines, each backed by its own
// work-stealing deque, and returns a Scheduler ready to accept Spawn
// calls. Stop must be called to release the workers.
func NewDequeScheduler(workers int, assertEnabled bool) *DequeScheduler {
	if workers < 1 {
		workers = 1
	}
	s := &DequeScheduler{
		deques: make([]*wsDeque, workers),
		done:   make(chan struct{}),
		assert: assertEnabled,
	}
	for i := range s.deques {
		s.deques[i] = newWSDeque(256)
	}
	for i := range s.deques {
		go s.work(i)
	}
	return s
}

// Spawn implements Scheduler by queuing t onto a deque chosen
// round-robin. The caller is in general not that deque's owning worker —
// Spawn is reached from arbitrary Graph.Submit callers and from any
// worker's own drain path alike — so it always goes through the
// deque's injector rather than its owner-only pushBottom.
func (s *DequeScheduler) Spawn(t *Task, _ context.Context) {
	i := int(s.next.Add(1)-1) % len(s.deques)
	t.sched = s
	s.deques[i].enqueue(t)
}

// Stop signals every worker goroutine to exit once its deque is drained.
func (s *DequeScheduler) Stop() {
	close(s.done)
}

func (s *DequeScheduler) work(i int) {
	own := s.deques[i]
	victim := 0
	for {
		for _, injected := range own.drainInject() {
			own.pushBottom(injected)
		}
		t := own.popBottom()
		if t == nil {
			victim = (victim + 1) % len(s.deques)
			if victim != i {
				t = s.deques[victim].steal()
			}
		}
		if t != nil {
			s.runChain(t)
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
	}
}

func (s *DequeScheduler) runChain(t *Task) {
	for t != nil {
		// run may free t on its error path, so read Wait first.
		wait := t.Wait
		next, err := t.run(s.assert)
		if err != nil {
			// A task's own error is reported through its WaitTreeVertex,
			// never swallowed silently and never panicked on a worker
			// goroutine.
			if wait != nil {
				wait.Fail(err)
			}
			return
		}
		t = next
	}
}
