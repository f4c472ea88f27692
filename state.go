package taskgraph

import "sync/atomic"

// completedSentinel marks succHead once a DynamicState's task has run to
// completion. Go offers no taggable pointer bits, so completion is
// represented by pointer identity instead: any successorNode pointer is
// "alive, with a list"; nil is "alive, empty list"; and this one
// process-wide, never-dereferenced value is "complete, list drained".
var completedSentinel = &successorNode{}

// DynamicState is the lifetime-scoped control block backing one run of a
// task: one is created by ensureDynamicState the first time it is needed,
// which for a task built through Graph.NewTask is when its TaskHandle is
// constructed.
// Everything that can race — adding a dependency, adding a successor,
// running the task, transferring accumulated successors onto a
// continuation's state — goes through its three atomic fields.
type DynamicState struct { //nolint:govet // betteralign:ignore
	_ [sizeOfCacheLine]byte

	// succHead is the head of this state's successor list: nil while
	// alive and empty, a *successorNode while alive and non-empty, and
	// completedSentinel once the task has finished and the list has
	// been (or is being) drained.
	succHead atomic.Pointer[successorNode]

	// contVertex is lazily created the first time some predecessor adds
	// this state as a successor. Its refcount gates this state's own
	// task: one reservation per predecessor edge, plus one held on
	// behalf of submission.
	contVertex atomic.Pointer[ContinuationVertex]

	// forward is set, at most once, when this state's task is recognised
	// as the originator of a returned continuation: new successors
	// arriving after that point must be redirected to the continuation's
	// own state instead of being queued here.
	forward atomic.Pointer[DynamicState]

	_ [sizeOfCacheLine]byte

	// refcount is the handle refcount: one per outstanding
	// CompletionHandle referencing this state, plus one held by the task
	// itself (shared by its TaskHandle) from creation until its body has
	// finished running, plus one back-edge for each state forwarded onto
	// this one. It is unrelated to contVertex, which counts dependency
	// edges, not handles.
	refcount atomic.Int32

	task  *Task
	alloc Allocator
}

// reserve adds one handle reference.
func (s *DynamicState) reserve() {
	s.refcount.Add(1)
}

// release removes one handle reference. Once the count reaches zero: if
// this state was forwarded onto a replacement (transferSuccessorsTo was
// called on it), that replacement's back-edge reservation is released
// too, before this state and its task are freed. A submitted task keeps
// its own reference until Task.run has finished its body, so dropping the
// last [CompletionHandle] of a submitted task never frees a task that is
// still running.
func (s *DynamicState) release(assertEnabled bool) {
	if s.refcount.Add(-1) != 0 {
		return
	}
	if fwd := s.forward.Load(); fwd != nil {
		fwd.release(assertEnabled)
	}
	t := s.task
	s.alloc.FreeDynamicState(s)
	if t != nil {
		assertf(assertEnabled, t.dynamicState() == s || t.dynamicState() == nil,
			"dynamic state freed while still installed on a task pointing elsewhere")
		t.alloc.FreeTask(t)
	}
}

// hasDependencies reports whether this state's task is currently blocked
// on at least one predecessor or on submission itself, i.e. whether a
// continuation vertex exists and is non-zero.
func (s *DynamicState) hasDependencies() bool {
	v := s.contVertex.Load()
	return v != nil
}

// unsetDependency is called by ContinuationVertex.releaseBypass once the
// last reservation against this state's join point has gone away. It
// clears the published vertex pointer so a later hasDependencies check
// correctly reports "no longer blocked." The caller frees the vertex
// itself right after this returns.
func (s *DynamicState) unsetDependency() {
	s.contVertex.Store(nil)
}

// getOrCreateContinuationVertex returns this state's continuation
// vertex, allocating and publishing one (with an initial reservation of
// 1, held on behalf of eventual submission) if none exists yet. Safe for
// concurrent callers: exactly one wins the race to publish.
func (s *DynamicState) getOrCreateContinuationVertex() (*ContinuationVertex, error) {
	if v := s.contVertex.Load(); v != nil {
		return v, nil
	}
	v, err := s.alloc.NewVertex()
	if err != nil {
		return nil, wrapAllocErr(err)
	}
	v.task = s.task
	v.refcount.Store(1)
	if s.contVertex.CompareAndSwap(nil, v) {
		return v, nil
	}
	// Lost the race: another goroutine published first. Undo our spare
	// allocation and hand back the winner.
	v.refcount.Store(0)
	s.alloc.FreeVertex(v)
	return s.contVertex.Load(), nil
}

// addSuccessor links succ so that it is released (or has its join point
// decremented) when this state's task completes. It reserves succ's
// continuation vertex once before attempting to publish the node, and
// retries against completion/transfer races until it either installs the
// node or discovers the task has already finished or moved on.
func (s *DynamicState) addSuccessor(succ *DynamicState, assertEnabled bool) error {
	v, err := succ.getOrCreateContinuationVertex()
	if err != nil {
		return err
	}
	v.reserve()

	node, err := s.alloc.NewSuccessorNode()
	if err != nil {
		v.release()
		return wrapAllocErr(err)
	}
	node.vertex = v
	node.alloc = s.alloc

	return s.addSuccessorNode(node, assertEnabled)
}

// addSuccessorNode publishes a pre-built node onto this state's
// successor list via CAS retry, handling the three possible outcomes of
// every attempt: the list is still open (insert and keep the node's
// reservation alive), the task has already completed (release the
// node's reservation immediately and free the node; nothing is run from
// here), or the task has been transferred to a continuation's state
// (retry the whole operation against that state).
func (s *DynamicState) addSuccessorNode(node *successorNode, assertEnabled bool) error {
	for {
		head := s.succHead.Load()
		if head == completedSentinel {
			return s.checkTransferOrCompletion(node, assertEnabled)
		}
		node.next = head
		if s.succHead.CompareAndSwap(head, node) {
			return nil
		}
	}
}

// checkTransferOrCompletion is reached once addSuccessorNode observes
// completedSentinel. It distinguishes an ordinary completion (the node's
// speculative reservation is simply undone, since this state's own
// completion already drained its real successor list and ran or
// scheduled everyone on it) from a forward (the node is redirected,
// unchanged, to the continuation's own state).
func (s *DynamicState) checkTransferOrCompletion(node *successorNode, assertEnabled bool) error {
	if fwd := s.forward.Load(); fwd != nil {
		return fwd.addSuccessorNode(node, assertEnabled)
	}
	node.vertex.release()
	node.finalize()
	return nil
}

// addSuccessorList splices an entire already-built list (typically the
// list drained from a predecessor that is being merged into this state,
// during a transfer) onto the front of this state's own list, in one
// CAS. It does not reserve anything: the caller is expected to have
// already reserved or to be moving ownership of existing reservations
// wholesale.
func (s *DynamicState) addSuccessorList(head, tail *successorNode) {
	if head == nil {
		return
	}
	for {
		cur := s.succHead.Load()
		if cur != completedSentinel {
			tail.next = cur
			if s.succHead.CompareAndSwap(cur, head) {
				return
			}
			continue
		}
		// This state already completed between the transfer being set
		// up and the splice landing; drain our spliced-in list directly.
		n := head
		for n != nil {
			next := n.next
			t, ready := n.vertex.releaseBypass(1)
			n.finalize()
			if ready {
				if sched := t.scheduler(); sched != nil {
					sched.Spawn(t, t.Ctx)
				}
			}
			n = next
		}
		return
	}
}

// reachesForwarding reports whether following s's own forwarding chain
// eventually reaches target, guarding against the multi-hop cycle
// that would result from forwarding a state onto one of its own
// (transitive) predecessors in the chain.
func (s *DynamicState) reachesForwarding(target *DynamicState) bool {
	for cur := s.forward.Load(); cur != nil; cur = cur.forward.Load() {
		if cur == target {
			return true
		}
	}
	return false
}

// transferSuccessorsTo redirects this state's future and
// already-accumulated successors onto target, used when this state's
// task has returned a continuation: instead of running this state's
// successors now, they must wait for target (the continuation's own
// state) to complete instead. It must be called before the task is
// considered complete, and before succHead is ever set to
// completedSentinel on this state.
func (s *DynamicState) transferSuccessorsTo(target *DynamicState, assertEnabled bool) {
	assertf(assertEnabled, s.forward.Load() == nil, "transferSuccessorsTo called twice on the same state")
	if assertEnabled {
		assertf(assertEnabled, target.forward.Load() == nil, "transferSuccessorsTo target already forwards elsewhere")
		assertf(assertEnabled, !target.reachesForwarding(s), "transferSuccessorsTo would create a forwarding cycle")
	}
	target.reserve()
	s.forward.Store(target)

	head := s.succHead.Swap(completedSentinel)
	assertf(assertEnabled, head != completedSentinel, "transferSuccessorsTo raced with completeTask")

	if head == nil {
		return
	}
	tail := head
	for tail.next != nil {
		tail = tail.next
	}
	target.addSuccessorList(head, tail)
}

// completeTask marks this state's task as finished and drains its
// successor list, releasing (or, for exactly one lucky successor,
// returning instead of scheduling) every linked join point. The returned
// task, if non-nil, is the "work bypass" successor: the caller is
// expected to run it directly rather than push it through a scheduler,
// saving one enqueue/dequeue round trip on what is usually the
// most-contended path in the graph.
func (s *DynamicState) completeTask(assertEnabled bool) *Task {
	head := s.succHead.Swap(completedSentinel)
	assertf(assertEnabled, head != completedSentinel, "completeTask called twice on the same state")

	var bypass *Task
	for n := head; n != nil; {
		next := n.next
		t, ready := n.vertex.releaseBypass(1)
		n.finalize()
		if ready {
			if bypass == nil {
				bypass = t
			} else if sched := t.scheduler(); sched != nil {
				sched.Spawn(t, t.Ctx)
			}
		}
		n = next
	}
	return bypass
}

// releaseContinuation decrements this state's own continuation vertex by
// one, the reservation held on behalf of submission since the vertex was
// created. If that was the last reservation, the now-ready task is
// returned for the caller to spawn or run directly; otherwise the task
// remains blocked on its other predecessors and nil is returned.
func (s *DynamicState) releaseContinuation(assertEnabled bool) *Task {
	v := s.contVertex.Load()
	assertf(assertEnabled, v != nil, "releaseContinuation called with no continuation vertex")
	if v == nil {
		return nil
	}
	t, ready := v.releaseBypass(1)
	if !ready {
		return nil
	}
	return t
}
