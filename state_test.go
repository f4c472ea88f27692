package taskgraph

import (
	"context"
	"testing"
)

func newTestTask(alloc Allocator) *Task {
	return &Task{
		Fn:    func(context.Context) (*Task, error) { return nil, nil },
		Ctx:   context.Background(),
		alloc: alloc,
	}
}

func TestAddSuccessorThenComplete(t *testing.T) {
	a := NewPoolAllocator()
	pred := newTestTask(a)
	succ := newTestTask(a)

	predState, err := pred.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	succState, err := succ.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}

	// Submission's own reservation, mirroring Graph.Submit.
	if _, err := succState.getOrCreateContinuationVertex(); err != nil {
		t.Fatal(err)
	}

	if err := predState.addSuccessor(succState, true); err != nil {
		t.Fatal(err)
	}
	if !succState.hasDependencies() {
		t.Fatal("successor should have a pending dependency after addSuccessor")
	}

	bypass := predState.completeTask(true)
	if bypass != nil {
		t.Fatal("successor is still blocked on its own submission reservation; should not be released yet")
	}

	ready := succState.releaseContinuation(true)
	if ready != succ {
		t.Fatalf("expected succ to be released by its own submission reservation, got %v", ready)
	}
}

func TestAddSuccessorAgainstAlreadyCompletedPredecessor(t *testing.T) {
	a := NewPoolAllocator()
	pred := newTestTask(a)
	succ := newTestTask(a)

	predState, err := pred.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	succState, err := succ.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := succState.getOrCreateContinuationVertex(); err != nil {
		t.Fatal(err)
	}

	if bypass := predState.completeTask(true); bypass != nil {
		t.Fatal("predecessor has no successors yet; completeTask should return nil")
	}

	// Linking an edge to an already-completed predecessor must resolve
	// the edge's own reservation immediately, via checkTransferOrCompletion,
	// rather than queuing a node that will never be drained.
	v, err := succState.getOrCreateContinuationVertex()
	if err != nil {
		t.Fatal(err)
	}
	before := v.refcount.Load()
	if err := predState.addSuccessor(succState, true); err != nil {
		t.Fatal(err)
	}
	if got := v.refcount.Load(); got != before {
		t.Fatalf("edge reservation against a completed predecessor should be released immediately, refcount went from %d to %d", before, got)
	}

	// The successor's own submission reservation is untouched by this:
	// it only clears once the successor itself is released.
	if !succState.hasDependencies() {
		t.Fatal("successor should still be blocked on its own submission reservation")
	}
	if ready := succState.releaseContinuation(true); ready != succ {
		t.Fatalf("expected succ, got %v", ready)
	}
}

func TestTransferSuccessorsTo(t *testing.T) {
	a := NewPoolAllocator()
	pred := newTestTask(a)
	cont := newTestTask(a)
	succ := newTestTask(a)

	predState, err := pred.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	contState, err := cont.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	succState, err := succ.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := succState.getOrCreateContinuationVertex(); err != nil {
		t.Fatal(err)
	}

	if err := predState.addSuccessor(succState, true); err != nil {
		t.Fatal(err)
	}

	predState.transferSuccessorsTo(contState, true)
	if !succState.hasDependencies() {
		t.Fatal("successor should still be blocked: it was transferred, not released")
	}

	bypass := contState.completeTask(true)
	if bypass != nil {
		t.Fatal("successor is still waiting on its own submission reservation")
	}
	ready := succState.releaseContinuation(true)
	if ready != succ {
		t.Fatalf("transferred successor should release once the continuation completes, got %v", ready)
	}
}

func TestAddSuccessorAfterTransferFollowsForward(t *testing.T) {
	a := NewPoolAllocator()
	pred := newTestTask(a)
	cont := newTestTask(a)
	lateSucc := newTestTask(a)

	predState, err := pred.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	contState, err := cont.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	lateState, err := lateSucc.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lateState.getOrCreateContinuationVertex(); err != nil {
		t.Fatal(err)
	}

	predState.transferSuccessorsTo(contState, true)

	if err := predState.addSuccessor(lateState, true); err != nil {
		t.Fatal(err)
	}
	if !lateState.hasDependencies() {
		t.Fatal("late successor linked after a transfer should still be blocked, via the forward")
	}

	bypass := contState.completeTask(true)
	if bypass != nil {
		t.Fatal("late successor is still waiting on its own submission reservation")
	}
	if ready := lateState.releaseContinuation(true); ready != lateSucc {
		t.Fatalf("expected lateSucc, got %v", ready)
	}
}

func TestCompleteTaskReturnsExactlyOneBypass(t *testing.T) {
	a := NewPoolAllocator()
	pred := newTestTask(a)
	predState, err := pred.ensureDynamicState()
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	var succStates []*DynamicState
	for i := 0; i < n; i++ {
		succ := newTestTask(a)
		s, err := succ.ensureDynamicState()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.getOrCreateContinuationVertex(); err != nil {
			t.Fatal(err)
		}
		if err := predState.addSuccessor(s, true); err != nil {
			t.Fatal(err)
		}
		// Mirrors each successor already having been submitted: only its
		// edge from pred, not its own submission hold, should remain
		// outstanding by the time pred completes.
		if ready := s.releaseContinuation(true); ready != nil {
			t.Fatal("successor should not be ready before its predecessor completes")
		}
		succStates = append(succStates, s)
	}

	bypass := predState.completeTask(true)
	if bypass == nil {
		t.Fatal("expected exactly one work-bypass successor")
	}

	found := false
	for _, s := range succStates {
		if s.hasDependencies() {
			t.Fatal("every successor's join point should have reached zero")
		}
		if s.task == bypass {
			found = true
		}
	}
	if !found {
		t.Fatal("the returned bypass task should be one of the successors")
	}
}
