package taskgraph

// TaskHandle is a unique-ownership reference to a not-yet-submitted
// task. It exists so a caller can name a task as the predecessor or
// successor of an edge before deciding whether, or how, to submit it,
// without yet handing it to a scheduler. Exactly one goroutine may hold
// a given TaskHandle at a time: Release consumes it, and a consumed
// handle must never be used again.
type TaskHandle struct {
	task *Task
}

// newTaskHandle wraps t. ensureDynamicState already grants t's state an
// implicit reservation on the task's own behalf; the handle rides that
// reservation rather than taking a second one of its own, since a
// not-yet-submitted task and the handle naming it are, at any given
// moment, the same single owner.
func newTaskHandle(t *Task) (TaskHandle, error) {
	if _, err := t.ensureDynamicState(); err != nil {
		return TaskHandle{}, err
	}
	return TaskHandle{task: t}, nil
}

// Empty reports whether h holds no task, either because it was never
// assigned one or because it has already been released or submitted.
func (h TaskHandle) Empty() bool {
	return h.task == nil
}

// Release discards h's task without ever submitting it, dropping the
// handle-level reference taken out when it was created and releasing the
// task's reservation on its WaitTreeVertex, if it has one. It is a no-op
// on an already-empty handle.
func (h *TaskHandle) Release(assertEnabled bool) {
	if h.task == nil {
		return
	}
	if h.task.Wait != nil {
		h.task.Wait.Release()
	}
	if s := h.task.dynamicState(); s != nil {
		s.release(assertEnabled)
	}
	h.task = nil
}

// Reset replaces h's task in place: equivalent to releasing h and
// constructing a new handle around t, without the caller needing a
// second variable.
func (h *TaskHandle) Reset(t *Task, assertEnabled bool) error {
	h.Release(assertEnabled)
	nh, err := newTaskHandle(t)
	if err != nil {
		return err
	}
	*h = nh
	return nil
}

// CompletionHandle is a shared-ownership reference to a task's dynamic
// state, usable after submission to test or wait on whether that task
// (and any continuation it returned) has finished. Unlike TaskHandle, a
// CompletionHandle may be freely copied: each copy shares the same
// underlying reservation accounting, which happens through its state's
// refcount rather than through the handle value itself.
type CompletionHandle struct {
	state *DynamicState
}

// newCompletionHandle wraps s, reserving one handle-level reference.
func newCompletionHandle(s *DynamicState) CompletionHandle {
	s.reserve()
	return CompletionHandle{state: s}
}

// Empty reports whether h refers to any dynamic state at all.
func (h CompletionHandle) Empty() bool {
	return h.state == nil
}

// HasDependencies reports whether the referenced task is still blocked
// on at least one predecessor (or on submission itself).
func (h CompletionHandle) HasDependencies() bool {
	return h.state != nil && h.state.hasDependencies()
}

// Equal reports whether h and other refer to the same task's dynamic
// state.
func (h CompletionHandle) Equal(other CompletionHandle) bool {
	return h.state == other.state
}

// Release drops this copy's handle-level reference. Other outstanding
// copies of the same CompletionHandle are unaffected; the underlying
// state is only freed once every copy (and the task, if still
// unsubmitted) has released its reference.
func (h *CompletionHandle) Release(assertEnabled bool) {
	if h.state == nil {
		return
	}
	h.state.release(assertEnabled)
	h.state = nil
}

// Clone returns an independent copy of h, sharing the same underlying
// state but holding its own reservation.
func (h CompletionHandle) Clone() CompletionHandle {
	if h.state == nil {
		return CompletionHandle{}
	}
	return newCompletionHandle(h.state)
}
