// Package taskgraph implements a lock-free task dependency graph: the part
// of a work-stealing scheduler that lets a caller build tasks in a
// not-yet-runnable handle form, declare happens-before edges between them
// before any has started, and have the scheduler wake successor tasks in
// the right order as predecessors finish.
//
// # Architecture
//
// Four components, leaves first:
//
//   - successorNode: one element of a predecessor's singly-linked
//     successor list.
//   - ContinuationVertex: a refcounted join point owned by one task;
//     decrementing it to zero releases that task for execution.
//   - DynamicState: the per-task control block housing the successor
//     list head, the lazily-created continuation vertex, and a
//     forwarding pointer used by the successor-transfer protocol.
//   - TaskHandle / CompletionHandle: an exclusive pre-submission owner of
//     a task, and a shared post-submission observer of its DynamicState.
//
// A caller builds a [TaskHandle] for each task with [Graph.NewTask],
// links predecessor edges with [Graph.SetOrder], then calls
// [Graph.Submit]. A predecessor's completion drains its successor list,
// releasing each successor's [ContinuationVertex]; vertices that hit
// zero are spawned via the configured [Scheduler].
//
// # Thread Safety
//
// Every edge and completion operation is lock-free: there is no mutex
// anywhere in the core. [TaskHandle] is single-owner, not safe to share
// across goroutines. [CompletionHandle] is safe for concurrent use,
// including concurrent completion of the task it observes.
//
// # Collaborators
//
// The scheduler, the small-object allocator, and the task-group join
// tree are external collaborators, specified only at their interface:
// see [Scheduler], [Allocator], and [WaitTreeVertex].
package taskgraph
