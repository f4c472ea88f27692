package taskgraph

// successorNode is one element of a predecessor's singly-linked successor
// list. It never crosses the package boundary: callers only ever see
// DynamicState and the handles built atop it.
//
// next is a plain, non-atomic field: it is only ever mutated while the
// node is unreachable from any reader, either during pre-insert CAS
// retries (the node hasn't been published yet) or during the
// single-threaded drain of a list already exchanged out of a
// DynamicState (the node is reachable only from the draining goroutine's
// stack).
type successorNode struct {
	next   *successorNode
	vertex *ContinuationVertex
	alloc  Allocator
}

// finalize frees the node through its allocator. It must be called
// exactly once per node: either by the draining goroutine in
// completeTask, or by the installer goroutine after a late-completion
// race in checkTransferOrCompletion.
func (n *successorNode) finalize() {
	n.alloc.FreeSuccessorNode(n)
}
