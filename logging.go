package taskgraph

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// NewDefaultLogger returns a stumpy-backed structured logger writing
// JSON lines to stderr, for callers who want reasonable out-of-the-box
// observability without writing their own [Option].
func NewDefaultLogger() *logiface.Logger[*stumpy.Event] {
	return logiface.New[*stumpy.Event](stumpy.WithStumpy())
}

// logEdge emits one debug-level record for a successfully installed
// dependency edge. A no-op when the graph's logger has no writer
// configured.
func (g *Graph) logEdge(predSeq, succSeq int64) {
	g.opts.logger.Debug().Field("predecessor", predSeq).Field("successor", succSeq).Log("dependency edge installed")
}

// logLateEdge emits one debug-level record for an edge whose predecessor
// had already completed by the time the edge was installed, and which
// therefore resolved immediately rather than queuing.
func (g *Graph) logLateEdge(succSeq int64) {
	g.opts.logger.Debug().Field("successor", succSeq).Log("dependency edge resolved immediately against completed predecessor")
}

// logAllocError emits one error-level record for a failed [Allocator]
// call; Graph.NewTask and Graph.SetOrder call it on their failure paths.
func (g *Graph) logAllocError(err error) {
	g.opts.logger.Err().Err(err).Log("allocator call failed")
}
