package taskgraph

import "sync/atomic"

// Metrics accumulates counters describing graph activity: how many
// tasks Graph.Submit handed straight to the scheduler (successors spawned
// by a predecessor's completion are not counted), how many edges were
// installed, how many were installed against an already-completed
// predecessor (and so resolved immediately instead of queuing), and how
// many times a task's completion released one successor as a work-bypass
// (including a task that failed, whose bypass successor is then spawned
// through the scheduler instead of run directly).
type Metrics struct {
	spawns      atomic.Int64
	edges       atomic.Int64
	lateEdges   atomic.Int64
	bypasses    atomic.Int64
	allocErrors atomic.Int64
}

// NewMetrics returns a zeroed Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordSpawn()      { m.spawns.Add(1) }
func (m *Metrics) recordEdge()       { m.edges.Add(1) }
func (m *Metrics) recordLateEdge()   { m.lateEdges.Add(1) }
func (m *Metrics) recordBypass()     { m.bypasses.Add(1) }
func (m *Metrics) recordAllocError() { m.allocErrors.Add(1) }

// MetricsSnapshot is a point-in-time read of a [Metrics] collector.
type MetricsSnapshot struct {
	Spawns      int64
	Edges       int64
	LateEdges   int64
	Bypasses    int64
	AllocErrors int64
}

// Snapshot reads every counter. Individual fields are not read
// atomically with respect to each other, only with respect to
// themselves; callers wanting a perfectly consistent snapshot under
// heavy concurrent load should not expect one.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Spawns:      m.spawns.Load(),
		Edges:       m.edges.Load(),
		LateEdges:   m.lateEdges.Load(),
		Bypasses:    m.bypasses.Load(),
		AllocErrors: m.allocErrors.Load(),
	}
}
