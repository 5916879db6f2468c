package cpm

import "github.com/sshudler/libtdg/internal/graph"

// Result holds the complete critical path analysis of a frozen graph.
type Result struct {
	Vertices     map[graph.Handle]*VertexPath
	CriticalPath []graph.Handle // source first
	PathTime     float64        // weighted length of the critical path, ms
	PathLength   int            // longest path in vertices
	TimeOnPath   float64        // sum of vertex times along CriticalPath
	Waves        []Wave         // vertices grouped by topological level
	Order        []graph.Handle
}

// VertexPath holds the longest-path data for a single vertex.
type VertexPath struct {
	Handle     graph.Handle
	ID         int64
	Level      int
	PathTime   float64
	PathLength int
	Prev       graph.Handle // predecessor on the heaviest incoming path
	IsCritical bool
}

// Wave is a group of vertices on the same topological level. No two
// vertices of a wave depend on each other.
type Wave struct {
	Index      int
	Vertices   []graph.Handle
	IsCritical bool // true if wave contains critical path vertices
}
