package cpm

import (
	"log/slog"
	"slices"

	"github.com/sshudler/libtdg/internal/graph"
)

// Analyze computes the weighted longest path through g and flags the
// vertices on it as critical. Vertices are processed in level order. For each
// vertex the heaviest predecessor path is extended by the vertex's own time;
// ties keep the first predecessor in entry order, and the critical path ends
// at the first vertex reaching the global maximum.
func Analyze(g *graph.Graph) *Result {
	order := g.TopologicalLevel()
	slog.Debug("critical path: topological sort done", "vertices", len(order))

	result := &Result{
		Vertices: make(map[graph.Handle]*VertexPath, len(order)),
		Order:    order,
	}

	last := graph.NoHandle
	for _, h := range order {
		v := g.Vertex(h)
		vp := &VertexPath{
			Handle:   h,
			ID:       v.ID(),
			Level:    v.Level(),
			PathTime: v.TotalTime(),
			Prev:     graph.NoHandle,
		}
		longest := 0
		for _, p := range g.Entries(h) {
			pred, ok := result.Vertices[p]
			if !ok {
				continue
			}
			longest = max(longest, pred.PathLength)
			if t := pred.PathTime + v.TotalTime(); t > vp.PathTime {
				vp.PathTime = t
				vp.Prev = p
			}
		}
		vp.PathLength = longest + 1
		result.Vertices[h] = vp

		result.PathLength = max(result.PathLength, vp.PathLength)
		if vp.PathTime > result.PathTime {
			result.PathTime = vp.PathTime
			last = h
		}
	}

	slog.Debug("critical path: marking critical vertices")
	for h := last; h != graph.NoHandle; h = result.Vertices[h].Prev {
		vp := result.Vertices[h]
		vp.IsCritical = true
		g.MarkCritical(h)
		result.TimeOnPath += g.Vertex(h).TotalTime()
		result.CriticalPath = append(result.CriticalPath, h)
	}
	slices.Reverse(result.CriticalPath)
	slog.Debug("critical path: done", "time_on_path", result.TimeOnPath, "vertices", len(result.CriticalPath))

	result.Waves = computeWaves(result)
	return result
}

// CriticalIDs returns the ids of the critical path vertices, source first.
func (r *Result) CriticalIDs() []int64 {
	ids := make([]int64, len(r.CriticalPath))
	for i, h := range r.CriticalPath {
		ids[i] = r.Vertices[h].ID
	}
	return ids
}

// computeWaves splits the level-sorted order into one wave per level.
func computeWaves(result *Result) []Wave {
	var waves []Wave
	for _, h := range result.Order {
		vp := result.Vertices[h]
		if len(waves) == 0 || vp.Level != result.Vertices[waves[len(waves)-1].Vertices[0]].Level {
			waves = append(waves, Wave{Index: len(waves)})
		}
		w := &waves[len(waves)-1]
		w.Vertices = append(w.Vertices, h)
		if vp.IsCritical {
			w.IsCritical = true
		}
	}

	// Sort critical vertices first within each wave
	for i := range waves {
		slices.SortStableFunc(waves[i].Vertices, func(a, b graph.Handle) int {
			aCrit, bCrit := result.Vertices[a].IsCritical, result.Vertices[b].IsCritical
			switch {
			case aCrit == bCrit:
				return 0
			case aCrit:
				return -1
			default:
				return 1
			}
		})
	}
	return waves
}
