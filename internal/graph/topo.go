package graph

import (
	"cmp"
	"slices"
)

// TopologicalLevel linearizes the graph and assigns each vertex its level:
// 0 without predecessors, otherwise one more than the deepest predecessor.
// The result lists vertices grouped by ascending level; within a level the
// depth-first order is kept. Roots are taken in id order and exit edges in
// insertion order, so the result is deterministic for a given graph.
//
// The graph must be acyclic and no longer mutated.
func (g *Graph) TopologicalLevel() []Handle {
	g.resetAnalysis()
	roots := g.Vertices()
	order := make([]Handle, 0, len(roots))

	type frame struct {
		h    Handle
		next int
	}
	var stack []frame
	for _, r := range roots {
		if g.vertex(r).visited {
			continue
		}
		g.vertex(r).visited = true
		stack = append(stack, frame{h: r})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			exits := g.vertex(top.h).exits
			if top.next < len(exits) {
				n := exits[top.next]
				top.next++
				nv := g.vertex(n)
				if !nv.visited && !nv.Retired() {
					nv.visited = true
					stack = append(stack, frame{h: n})
				}
				continue
			}
			order = append(order, top.h)
			stack = stack[:len(stack)-1]
		}
	}
	slices.Reverse(order)

	for _, h := range order {
		v := g.vertex(h)
		level := 0
		for _, p := range v.entries {
			pv := g.vertex(p)
			if pv.Retired() {
				continue
			}
			level = max(level, pv.level+1)
		}
		v.level = level
	}

	slices.SortStableFunc(order, func(a, b Handle) int {
		return cmp.Compare(g.vertex(a).level, g.vertex(b).level)
	})
	return order
}

// DetectCycle returns the ids along a cycle if one exists, or nil if the
// graph is acyclic. Uses DFS with coloring: white (unvisited), gray (in
// progress), black (done).
func (g *Graph) DetectCycle() []int64 {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[Handle]int)
	parent := make(map[Handle]Handle)

	var dfs func(h Handle) []Handle
	dfs = func(h Handle) []Handle {
		color[h] = gray
		for _, next := range g.Exits(h) {
			if color[next] == gray {
				cycle := []Handle{next, h}
				cur := h
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if color[next] == white {
				parent[next] = h
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[h] = black
		return nil
	}

	for _, h := range g.Vertices() {
		if color[h] != white {
			continue
		}
		if cycle := dfs(h); cycle != nil {
			ids := make([]int64, len(cycle))
			for i, c := range cycle {
				ids[i] = g.vertex(c).id
			}
			return ids
		}
	}
	return nil
}
