// Package stats aggregates vertex timings of a frozen graph.
package stats

import (
	"math"
	"slices"

	"github.com/sshudler/libtdg/internal/graph"
)

// Summary holds aggregate timing statistics, all in milliseconds.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total_ms"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	Median float64 `json:"median_ms"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	Q1     float64 `json:"q1_ms"`
	Q2     float64 `json:"q2_ms"`
	Q3     float64 `json:"q3_ms"`

	Chunks        int     `json:"chunks"`
	ChunkTime     float64 `json:"chunk_time_ms"`
	ExplicitTasks int     `json:"explicit_tasks"`
	ExplicitTime  float64 `json:"explicit_time_ms"`
}

// Collect walks every registered vertex once and summarizes its total time.
func Collect(g *graph.Graph) *Summary {
	handles := g.Vertices()
	times := make([]float64, 0, len(handles))
	var chunks, explicit int
	var chunkTime, explicitTime float64
	for _, h := range handles {
		v := g.Vertex(h)
		times = append(times, v.TotalTime())
		switch v.Type() {
		case graph.ChunkTask:
			chunks++
			chunkTime += v.TotalTime()
		case graph.ExplicitTask:
			explicit++
			explicitTime += v.TotalTime()
		}
	}

	s := Compute(times)
	s.Chunks, s.ChunkTime = chunks, chunkTime
	s.ExplicitTasks, s.ExplicitTime = explicit, explicitTime
	return s
}

// Compute returns population statistics over times. Quartiles are read from
// the sorted values at indices n/4, n/2 and 3n/4 without interpolation.
// times is not modified.
func Compute(times []float64) *Summary {
	s := &Summary{Count: len(times)}
	n := len(times)
	if n == 0 {
		return s
	}

	for _, t := range times {
		s.Total += t
	}
	s.Mean = s.Total / float64(n)

	var variance float64
	for _, t := range times {
		d := t - s.Mean
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(n))

	sorted := slices.Clone(times)
	slices.Sort(sorted)
	s.Median = sorted[n/2]
	if n%2 == 0 {
		s.Median = (s.Median + sorted[n/2-1]) / 2
	}
	s.Min = sorted[0]
	s.Max = sorted[n-1]
	s.Q1 = sorted[n/4]
	s.Q2 = sorted[n/2]
	s.Q3 = sorted[n*3/4]
	return s
}
