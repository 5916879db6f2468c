package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sshudler/libtdg/internal/graph"
	"github.com/sshudler/libtdg/internal/metrics"
	"github.com/sshudler/libtdg/internal/ui"
)

// maxWaves bounds the per-level breakdown printed for the critical path.
const maxWaves = 12

// Reporter renders metric reports computed over one frozen graph.
type Reporter struct {
	Graph   *graph.Graph
	Reports []*metrics.Report
}

// New creates a new Reporter.
func New(g *graph.Graph, reports []*metrics.Report) *Reporter {
	return &Reporter{Graph: g, Reports: reports}
}

// Print writes the human-readable summary of every report, in order.
func (r *Reporter) Print(w io.Writer) {
	for _, rep := range r.Reports {
		switch rep.Kind {
		case metrics.TotalTime:
			r.printTotalTime(w, rep)
		case metrics.CriticalPath:
			r.printCriticalPath(w, rep)
		case metrics.DotFile:
			fmt.Fprintf(w, "📄 Graph description written to %s\n", ui.Bold(rep.Path))
		case metrics.ChunkLog:
			fmt.Fprintf(w, "📄 Chunk log written to %s\n", ui.Bold(rep.Path))
		}
	}
}

func (r *Reporter) printTotalTime(w io.Writer, rep *metrics.Report) {
	s := rep.Summary
	ms := graph.FormatTime

	fmt.Fprintf(w, "⏱️  %s\n", ui.BoldCyan("Total time summary"))
	fmt.Fprintf(w, "Total time (ms): %s\n", ui.Bold(ms(s.Total)))
	fmt.Fprintf(w, "Total tasks: %s\n", ui.Bold(s.Count))
	fmt.Fprintf(w, "Total chunks time: %s\n", ms(s.ChunkTime))
	fmt.Fprintf(w, "Total chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "Total explicit time: %s\n", ms(s.ExplicitTime))
	fmt.Fprintf(w, "Total explicit tasks: %d\n", s.ExplicitTasks)
	fmt.Fprintf(w, "Average time per task: %s\n", ms(s.Mean))
	fmt.Fprintf(w, "Task time stddev: %s\n", ms(s.StdDev))
	fmt.Fprintf(w, "Median time: %s\n", ms(s.Median))
	if s.Count > 0 {
		fmt.Fprintf(w, "Min task time: %s\n", ms(s.Min))
		fmt.Fprintf(w, "Max task time: %s\n", ms(s.Max))
		fmt.Fprintf(w, "1st quartile: %s\n", ms(s.Q1))
		fmt.Fprintf(w, "2nd quartile (median): %s\n", ms(s.Q2))
		fmt.Fprintf(w, "3rd quartile: %s\n", ms(s.Q3))
	}
	fmt.Fprintln(w)
}

func (r *Reporter) printCriticalPath(w io.Writer, rep *metrics.Report) {
	res := rep.Critical

	fmt.Fprintf(w, "🎯 %s\n", ui.BoldCyan("Critical path"))
	fmt.Fprintf(w, "Longest (critical) path (time ms): %s\n", ui.BoldYellow(graph.FormatTime(res.PathTime)))
	fmt.Fprintf(w, "Longest (critical) path (length): %s\n", ui.Bold(res.PathLength))

	ids := make([]string, 0, len(res.CriticalPath))
	for _, id := range res.CriticalIDs() {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	if len(ids) > 0 {
		fmt.Fprintf(w, "⚡ Critical vertices: %s (%d vertices, %s ms on path)\n",
			ui.BoldYellow(strings.Join(ids, " → ")), len(ids), graph.FormatTime(res.TimeOnPath))
	}

	for i, wave := range res.Waves {
		if i == maxWaves {
			fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("... %d more levels", len(res.Waves)-maxWaves)))
			break
		}
		fmt.Fprintf(w, "  🌊 %s %d %s (%d vertices) %s\n",
			ui.BoldWhite("Level"), wave.Index, ui.CriticalMark(wave.IsCritical),
			len(wave.Vertices), r.typeBreakdown(wave.Vertices))
	}
	fmt.Fprintln(w)
}

// typeBreakdown renders "IMP_TASK×3 CHUNK_TASK×8" in type declaration order.
func (r *Reporter) typeBreakdown(hs []graph.Handle) string {
	counts := make(map[graph.Type]int)
	for _, h := range hs {
		counts[r.Graph.Vertex(h).Type()]++
	}
	var parts []string
	for _, t := range graph.Types {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s×%d", ui.TypeName(t), n))
		}
	}
	return strings.Join(parts, " ")
}

// JSON returns machine-readable reports.
func (r *Reporter) JSON() ([]byte, error) {
	type critical struct {
		TimeMs     float64 `json:"time_ms"`
		Length     int     `json:"length"`
		TimeOnPath float64 `json:"time_on_path_ms"`
		Vertices   []int64 `json:"vertices"`
		Levels     int     `json:"levels"`
	}

	type report struct {
		Metric   string      `json:"metric"`
		Summary  interface{} `json:"summary,omitempty"`
		Critical *critical   `json:"critical_path,omitempty"`
		Path     string      `json:"path,omitempty"`
	}

	type output struct {
		Vertices int      `json:"vertices"`
		Edges    int      `json:"edges"`
		Reports  []report `json:"reports"`
	}

	o := output{
		Vertices: r.Graph.Len(),
		Edges:    r.Graph.EdgeCount(),
		Reports:  make([]report, 0, len(r.Reports)),
	}
	for _, rep := range r.Reports {
		out := report{Metric: rep.Kind.String(), Path: rep.Path}
		if rep.Summary != nil {
			out.Summary = rep.Summary
		}
		if res := rep.Critical; res != nil {
			out.Critical = &critical{
				TimeMs:     res.PathTime,
				Length:     res.PathLength,
				TimeOnPath: res.TimeOnPath,
				Vertices:   res.CriticalIDs(),
				Levels:     len(res.Waves),
			}
		}
		o.Reports = append(o.Reports, out)
	}

	return json.MarshalIndent(o, "", "  ")
}

// PrintSummary writes a short graph overview: vertex counts per type and the
// number of chunks executed by each thread.
func (r *Reporter) PrintSummary(w io.Writer) {
	counts := make(map[graph.Type]int)
	perThread := make(map[int]int)
	maxThread := -1
	for _, h := range r.Graph.Vertices() {
		v := r.Graph.Vertex(h)
		counts[v.Type()]++
		if v.Type() == graph.ChunkTask {
			perThread[v.Thread()]++
			maxThread = max(maxThread, v.Thread())
		}
	}

	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task dependency graph"))
	fmt.Fprintf(w, "Vertices:  %s  Edges: %s\n", ui.Bold(r.Graph.Len()), ui.Bold(r.Graph.EdgeCount()))
	for _, t := range graph.Types {
		if n := counts[t]; n > 0 {
			fmt.Fprintf(w, "  %-24s %d\n", ui.TypeName(t), n)
		}
	}
	for th := 0; th <= maxThread; th++ {
		fmt.Fprintf(w, "  %s %d chunks\n", ui.ThreadPrefix(th), perThread[th])
	}
	fmt.Fprintln(w)
}
