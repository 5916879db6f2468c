package reporter

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/sshudler/libtdg/internal/graph"
	"github.com/sshudler/libtdg/internal/metrics"
)

func makeGraph() *graph.Graph {
	g := graph.New()
	root := g.NewVertex(graph.RootTask)
	c1 := g.NewVertex(graph.ChunkTask)
	c2 := g.NewVertex(graph.ChunkTask)
	g.SetLoopInfo(c2, 0, 1)
	sink := g.NewVertex(graph.ImplicitTask)
	for h, ms := range map[graph.Handle]float64{root: 1, c1: 2, c2: 3, sink: 4} {
		g.SetTotalTime(h, ms)
	}
	g.Connect(root, c1)
	g.Connect(root, c2)
	g.Connect(c1, sink)
	g.Connect(c2, sink)
	return g
}

func makeReports(t *testing.T, g *graph.Graph, kinds ...metrics.Kind) []*metrics.Report {
	t.Helper()
	dir := t.TempDir()
	opts := metrics.Options{DotFile: filepath.Join(dir, "tdg.dot"), LogFile: filepath.Join(dir, "chunks.log")}
	reports, err := metrics.Run(g, metrics.Select(kinds, opts))
	if err != nil {
		t.Fatalf("run metrics: %v", err)
	}
	return reports
}

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPrint_TotalTime(t *testing.T) {
	g := makeGraph()
	r := New(g, makeReports(t, g, metrics.TotalTime))

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	for _, want := range []string{
		"Total time (ms): 10\n",
		"Total tasks: 4\n",
		"Total chunks time: 5\n",
		"Total chunks: 2\n",
		"Average time per task: 2.5\n",
		"Median time: 2.5\n",
		"1st quartile: 2\n",
		"3rd quartile: 4\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrint_CriticalPath(t *testing.T) {
	g := makeGraph()
	r := New(g, makeReports(t, g, metrics.CriticalPath))

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	if !strings.Contains(out, "Longest (critical) path (time ms): 8\n") {
		t.Errorf("missing critical path time:\n%s", out)
	}
	if !strings.Contains(out, "Longest (critical) path (length): 3\n") {
		t.Errorf("missing critical path length:\n%s", out)
	}
	if !strings.Contains(out, "1 → 3 → 4") {
		t.Errorf("expected heavier chunk on the path:\n%s", out)
	}
	if strings.Count(out, "Level") != 3 {
		t.Errorf("expected 3 levels:\n%s", out)
	}
}

func TestPrint_Files(t *testing.T) {
	g := makeGraph()
	r := New(g, makeReports(t, g, metrics.DotFile, metrics.ChunkLog))

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()
	if !strings.Contains(out, "tdg.dot") || !strings.Contains(out, "chunks.log") {
		t.Errorf("expected both artifact paths:\n%s", out)
	}
}

func TestJSON(t *testing.T) {
	g := makeGraph()
	r := New(g, makeReports(t, g, metrics.TotalTime, metrics.CriticalPath))

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		Vertices int `json:"vertices"`
		Edges    int `json:"edges"`
		Reports  []struct {
			Metric   string `json:"metric"`
			Critical *struct {
				Vertices []int64 `json:"vertices"`
			} `json:"critical_path"`
		} `json:"reports"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Vertices != 4 || parsed.Edges != 4 {
		t.Errorf("expected 4 vertices and 4 edges, got %d/%d", parsed.Vertices, parsed.Edges)
	}
	if len(parsed.Reports) != 2 || parsed.Reports[1].Metric != "cri" {
		t.Fatalf("unexpected reports: %s", data)
	}
	if got := parsed.Reports[1].Critical.Vertices; len(got) != 3 {
		t.Errorf("expected 3 critical vertices, got %v", got)
	}
}

func TestPrintSummary(t *testing.T) {
	r := New(makeGraph(), nil)

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	out := buf.String()

	if !strings.Contains(out, "CHUNK_TASK") || !strings.Contains(out, "[t1] 1 chunks") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}
