// Package viewer serves a finalized graph over HTTP: its JSON form for
// browser front ends, its DOT description and the process metrics.
package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sshudler/libtdg/internal/cpm"
	"github.com/sshudler/libtdg/internal/graph"
)

// --- Graph types (the schema served at /graph) ---

type GraphNode struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	TimeMs     float64 `json:"time_ms"`
	IsCritical bool    `json:"is_critical"`
	Level      int     `json:"level"`
	Thread     int     `json:"thread"`
	Counters   []int64 `json:"counters,omitempty"`
}

type GraphEdge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type GraphMetadata struct {
	TotalVertices int     `json:"total_vertices"`
	TotalEdges    int     `json:"total_edges"`
	TotalLevels   int     `json:"total_levels"`
	PathTimeMs    float64 `json:"path_time_ms"`
	PathLength    int     `json:"path_length"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []int64       `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph runs the critical path analysis on g and converts the result into
// the normalised Graph the UI renders. g must be frozen.
func toGraph(g *graph.Graph) *Graph {
	res := cpm.Analyze(g)

	nodes := make([]GraphNode, 0, len(res.Order))
	for _, h := range g.Vertices() {
		v := g.Vertex(h)
		nodes = append(nodes, GraphNode{
			ID:         v.ID(),
			Label:      v.Label(),
			Type:       v.Type().String(),
			TimeMs:     v.TotalTime(),
			IsCritical: v.Critical(),
			Level:      v.Level(),
			Thread:     v.Thread(),
			Counters:   v.Counters(),
		})
	}

	edges := make([]GraphEdge, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, GraphEdge{From: g.Vertex(e.Source).ID(), To: g.Vertex(e.Target).ID()})
	}

	critical := res.CriticalIDs()
	if critical == nil {
		critical = []int64{}
	}
	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: critical,
		Metadata: GraphMetadata{
			TotalVertices: len(nodes),
			TotalEdges:    len(edges),
			TotalLevels:   len(res.Waves),
			PathTimeMs:    res.PathTime,
			PathLength:    res.PathLength,
		},
	}
}

// --- HTTP server ---

type options struct {
	gatherer prometheus.Gatherer
}

// Option configures the viewer handler.
type Option func(*options)

// WithGatherer serves the metrics of gatherer at /metrics instead of the
// default registry.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = gatherer }
}

type server struct {
	graph []byte // JSON, rendered once
	dot   []byte
}

func (s *server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.graph)
}

func (s *server) handleGetDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Write(s.dot)
}

// Handler returns the viewer routes for g. The graph is analyzed and
// rendered once; it must not be mutated afterwards.
func Handler(g *graph.Graph, opts ...Option) (http.Handler, error) {
	o := options{gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := json.Marshal(toGraph(g))
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	var dot bytes.Buffer
	if err := g.WriteDOT(&dot); err != nil {
		return nil, fmt.Errorf("render dot: %w", err)
	}
	srv := &server{graph: data, dot: dot.Bytes()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /graph", srv.handleGetGraph)
	mux.HandleFunc("GET /graph.dot", srv.handleGetDOT)
	mux.Handle("GET /metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("libtdg viewer: GET /graph, /graph.dot or /metrics\n"))
	})
	return mux, nil
}

// Start launches the viewer HTTP server on addr (e.g. ":7171") in the
// background. Returns the base URL (e.g. "http://localhost:7171") or an error.
func Start(addr string, g *graph.Graph, opts ...Option) (string, error) {
	h, err := Handler(g, opts...)
	if err != nil {
		return "", err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	go http.Serve(ln, h)

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	return fmt.Sprintf("http://localhost:%s", port), nil
}
