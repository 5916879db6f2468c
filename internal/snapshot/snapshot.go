// Package snapshot persists a finalized graph as JSON and rebuilds it, so that
// a trace can be analyzed or viewed after the traced program has exited.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/sshudler/libtdg/internal/graph"
)

// Meta describes the run a snapshot was taken from.
type Meta struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Workload  string    `json:"workload,omitempty"`
	Threads   int       `json:"threads,omitempty"`
	Counters  []string  `json:"counters,omitempty"`
}

type document struct {
	Meta
	Vertices []vertexRecord `json:"vertices"`
	Edges    []edgeRecord   `json:"edges"`
}

type vertexRecord struct {
	ID       int64   `json:"id"`
	Type     string  `json:"type"`
	Time     float64 `json:"time"`
	Lower    int64   `json:"lower,omitempty"`
	Upper    int64   `json:"upper,omitempty"`
	Loop     uint64  `json:"loop,omitempty"`
	Thread   int     `json:"thread,omitempty"`
	Counters []int64 `json:"counters,omitempty"`
	Entries  []int64 `json:"entries,omitempty"`
}

type edgeRecord struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Save writes g as a JSON document. A missing run id or creation time in
// meta is filled in.
func Save(w io.Writer, g *graph.Graph, meta Meta) error {
	if meta.RunID == "" {
		meta.RunID = uuid.New().String()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	doc := document{Meta: meta, Vertices: []vertexRecord{}, Edges: []edgeRecord{}}
	for _, h := range g.Vertices() {
		v := g.Vertex(h)
		var entries []int64
		if preds := g.Entries(h); len(preds) > 1 {
			entries = make([]int64, len(preds))
			for i, p := range preds {
				entries[i] = g.Vertex(p).ID()
			}
		}
		doc.Vertices = append(doc.Vertices, vertexRecord{
			ID:       v.ID(),
			Type:     v.Type().String(),
			Time:     v.TotalTime(),
			Lower:    v.Lower(),
			Upper:    v.Upper(),
			Loop:     v.LoopCounter(),
			Thread:   v.Thread(),
			Counters: v.Counters(),
			Entries:  entries,
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, edgeRecord{
			From: g.Vertex(e.Source).ID(),
			To:   g.Vertex(e.Target).ID(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Load rebuilds a graph from a document written by Save. Vertex ids and the
// predecessor order of every vertex are preserved. Unknown vertex types, duplicate ids, dangling edges and cycles
// are rejected.
func Load(r io.Reader, opts ...graph.Option) (*graph.Graph, *Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("parse snapshot: invalid JSON")
	}
	root := gjson.ParseBytes(data)

	meta := &Meta{
		RunID:    root.Get("run_id").String(),
		Workload: root.Get("workload").String(),
		Threads:  int(root.Get("threads").Int()),
	}
	if ts := root.Get("created_at"); ts.Exists() {
		meta.CreatedAt, err = time.Parse(time.RFC3339Nano, ts.String())
		if err != nil {
			return nil, nil, fmt.Errorf("parse created_at: %w", err)
		}
	}
	root.Get("counters").ForEach(func(_, name gjson.Result) bool {
		meta.Counters = append(meta.Counters, name.String())
		return true
	})

	g := graph.New(opts...)
	if err := loadVertices(g, root.Get("vertices")); err != nil {
		return nil, nil, err
	}
	if err := loadEdges(g, root.Get("edges")); err != nil {
		return nil, nil, err
	}
	if err := loadEntryOrder(g, root.Get("vertices")); err != nil {
		return nil, nil, err
	}
	if cycle := g.DetectCycle(); cycle != nil {
		return nil, nil, fmt.Errorf("snapshot graph has a cycle: %v", cycle)
	}
	return g, meta, nil
}

func loadVertices(g *graph.Graph, vertices gjson.Result) error {
	var err error
	vertices.ForEach(func(_, rec gjson.Result) bool {
		id := rec.Get("id").Int()
		if id <= 0 {
			err = fmt.Errorf("vertex %s: id must be positive", rec.Raw)
			return false
		}
		if _, dup := g.Lookup(id); dup {
			err = fmt.Errorf("vertex %d: duplicate id", id)
			return false
		}
		typ, ok := graph.ParseType(rec.Get("type").String())
		if !ok {
			err = fmt.Errorf("vertex %d: unknown type %q", id, rec.Get("type").String())
			return false
		}

		h := g.NewPlaceholder(typ)
		g.AddNode(id, h)
		g.SetTotalTime(h, rec.Get("time").Float())
		g.SetBounds(h, rec.Get("lower").Int(), rec.Get("upper").Int())
		g.SetLoopInfo(h, rec.Get("loop").Uint(), int(rec.Get("thread").Int()))
		if cs := rec.Get("counters").Array(); len(cs) > 0 {
			vals := make([]int64, len(cs))
			for i, c := range cs {
				vals[i] = c.Int()
			}
			g.AttachCounters(h, vals)
		}
		return true
	})
	return err
}

func loadEdges(g *graph.Graph, edges gjson.Result) error {
	var err error
	edges.ForEach(func(_, rec gjson.Result) bool {
		from, to := rec.Get("from").Int(), rec.Get("to").Int()
		src, ok := g.Lookup(from)
		if !ok {
			err = fmt.Errorf("edge %d->%d: unknown source", from, to)
			return false
		}
		dst, ok := g.Lookup(to)
		if !ok {
			err = fmt.Errorf("edge %d->%d: unknown target", from, to)
			return false
		}
		g.Connect(src, dst)
		return true
	})
	return err
}

// loadEntryOrder restores the recorded predecessor order, which decides ties
// in the critical path. Vertices without one keep the edge order.
func loadEntryOrder(g *graph.Graph, vertices gjson.Result) error {
	var err error
	vertices.ForEach(func(_, rec gjson.Result) bool {
		entries := rec.Get("entries").Array()
		if len(entries) == 0 {
			return true
		}
		id := rec.Get("id").Int()
		h, _ := g.Lookup(id)
		order := make([]graph.Handle, len(entries))
		for i, e := range entries {
			p, ok := g.Lookup(e.Int())
			if !ok {
				err = fmt.Errorf("vertex %d: unknown entry %d", id, e.Int())
				return false
			}
			order[i] = p
		}
		if !g.SetEntryOrder(h, order) {
			err = fmt.Errorf("vertex %d: entries do not match edges", id)
			return false
		}
		return true
	})
	return err
}
