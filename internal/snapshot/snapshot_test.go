package snapshot

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sshudler/libtdg/internal/cpm"
	"github.com/sshudler/libtdg/internal/graph"
)

func entryIDs(g *graph.Graph, h graph.Handle) []int64 {
	var ids []int64
	for _, p := range g.Entries(h) {
		ids = append(ids, g.Vertex(p).ID())
	}
	return ids
}

func buildLoopGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	root := g.NewVertex(graph.RootTask)
	ws := g.NewVertex(graph.WorksharingTask)
	c1 := g.NewVertex(graph.ChunkTask)
	c2 := g.NewVertex(graph.ChunkTask)
	sink := g.NewVertex(graph.ImplicitTask)

	g.Connect(root, ws)
	g.Connect(ws, c1)
	g.Connect(ws, c2)
	g.Connect(c2, sink)
	g.Connect(c1, sink)

	g.SetTotalTime(root, 1.5)
	g.SetBounds(ws, 0, 99)
	g.SetBounds(c1, 0, 49)
	g.SetBounds(c2, 50, 99)
	g.SetLoopInfo(c2, 3, 1)
	g.SetTotalTime(c1, 4)
	g.SetTotalTime(c2, 2.25)
	g.AttachCounters(c1, []int64{100, 7})
	return g
}

func TestRoundTrip(t *testing.T) {
	g := buildLoopGraph(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, g, Meta{
		CreatedAt: created,
		Workload:  "mm",
		Threads:   2,
		Counters:  []string{"ALLOC_BYTES", "GC_CYCLES"},
	}))

	_, err := uuid.Parse(gjson.GetBytes(buf.Bytes(), "run_id").String())
	require.NoError(t, err, "run id is a uuid")

	loaded, meta, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, "mm", meta.Workload)
	assert.Equal(t, 2, meta.Threads)
	assert.True(t, created.Equal(meta.CreatedAt))
	assert.Equal(t, []string{"ALLOC_BYTES", "GC_CYCLES"}, meta.Counters)

	require.Equal(t, g.Len(), loaded.Len())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())

	for _, h := range g.Vertices() {
		want := g.Vertex(h)
		lh, ok := loaded.Lookup(want.ID())
		require.True(t, ok, "id %d", want.ID())
		got := loaded.Vertex(lh)

		assert.Equal(t, want.Type(), got.Type())
		assert.Equal(t, want.TotalTime(), got.TotalTime())
		assert.Equal(t, want.Lower(), got.Lower())
		assert.Equal(t, want.Upper(), got.Upper())
		assert.Equal(t, want.LoopCounter(), got.LoopCounter())
		assert.Equal(t, want.Thread(), got.Thread())
		assert.Equal(t, want.Counters(), got.Counters())

		var wantExits, gotExits []int64
		for _, e := range g.Exits(h) {
			wantExits = append(wantExits, g.Vertex(e).ID())
		}
		for _, e := range loaded.Exits(lh) {
			gotExits = append(gotExits, loaded.Vertex(e).ID())
		}
		assert.Equal(t, wantExits, gotExits)
		assert.Equal(t, entryIDs(g, h), entryIDs(loaded, lh), "entries of %d", want.ID())
	}

	// New vertices never reuse a loaded id.
	h := loaded.NewVertex(graph.Barrier)
	assert.Equal(t, int64(6), loaded.Vertex(h).ID())
}

func TestSave_KeepsRunID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, graph.New(), Meta{RunID: "run-1"}))

	g, meta, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, 0, g.Len())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"invalid json", `{"vertices": [`, "invalid JSON"},
		{"unknown type", `{"vertices":[{"id":1,"type":"FORK"}]}`, "unknown type"},
		{"duplicate id", `{"vertices":[{"id":1,"type":"ROOT_TASK"},{"id":1,"type":"BARRIER"}]}`, "duplicate id"},
		{"zero id", `{"vertices":[{"id":0,"type":"ROOT_TASK"}]}`, "positive"},
		{"dangling edge", `{"vertices":[{"id":1,"type":"ROOT_TASK"}],"edges":[{"from":1,"to":2}]}`, "unknown target"},
		{"cycle", `{"vertices":[{"id":1,"type":"IMP_TASK"},{"id":2,"type":"IMP_TASK"}],
			"edges":[{"from":1,"to":2},{"from":2,"to":1}]}`, "cycle"},
		{"bad time", `{"created_at":"yesterday"}`, "created_at"},
		{"unknown entry", `{"vertices":[{"id":1,"type":"IMP_TASK"},{"id":2,"type":"IMP_TASK","entries":[1,7]}],
			"edges":[{"from":1,"to":2}]}`, "unknown entry"},
		{"entries without edges", `{"vertices":[{"id":1,"type":"IMP_TASK"},{"id":2,"type":"IMP_TASK","entries":[1]},
			{"id":3,"type":"IMP_TASK","entries":[1,2]}],"edges":[{"from":1,"to":3}]}`, "do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRoundTrip_KeepsCriticalPathTieBreak(t *testing.T) {
	g := graph.New()
	a := g.NewVertex(graph.ImplicitTask)
	b := g.NewVertex(graph.ImplicitTask)
	c := g.NewVertex(graph.Barrier)
	g.SetTotalTime(a, 2)
	g.SetTotalTime(b, 2)
	g.SetTotalTime(c, 1)
	g.Connect(b, c)
	g.Connect(a, c)

	want := cpm.Analyze(g).CriticalIDs()
	require.Equal(t, []int64{2, 3}, want)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, g, Meta{}))
	loaded, _, err := Load(&buf)
	require.NoError(t, err)

	lc, ok := loaded.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 1}, entryIDs(loaded, lc))
	assert.Equal(t, want, cpm.Analyze(loaded).CriticalIDs())
}
