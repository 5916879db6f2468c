package viewer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshudler/libtdg/internal/graph"
	"github.com/sshudler/libtdg/internal/telemetry"
)

// diamond builds 1 -> {2, 3} -> 4 with the 3 branch heavier.
func diamond(obs graph.Observer) *graph.Graph {
	g := graph.New(graph.WithObserver(obs))
	a := g.NewVertex(graph.RootTask)
	b := g.NewVertex(graph.ExplicitTask)
	c := g.NewVertex(graph.ExplicitTask)
	d := g.NewVertex(graph.TaskWait)
	g.Connect(a, b)
	g.Connect(a, c)
	g.Connect(b, d)
	g.Connect(c, d)
	g.SetTotalTime(a, 1)
	g.SetTotalTime(b, 2)
	g.SetTotalTime(c, 5)
	g.SetTotalTime(d, 1)
	return g
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	h, err := Handler(diamond(m), WithGatherer(reg))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	t.Run("graph", func(t *testing.T) {
		resp, body := get(t, srv, "/graph")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var out Graph
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		assert.Len(t, out.Nodes, 4)
		assert.Len(t, out.Edges, 4)
		assert.Equal(t, []int64{1, 3, 4}, out.CriticalPath)
		assert.Equal(t, 3, out.Metadata.TotalLevels)
		assert.InDelta(t, 7, out.Metadata.PathTimeMs, 1e-9)
		assert.False(t, out.Nodes[1].IsCritical)
		assert.True(t, out.Nodes[2].IsCritical)
		assert.Equal(t, 2, out.Nodes[3].Level)
	})

	t.Run("dot", func(t *testing.T) {
		resp, body := get(t, srv, "/graph.dot")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body, "digraph"))
		assert.Contains(t, body, "1 -> 3;")
		assert.Contains(t, body, `3 [style="filled" label="5 * 3" type="EXP_TASK" shape="doublecircle"`)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, body := get(t, srv, "/metrics")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "tdg_edges_connected_total 4")
	})

	t.Run("post not allowed", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/graph", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("unknown", func(t *testing.T) {
		resp, _ := get(t, srv, "/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestStart(t *testing.T) {
	base, err := Start("127.0.0.1:0", diamond(nil), WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(base, "http://localhost:"))

	resp, err := http.Get(base + "/graph")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
