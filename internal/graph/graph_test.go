package graph

import (
	"slices"
	"sync"
	"testing"
	"time"
)

// buildChain creates n connected vertices h0 -> h1 -> ... -> hn-1.
func buildChain(t *testing.T, g *Graph, n int) []Handle {
	t.Helper()
	hs := make([]Handle, n)
	for i := range hs {
		hs[i] = g.NewVertex(ImplicitTask)
		if i > 0 {
			g.Connect(hs[i-1], hs[i])
		}
	}
	return hs
}

func assertSymmetric(t *testing.T, g *Graph) {
	t.Helper()
	for _, h := range g.Vertices() {
		for _, succ := range g.Exits(h) {
			if !slices.Contains(g.Entries(succ), h) {
				t.Errorf("edge %d->%d missing from target entries", h, succ)
			}
		}
		for _, pred := range g.Entries(h) {
			if !slices.Contains(g.Exits(pred), h) {
				t.Errorf("edge %d->%d missing from source exits", pred, h)
			}
		}
	}
}

func TestNewVertex_AssignsIncreasingIDs(t *testing.T) {
	g := New()
	a := g.NewVertex(RootTask)
	b := g.NewVertex(ImplicitTask)

	if g.Vertex(a).ID() >= g.Vertex(b).ID() {
		t.Errorf("expected increasing ids, got %d then %d", g.Vertex(a).ID(), g.Vertex(b).ID())
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 registered vertices, got %d", g.Len())
	}
	if got, ok := g.Lookup(g.Vertex(b).ID()); !ok || got != b {
		t.Errorf("lookup returned %v, %v", got, ok)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	g := New()
	a := g.NewVertex(RootTask)
	b := g.NewVertex(ImplicitTask)

	if !g.Connect(a, b) {
		t.Fatal("first connect should add the edge")
	}
	if g.Connect(a, b) {
		t.Error("second connect should be a no-op")
	}
	if n := len(g.Exits(a)); n != 1 {
		t.Errorf("expected 1 exit edge, got %d", n)
	}
	if n := len(g.Entries(b)); n != 1 {
		t.Errorf("expected 1 entry edge, got %d", n)
	}
	if !g.IsConnected(a, b) || g.IsConnected(b, a) {
		t.Error("IsConnected reports the wrong direction")
	}
}

func TestDisconnect(t *testing.T) {
	g := New()
	a := g.NewVertex(RootTask)
	b := g.NewVertex(ImplicitTask)
	c := g.NewVertex(ImplicitTask)
	g.Connect(a, b)
	g.Connect(a, c)

	if !g.Disconnect(a, b) {
		t.Fatal("expected edge to be removed")
	}
	if g.Disconnect(a, b) {
		t.Error("disconnecting a missing edge should be a no-op")
	}
	if g.Disconnect(b, c) {
		t.Error("disconnecting a never-connected pair should be a no-op")
	}
	if exits := g.Exits(a); len(exits) != 1 || exits[0] != c {
		t.Errorf("expected exits [c], got %v", exits)
	}
	if len(g.Entries(b)) != 0 {
		t.Errorf("expected b to have no entries, got %v", g.Entries(b))
	}
}

func TestConnect_ConcurrentDistinctPairs(t *testing.T) {
	const n = 64
	g := New()
	src := make([]Handle, n)
	dst := make([]Handle, n)
	for i := 0; i < n; i++ {
		src[i] = g.NewVertex(ImplicitTask)
		dst[i] = g.NewVertex(ChunkTask)
	}

	// Every source fans out to every target; odd targets are removed again.
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < n; j++ {
				g.Connect(src[i], dst[j])
				g.Connect(src[i], dst[j])
			}
			for j := 1; j < n; j += 2 {
				g.Disconnect(src[i], dst[j])
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if got := len(g.Exits(src[i])); got != n/2 {
			t.Errorf("source %d: expected %d exits, got %d", i, n/2, got)
		}
		want := n
		if i%2 == 1 {
			want = 0
		}
		if got := len(g.Entries(dst[i])); got != want {
			t.Errorf("target %d: expected %d entries, got %d", i, want, got)
		}
	}
	if got := g.EdgeCount(); got != n*n/2 {
		t.Errorf("expected %d edges, got %d", n*n/2, got)
	}
	assertSymmetric(t, g)
}

func TestConnect_ConcurrentSamePairNeverDuplicates(t *testing.T) {
	g := New()
	a := g.NewVertex(ImplicitTask)
	b := g.NewVertex(Barrier)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Connect(a, b)
		}()
	}
	wg.Wait()

	if len(g.Exits(a)) != 1 || len(g.Entries(b)) != 1 {
		t.Errorf("expected exactly one edge, got exits=%v entries=%v", g.Exits(a), g.Entries(b))
	}
}

// Opposite-direction operations on the same pair take the locks of different
// vertices in opposite order. Source-exit before target-entry must still
// never deadlock.
func TestConnect_LockOrderOppositeDirections(t *testing.T) {
	g := New()
	a := g.NewVertex(ImplicitTask)
	b := g.NewVertex(ImplicitTask)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for k := 0; k < 500; k++ {
					g.Connect(a, b)
					g.Disconnect(a, b)
				}
			}()
			go func() {
				defer wg.Done()
				for k := 0; k < 500; k++ {
					g.Connect(b, a)
					g.Disconnect(b, a)
				}
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent connect/disconnect in opposite directions did not finish")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("expected no edges left, got %d", g.EdgeCount())
	}
	assertSymmetric(t, g)
}

func TestPlaceholder_RegisteredOnFirstConnect(t *testing.T) {
	g := New()
	a := g.NewVertex(RootTask)
	sink := g.NewPlaceholder(ImplicitTask)

	if g.Vertex(sink).Registered() {
		t.Fatal("placeholder should start unregistered")
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 registered vertex, got %d", g.Len())
	}

	g.Connect(a, sink)
	id := g.Vertex(sink).ID()
	if !g.Vertex(sink).Registered() || id == 0 {
		t.Fatalf("placeholder should be registered after connect, id=%d", id)
	}

	g.Connect(sink, g.NewVertex(ImplicitTask))
	if g.Vertex(sink).ID() != id {
		t.Errorf("placeholder id changed from %d to %d", id, g.Vertex(sink).ID())
	}
}

func TestPlaceholder_ConcurrentRegistration(t *testing.T) {
	g := New()
	sink := g.NewPlaceholder(ImplicitTask)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Connect(g.NewVertex(ImplicitTask), sink)
		}()
	}
	wg.Wait()

	if g.Len() != 17 {
		t.Errorf("expected 17 registered vertices, got %d", g.Len())
	}
	if n := len(g.Entries(sink)); n != 16 {
		t.Errorf("expected 16 entries on sink, got %d", n)
	}
}

func TestRemoveNode_RetiresWithoutReuse(t *testing.T) {
	g := New()
	a := g.NewVertex(Barrier)
	cont := g.NewVertex(ImplicitTask)
	g.Connect(a, cont)

	g.Disconnect(a, cont)
	id := g.Vertex(cont).ID()
	g.RemoveNode(id)

	if _, ok := g.Lookup(id); ok {
		t.Error("retired id should not be found")
	}
	if !g.Vertex(cont).Retired() {
		t.Error("vertex should be marked retired")
	}
	next := g.NewVertex(ImplicitTask)
	if g.Vertex(next).ID() <= id {
		t.Errorf("id %d reused or went backwards after retiring %d", g.Vertex(next).ID(), id)
	}

	// Removing an unknown id is harmless.
	g.RemoveNode(9999)
}

func TestAddNode_AdvancesIDCounter(t *testing.T) {
	g := New()
	h := g.NewPlaceholder(ExplicitTask)
	g.AddNode(41, h)

	if g.Vertex(h).ID() != 41 {
		t.Errorf("expected id 41, got %d", g.Vertex(h).ID())
	}
	next := g.NewVertex(ExplicitTask)
	if g.Vertex(next).ID() != 42 {
		t.Errorf("expected next id 42, got %d", g.Vertex(next).ID())
	}
}

func TestVertices_IDOrder(t *testing.T) {
	g := New()
	var want []int64
	for i := 0; i < 10; i++ {
		want = append(want, g.Vertex(g.NewVertex(ChunkTask)).ID())
	}
	var got []int64
	for _, h := range g.Vertices() {
		got = append(got, g.Vertex(h).ID())
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTimeAccounting(t *testing.T) {
	g := New()
	h := g.NewVertex(ExplicitTask)

	g.Resume(h, 10)
	g.AddTime(h, 15)
	// Suspended between 15 and 40.
	g.Resume(h, 40)
	g.AddTime(h, 42.5)

	if got := g.Vertex(h).TotalTime(); got != 7.5 {
		t.Errorf("expected 7.5 ms, got %v", got)
	}
	if got := g.Vertex(h).LastTime(); got != 42.5 {
		t.Errorf("expected last time 42.5, got %v", got)
	}
}

func TestAttachCounters_Copies(t *testing.T) {
	g := New()
	h := g.NewVertex(ChunkTask)
	vals := []int64{1, 2, 3}
	g.AttachCounters(h, vals)
	vals[0] = 100

	if got := g.Vertex(h).Counters(); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

type countingObserver struct {
	mu        sync.Mutex
	created   int
	connected int
	removed   int
	retire    int
}

func (o *countingObserver) VertexCreated(Type) { o.mu.Lock(); o.created++; o.mu.Unlock() }
func (o *countingObserver) EdgeConnected()     { o.mu.Lock(); o.connected++; o.mu.Unlock() }
func (o *countingObserver) EdgeDisconnected()  { o.mu.Lock(); o.removed++; o.mu.Unlock() }
func (o *countingObserver) VertexRetired(Type) { o.mu.Lock(); o.retire++; o.mu.Unlock() }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	g := New(WithObserver(obs))
	hs := buildChain(t, g, 3)
	g.Connect(hs[0], hs[1])
	g.Disconnect(hs[1], hs[2])
	g.Retire(hs[2])

	if obs.created != 3 || obs.connected != 2 || obs.removed != 1 || obs.retire != 1 {
		t.Errorf("unexpected observer counts: %+v", obs)
	}
}

func TestSetEntryOrder(t *testing.T) {
	g := New()
	a := g.NewVertex(ImplicitTask)
	b := g.NewVertex(ImplicitTask)
	c := g.NewVertex(Barrier)
	g.Connect(a, c)
	g.Connect(b, c)

	if !g.SetEntryOrder(c, []Handle{b, a}) {
		t.Fatal("SetEntryOrder rejected a permutation of the entries")
	}
	if got := g.Entries(c); !slices.Equal(got, []Handle{b, a}) {
		t.Errorf("Entries = %v, want [%d %d]", got, b, a)
	}
	if got := g.Exits(a); !slices.Equal(got, []Handle{c}) {
		t.Errorf("exits of a changed: %v", got)
	}

	for _, bad := range [][]Handle{{a}, {a, a}, {a, c}} {
		if g.SetEntryOrder(c, bad) {
			t.Errorf("SetEntryOrder(%v) accepted an order that does not match the entries", bad)
		}
	}
	if got := g.Entries(c); !slices.Equal(got, []Handle{b, a}) {
		t.Errorf("rejected order modified entries: %v", got)
	}
}
