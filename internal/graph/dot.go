package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatTime renders a millisecond value with six significant digits, the
// way the DOT labels and the chunk log print times.
func FormatTime(ms float64) string {
	return strconv.FormatFloat(ms, 'g', 6, 64)
}

// Label returns the type-specific part of a vertex label: the loop counter
// and iteration bounds for chunks, the plain id otherwise.
func (v *Vertex) Label() string {
	if v.typ == ChunkTask {
		return fmt.Sprintf("%d [%d, %d]", v.loopCounter, v.lower, v.upper)
	}
	return strconv.FormatInt(v.id, 10)
}

// CountersString joins the counter samples, each preceded by sep.
func (v *Vertex) CountersString(sep string) string {
	var b strings.Builder
	for _, c := range v.counters {
		b.WriteString(sep)
		b.WriteString(strconv.FormatInt(c, 10))
	}
	return b.String()
}

// WriteDOT writes the graph as a Graphviz digraph: every registered vertex
// once, followed by every edge once.
func (g *Graph) WriteDOT(w io.Writer) error {
	const sep = " * "
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph {")
	handles := g.Vertices()
	for _, h := range handles {
		v := g.vertex(h)
		shape := ""
		if v.critical {
			shape = ` shape="doublecircle"`
		}
		fmt.Fprintf(bw, "%d [style=\"filled\" label=\"%s%s%s%s\" type=\"%s\"%s fillcolor=\"%s\"];\n",
			v.id, FormatTime(v.totalTime), sep, v.Label(), v.CountersString(sep),
			v.typ, shape, v.typ.FillColor())
	}
	for _, h := range handles {
		src := g.vertex(h)
		for _, t := range g.Exits(h) {
			fmt.Fprintf(bw, "%d -> %d;\n", src.id, g.vertex(t).id)
		}
	}
	fmt.Fprintln(bw, "}")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dot: %w", err)
	}
	return nil
}
