package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/sshudler/libtdg/internal/graph"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the colored libtdg banner to w.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	nodes := color.New(color.FgYellow)
	edges := color.New(color.FgCyan, color.Faint)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +------------------------+")
	nodes.Fprintln(w, "   |    o       o       o   |")
	edges.Fprintln(w, "   |     \\     / \\     /    |")
	brand.Fprintln(w, "   |      L I B T D G       |")
	edges.Fprintln(w, "   |     /     \\ /     \\    |")
	nodes.Fprintln(w, "   |    o       o       o   |")
	frame.Fprintln(w, "   +------------------------+")
	tag.Fprintf(w, "   %s Task dependency graph tracer\n", Dim("🧵"))
	fmt.Fprintln(w)
}

// typeColors mirrors the DOT fill colours as closely as a terminal allows.
var typeColors = map[graph.Type]func(a ...interface{}) string{
	graph.RootTask:        BoldWhite,
	graph.ImplicitTask:    BoldYellow,
	graph.WorksharingTask: BoldGreen,
	graph.ChunkTask:       color.New(color.FgHiYellow).SprintFunc(),
	graph.ExplicitTask:    BoldCyan,
	graph.Barrier:         BoldRed,
	graph.TaskWait:        color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// TypeName returns the colored name of a vertex type.
func TypeName(t graph.Type) string {
	if c, ok := typeColors[t]; ok {
		return c(t.String())
	}
	return t.String()
}

// threadColors is a palette of distinct bold colors for telling threads apart.
var threadColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// ThreadPrefix returns a colored [t<n>] prefix string. Each thread number
// gets a stable color from the palette.
func ThreadPrefix(thread int) string {
	c := threadColors[thread%len(threadColors)]
	return Dim("[") + c(fmt.Sprintf("t%d", thread)) + Dim("]")
}

// CriticalMark returns the marker shown next to critical path vertices.
func CriticalMark(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}
