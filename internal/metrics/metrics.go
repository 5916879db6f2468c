// Package metrics selects and runs the post-trace analyses over a frozen
// graph.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sshudler/libtdg/internal/cpm"
	"github.com/sshudler/libtdg/internal/export"
	"github.com/sshudler/libtdg/internal/graph"
	"github.com/sshudler/libtdg/internal/stats"
)

// Kind identifies one of the available metrics.
type Kind int

const (
	TotalTime    Kind = iota // "tim": aggregate timing summary
	CriticalPath             // "cri": weighted longest path
	DotFile                  // "dot": Graphviz description of the graph
	ChunkLog                 // "log": per-chunk log
)

var kindTokens = [...]string{
	TotalTime:    "tim",
	CriticalPath: "cri",
	DotFile:      "dot",
	ChunkLog:     "log",
}

// ErrUnknownMetric is returned for metric names that are not recognized.
var ErrUnknownMetric = errors.New("unknown metric")

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindTokens) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindTokens[k]
}

// ParseKind maps a metric token ("tim", "cri", "dot", "log") to its Kind.
func ParseKind(s string) (Kind, error) {
	for i, tok := range kindTokens {
		if tok == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (use tim, cri, dot or log)", ErrUnknownMetric, s)
}

// ParseKinds parses a comma-separated metric list. Surrounding whitespace is
// ignored and an empty list selects nothing. Repeated tokens run repeatedly.
func ParseKinds(list string) ([]Kind, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var kinds []Kind
	for _, tok := range strings.Split(list, ",") {
		k, err := ParseKind(strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Options carries the output paths of the file-producing metrics.
type Options struct {
	DotFile string
	LogFile string
}

// Metric is one selected analysis. Path is used by the file-producing kinds.
type Metric struct {
	Kind Kind
	Path string
}

// Report is the outcome of computing one Metric.
type Report struct {
	Kind     Kind
	Summary  *stats.Summary // TotalTime
	Critical *cpm.Result    // CriticalPath
	Path     string         // DotFile, ChunkLog
}

// Select turns the chosen kinds into metrics, filling in output paths.
func Select(kinds []Kind, opts Options) []Metric {
	ms := make([]Metric, 0, len(kinds))
	for _, k := range kinds {
		m := Metric{Kind: k}
		switch k {
		case DotFile:
			m.Path = opts.DotFile
		case ChunkLog:
			m.Path = opts.LogFile
		}
		ms = append(ms, m)
	}
	return ms
}

// Compute runs the metric over g. The graph must no longer be mutated.
func (m Metric) Compute(g *graph.Graph) (*Report, error) {
	r := &Report{Kind: m.Kind, Path: m.Path}
	switch m.Kind {
	case TotalTime:
		r.Summary = stats.Collect(g)
	case CriticalPath:
		r.Critical = cpm.Analyze(g)
	case DotFile:
		if err := export.WriteDOTFile(m.Path, g); err != nil {
			return nil, err
		}
	case ChunkLog:
		if err := export.WriteChunkLogFile(m.Path, g); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMetric, m.Kind)
	}
	return r, nil
}

// Run computes each metric in order over the same graph and stops at the
// first failure.
func Run(g *graph.Graph, ms []Metric) ([]*Report, error) {
	reports := make([]*Report, 0, len(ms))
	for _, m := range ms {
		slog.Debug("computing metric", "metric", m.Kind.String(), "vertices", g.Len())
		r, err := m.Compute(g)
		if err != nil {
			return reports, fmt.Errorf("metric %s: %w", m.Kind, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
