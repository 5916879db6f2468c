// Package counters samples process-wide runtime counters around units of
// work. It takes the place of hardware performance counters: a Set is
// configured from a list of names, read before and after a chunk, and the
// difference is attached to the chunk's vertex.
package counters

import (
	"fmt"
	"runtime/metrics"
	"strings"
)

// aliases maps short upper-case names to runtime/metrics sample names.
var aliases = map[string]string{
	"ALLOC_BYTES":   "/gc/heap/allocs:bytes",
	"ALLOC_OBJECTS": "/gc/heap/allocs:objects",
	"FREE_BYTES":    "/gc/heap/frees:bytes",
	"GC_CYCLES":     "/gc/cycles/total:gc-cycles",
	"GOROUTINES":    "/sched/goroutines:goroutines",
	"HEAP_BYTES":    "/memory/classes/heap/objects:bytes",
}

// Set is an ordered list of counters. A Set is safe for concurrent use.
type Set struct {
	names   []string // as configured
	samples []string // runtime/metrics names
}

// Parse splits a comma-separated counter list and builds a Set from it.
func Parse(list string) (*Set, error) {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return New(names)
}

// New validates names against the counters supported by the runtime. Each
// name is either an alias such as ALLOC_BYTES or a runtime/metrics name with
// a scalar value.
func New(names []string) (*Set, error) {
	supported := make(map[string]metrics.ValueKind)
	for _, d := range metrics.All() {
		supported[d.Name] = d.Kind
	}

	s := &Set{}
	for _, name := range names {
		sample := name
		if full, ok := aliases[strings.ToUpper(name)]; ok {
			sample = full
		}
		kind, ok := supported[sample]
		if !ok {
			return nil, fmt.Errorf("counter %s: not supported by this runtime", name)
		}
		if kind != metrics.KindUint64 && kind != metrics.KindFloat64 {
			return nil, fmt.Errorf("counter %s: not a scalar counter", name)
		}
		s.names = append(s.names, name)
		s.samples = append(s.samples, sample)
	}
	return s, nil
}

// Len returns the number of configured counters. A nil Set has none.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the configured counter names in order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

// Read samples every counter. It returns nil for an empty Set.
func (s *Set) Read() []int64 {
	if s.Len() == 0 {
		return nil
	}
	buf := make([]metrics.Sample, len(s.samples))
	for i, name := range s.samples {
		buf[i].Name = name
	}
	metrics.Read(buf)

	vals := make([]int64, len(buf))
	for i, smp := range buf {
		switch smp.Value.Kind() {
		case metrics.KindUint64:
			vals[i] = int64(smp.Value.Uint64())
		case metrics.KindFloat64:
			vals[i] = int64(smp.Value.Float64())
		}
	}
	return vals
}

// Delta returns end-start per counter. Gauges may yield negative values.
func Delta(start, end []int64) []int64 {
	if len(start) != len(end) {
		return nil
	}
	d := make([]int64, len(end))
	for i := range end {
		d[i] = end[i] - start[i]
	}
	return d
}
