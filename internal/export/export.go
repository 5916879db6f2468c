// Package export writes the persisted artifacts of a trace: the Graphviz
// description of the graph and the per-chunk log.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sshudler/libtdg/internal/graph"
)

// FileError reports that an export file could not be opened.
type FileError struct {
	Kind string // "dot", "log" or "snapshot"
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("error opening %s file %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// WriteChunkLog writes one line per chunk vertex in id order:
//
//	id  time  thread  loopCounter  [lower,upper]  counters...
func WriteChunkLog(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	for _, h := range g.Vertices() {
		v := g.Vertex(h)
		if v.Type() != graph.ChunkTask {
			continue
		}
		fmt.Fprintf(bw, "%d  %s  %d  %d  [%d,%d] %s\n",
			v.ID(), graph.FormatTime(v.TotalTime()), v.Thread(), v.LoopCounter(),
			v.Lower(), v.Upper(), v.CountersString(" "))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write chunk log: %w", err)
	}
	return nil
}

// WriteDOTFile writes the graph description to path.
func WriteDOTFile(path string, g *graph.Graph) error {
	return WriteFile("dot", path, g.WriteDOT)
}

// WriteChunkLogFile writes the chunk log to path.
func WriteChunkLogFile(path string, g *graph.Graph) error {
	return WriteFile("log", path, func(w io.Writer) error {
		return WriteChunkLog(w, g)
	})
}

// WriteFile creates path and fills it with write. Failing to create the file
// is reported as a *FileError tagged with kind.
func WriteFile(kind, path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return &FileError{Kind: kind, Path: path, Err: err}
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
