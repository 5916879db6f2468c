package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sshudler/libtdg/internal/config"
	"github.com/sshudler/libtdg/internal/counters"
	"github.com/sshudler/libtdg/internal/export"
	"github.com/sshudler/libtdg/internal/graph"
	"github.com/sshudler/libtdg/internal/logging"
	"github.com/sshudler/libtdg/internal/metrics"
	"github.com/sshudler/libtdg/internal/reporter"
	"github.com/sshudler/libtdg/internal/snapshot"
	"github.com/sshudler/libtdg/internal/telemetry"
	"github.com/sshudler/libtdg/internal/tracer"
	"github.com/sshudler/libtdg/internal/ui"
	"github.com/sshudler/libtdg/internal/viewer"
	"github.com/sshudler/libtdg/internal/workload"
)

var (
	flagConfig    string
	flagMetrics   string
	flagDot       string
	flagLog       string
	flagCounters  string
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool

	cfg *config.Config
)

// exitError carries the process exit status for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	rootCmd := &cobra.Command{
		Use:   "tdg",
		Short: "Trace parallel programs into task dependency graphs and analyze them",
		Long: `tdg records the execution of a parallel program as a task dependency graph
(regions, implicit and explicit tasks, barriers, loop chunks) and computes
metrics over it: timing statistics, the critical path, a Graphviz
description and a per-chunk log.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagMetrics, "metrics", "", "Comma-separated metrics: tim, cri, dot, log (env TDG_TOOL_METRICS)")
	rootCmd.PersistentFlags().StringVar(&flagDot, "dot", "", "Graphviz output file (default tdg.dot)")
	rootCmd.PersistentFlags().StringVar(&flagLog, "log", "", "Chunk log output file (default chunks.log)")
	rootCmd.PersistentFlags().StringVar(&flagCounters, "counters", "", "Comma-separated counters sampled per chunk (env TDG_COUNTERS)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(viewCmd())

	if err := rootCmd.Execute(); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

// setup resolves the configuration and installs the logger. Flags given on
// the command line override every other source.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("metrics", &cfg.Metrics, flagMetrics)
	override("dot", &cfg.DotFile, flagDot)
	override("log", &cfg.LogFile, flagLog)
	override("counters", &cfg.Counters, flagCounters)
	override("log-level", &cfg.LogLevel, flagLogLevel)
	override("log-format", &cfg.LogFormat, flagLogFormat)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func simulateCmd() *cobra.Command {
	var (
		flagThreads  int
		flagSize     int
		flagChunk    int
		flagSnapshot string
	)

	cmd := &cobra.Command{
		Use:       "simulate <fib|mm|tasks>",
		Short:     "Run a built-in parallel workload under the tracer and report metrics",
		Args:      cobra.ExactArgs(1),
		ValidArgs: workload.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workload.Options{
				Threads: cfg.Workload.Threads,
				Size:    cfg.Workload.Size,
				Chunk:   cfg.Workload.Chunk,
			}
			if cmd.Flags().Changed("threads") {
				opts.Threads = flagThreads
			}
			if cmd.Flags().Changed("size") {
				opts.Size = flagSize
			}
			if cmd.Flags().Changed("chunk") {
				opts.Chunk = flagChunk
			}

			set, err := counters.Parse(cfg.Counters)
			if err != nil {
				return err
			}

			tel := telemetry.New(prometheus.NewRegistry())
			tr := tracer.New(
				graph.New(graph.WithObserver(tel)),
				tracer.WithCounters(set),
				tracer.WithBarrierObserver(tel),
				tracer.WithLogger(slog.Default()),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := workload.Run(ctx, args[0], tr, opts)
			if err != nil {
				return err
			}
			g := tr.Finalize()
			slog.Info("workload finished", "workload", res.Name, "result", res.Value, "vertices", g.Len())

			if flagSnapshot != "" {
				meta := snapshot.Meta{Workload: res.Name, Threads: opts.Threads, Counters: set.Names()}
				err := export.WriteFile("snapshot", flagSnapshot, func(w io.Writer) error {
					return snapshot.Save(w, g, meta)
				})
				if err != nil {
					return fatal(err)
				}
				if !flagJSON {
					fmt.Printf("💾 Snapshot written to %s\n", ui.Bold(flagSnapshot))
				}
			}

			return finalize(g)
		},
	}

	cmd.Flags().IntVar(&flagThreads, "threads", 0, "Team size of every parallel region (default from config, 4)")
	cmd.Flags().IntVar(&flagSize, "size", 0, "Problem size: matrix order, fib argument or task count")
	cmd.Flags().IntVar(&flagChunk, "chunk", 0, "Loop chunk, fib serial cutoff or task weight period")
	cmd.Flags().StringVar(&flagSnapshot, "snapshot", "", "Write the finalized graph as JSON to this file")
	return cmd
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <snapshot.json>",
		Short: "Compute metrics over a saved graph snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := loadSnapshot(args[0], nil)
			if err != nil {
				return err
			}
			return finalize(g)
		},
	}
}

func viewCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "view <snapshot.json>",
		Short: "Serve a saved graph snapshot over HTTP",
		Long: `Loads a snapshot, runs the critical path analysis and serves the graph as
JSON at /graph, as Graphviz at /graph.dot and the loader's metrics at
/metrics until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			tel := telemetry.New(reg)
			g, meta, err := loadSnapshot(args[0], tel)
			if err != nil {
				return err
			}

			addr, err := viewer.Start(flagAddr, g, viewer.WithGatherer(reg))
			if err != nil {
				return err
			}
			fmt.Printf("🌐 Serving run %s (%d vertices) at %s\n", ui.Bold(meta.RunID), g.Len(), ui.Cyan(addr))
			fmt.Printf("   %s\n", ui.Dim("Ctrl+C to stop"))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", ":7171", "Listen address")
	return cmd
}

func loadSnapshot(path string, obs graph.Observer) (*graph.Graph, *snapshot.Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	g, meta, err := snapshot.Load(f, graph.WithObserver(obs))
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("snapshot loaded", "run", meta.RunID, "vertices", g.Len(), "edges", g.EdgeCount())
	return g, meta, nil
}

// finalize computes the configured metrics over g, in order, and prints
// their reports.
func finalize(g *graph.Graph) error {
	kinds, err := metrics.ParseKinds(cfg.Metrics)
	if err != nil {
		return err
	}
	ms := metrics.Select(kinds, metrics.Options{DotFile: cfg.DotFile, LogFile: cfg.LogFile})

	reports, err := metrics.Run(g, ms)
	if err != nil {
		return fatal(err)
	}

	rep := reporter.New(g, reports)
	if flagJSON {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	ui.PrintLogo(os.Stdout)
	rep.PrintSummary(os.Stdout)
	rep.Print(os.Stdout)
	return nil
}

// fatal maps failures to open an output file to exit status 2.
func fatal(err error) error {
	var fe *export.FileError
	if errors.As(err, &fe) {
		return &exitError{code: 2, err: err}
	}
	return err
}
