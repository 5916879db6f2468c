// Package config resolves tdg settings from defaults, an optional YAML file,
// an optional .env file and the process environment. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvMetrics     = "TDG_TOOL_METRICS"
	EnvCounters    = "TDG_COUNTERS"
	EnvPAPIMetrics = "TDG_PAPI_METRICS" // older name of TDG_COUNTERS
	EnvDotFile     = "TDG_DOT_FILE"
	EnvLogFile     = "TDG_LOG_FILE"
	EnvLogLevel    = "TDG_LOG_LEVEL"
	EnvThreads     = "TDG_THREADS"
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Config holds every setting of a tdg run.
type Config struct {
	// Metrics is the comma-separated metric list (tim, cri, dot, log).
	Metrics string `yaml:"metrics" json:"metrics"`

	// Counters is the comma-separated list of counters sampled per chunk.
	Counters string `yaml:"counters" json:"counters"`

	DotFile   string `yaml:"dot_file" json:"dot_file"`
	LogFile   string `yaml:"log_file" json:"log_file"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Workload WorkloadConfig `yaml:"workload" json:"workload"`
}

// WorkloadConfig sizes the built-in workloads of tdg simulate.
type WorkloadConfig struct {
	Threads int `yaml:"threads" json:"threads"`
	Size    int `yaml:"size" json:"size"`
	Chunk   int `yaml:"chunk" json:"chunk"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		DotFile:   "tdg.dot",
		LogFile:   "chunks.log",
		LogLevel:  "info",
		LogFormat: "text",
		Workload: WorkloadConfig{
			Threads: 4,
			Size:    20,
			Chunk:   8,
		},
	}
}

// Load resolves the configuration. path names an optional YAML file; an
// empty path skips it, a missing explicit path is an error.
func Load(path string) (*Config, error) {
	return load(path, DefaultEnvFile, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if v, ok := get(EnvMetrics); ok {
		cfg.Metrics = v
	}
	if v, ok := get(EnvCounters); ok {
		cfg.Counters = v
	} else if v, ok := get(EnvPAPIMetrics); ok {
		cfg.Counters = v
	}
	if v, ok := get(EnvDotFile); ok && v != "" {
		cfg.DotFile = v
	}
	if v, ok := get(EnvLogFile); ok && v != "" {
		cfg.LogFile = v
	}
	if v, ok := get(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := get(EnvThreads); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvThreads, err)
		}
		cfg.Workload.Threads = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.Workload.Threads < 1 {
		return fmt.Errorf("workload threads must be positive, got %d", c.Workload.Threads)
	}
	if c.Workload.Size < 0 {
		return fmt.Errorf("workload size must not be negative, got %d", c.Workload.Size)
	}
	if c.Workload.Chunk < 1 {
		return fmt.Errorf("workload chunk must be positive, got %d", c.Workload.Chunk)
	}
	return nil
}
