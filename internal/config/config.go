// Package config holds the resolved settings of a sweep and the optional
// YAML file that supplies defaults for them.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Store selects where result sets are persisted.
type Store struct {
	Kind          string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// Config is the fully resolved configuration of a sweep.
type Config struct {
	SourceDir string
	BuildDir  string
	Artifact  string
	RunsDir   string
	Jobs      int

	Kernels  []string
	Space    space.Space
	Baseline space.ParameterSet

	Batches    int
	Iterations int

	Weights score.Weights
	SizeCap float64

	Store Store

	MetricsAddr     string
	MetricsTextfile string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		SourceDir:  ".",
		BuildDir:   "build",
		Artifact:   "bench",
		RunsDir:    filepath.Join("data", "runs"),
		Jobs:       runtime.NumCPU(),
		Kernels:    []string{"parser", "ring", "obook"},
		Space:      space.Default(),
		Baseline:   space.DefaultBaseline(),
		Batches:    20000,
		Iterations: 64,
		Weights:    score.DefaultWeights(),
		SizeCap:    score.DefaultSizeCap,
		Store: Store{
			Kind: StoreFile,
			Path: filepath.Join("data", "reports", "summary.json"),
		},
	}
}

// Validate checks every setting before any build starts.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.SourceDir == "" {
		add("source dir is empty")
	}
	if c.BuildDir == "" {
		add("build dir is empty")
	}
	if c.Artifact == "" {
		add("artifact name is empty")
	}
	if c.RunsDir == "" {
		add("runs dir is empty")
	}
	if c.Jobs < 1 {
		add("jobs must be at least 1, got %d", c.Jobs)
	}
	if len(c.Kernels) == 0 {
		add("no kernels")
	}
	for i, k := range c.Kernels {
		if k == "" {
			add("kernel %d has an empty name", i)
		}
		// kernel names become sample file names under the runs dir
		if strings.ContainsAny(k, `/\`) || strings.Contains(k, "..") {
			add("kernel %q must not contain path separators or ..", k)
		}
		if slices.Index(c.Kernels, k) != i {
			add("kernel %q listed twice", k)
		}
	}
	if err := c.Space.Validate(); err != nil {
		add("%v", err)
	} else if err := c.Space.CheckParameterSet(c.Baseline); err != nil {
		add("baseline: %v", err)
	}
	if c.Batches < 1 {
		add("batches must be at least 1, got %d", c.Batches)
	}
	if c.Iterations < 1 {
		add("iterations must be at least 1, got %d", c.Iterations)
	}
	if _, err := score.New(c.Weights, c.SizeCap); err != nil {
		add("%v", err)
	}

	switch c.Store.Kind {
	case StoreFile:
		if c.Store.Path == "" {
			add("file store needs an output path")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			add("redis store needs an address")
		}
		if c.Store.RedisDB < 0 {
			add("redis db must be >= 0, got %d", c.Store.RedisDB)
		}
		if c.Store.RedisTTL < 0 {
			add("redis ttl must be >= 0, got %s", c.Store.RedisTTL)
		}
	default:
		add("unknown store %q (want %s or %s)", c.Store.Kind, StoreFile, StoreRedis)
	}

	return errors.Join(errs...)
}

// Scorer returns the scorer for the configured weights and cap.
func (c Config) Scorer() (score.Scorer, error) {
	sc, err := score.New(c.Weights, c.SizeCap)
	if err != nil {
		return score.Scorer{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return sc, nil
}

// File is the YAML configuration file (~/.config/kerntune/config.yaml).
// Scalar fields are pointers so "not set" differs from a zero value.
type File struct {
	SourceDir *string `yaml:"source_dir"`
	BuildDir  *string `yaml:"build_dir"`
	Artifact  *string `yaml:"artifact"`
	RunsDir   *string `yaml:"runs_dir"`
	Out       *string `yaml:"out"`
	Jobs      *int    `yaml:"jobs"`

	Kernels  []string         `yaml:"kernels"`
	Knobs    map[string][]int `yaml:"knobs"`
	Baseline *string          `yaml:"baseline"`

	Batches    *int `yaml:"batches"`
	Iterations *int `yaml:"iters"`

	SizeCap *float64 `yaml:"size_cap"`
	Weights struct {
		P999  *float64 `yaml:"p999"`
		P99   *float64 `yaml:"p99"`
		Stdev *float64 `yaml:"stdev"`
	} `yaml:"weights"`

	Store *string `yaml:"store"`
	Redis struct {
		Addr     *string        `yaml:"addr"`
		Password *string        `yaml:"password"`
		DB       *int           `yaml:"db"`
		TTL      *time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	MetricsAddr     *string `yaml:"metrics_addr"`
	MetricsTextfile *string `yaml:"metrics_textfile"`
	ServerAddress   *string `yaml:"server_address"`

	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
}

// DefaultPath is the config file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kerntune", "config.yaml")
}

// Load reads a config file. A missing file yields a zero File; a file that
// exists but does not parse is an error.
func Load(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return f, nil
}

// Apply copies every value present in the file into cfg unless the
// matching flag was set on the command line or through its environment
// variable. isSet is usually cli.Command.IsSet.
func (f File) Apply(cfg *Config, isSet func(name string) bool) error {
	set(f.SourceDir, &cfg.SourceDir, "source-dir", isSet)
	set(f.BuildDir, &cfg.BuildDir, "build-dir", isSet)
	set(f.Artifact, &cfg.Artifact, "artifact", isSet)
	set(f.RunsDir, &cfg.RunsDir, "runs-dir", isSet)
	set(f.Out, &cfg.Store.Path, "out", isSet)
	set(f.Jobs, &cfg.Jobs, "jobs", isSet)
	if len(f.Kernels) > 0 && !isSet("kernels") {
		cfg.Kernels = append([]string(nil), f.Kernels...)
	}
	set(f.Batches, &cfg.Batches, "batches", isSet)
	set(f.Iterations, &cfg.Iterations, "iters", isSet)
	set(f.SizeCap, &cfg.SizeCap, "size-cap", isSet)
	set(f.Weights.P999, &cfg.Weights.P999, "w-p999", isSet)
	set(f.Weights.P99, &cfg.Weights.P99, "w-p99", isSet)
	set(f.Weights.Stdev, &cfg.Weights.Stdev, "w-stdev", isSet)
	set(f.Store, &cfg.Store.Kind, "store", isSet)
	set(f.Redis.Addr, &cfg.Store.RedisAddr, "redis-addr", isSet)
	set(f.Redis.Password, &cfg.Store.RedisPassword, "redis-password", isSet)
	set(f.Redis.DB, &cfg.Store.RedisDB, "redis-db", isSet)
	set(f.Redis.TTL, &cfg.Store.RedisTTL, "redis-ttl", isSet)
	set(f.MetricsAddr, &cfg.MetricsAddr, "metrics-addr", isSet)
	set(f.MetricsTextfile, &cfg.MetricsTextfile, "metrics-textfile", isSet)

	for _, name := range slices.Sorted(maps.Keys(f.Knobs)) {
		if isSet(KnobFlag(name)) {
			continue
		}
		sp, err := cfg.Space.WithValues(name, f.Knobs[name])
		if err != nil {
			return fmt.Errorf("%w: config knob %q: %w", ErrInvalidConfig, name, err)
		}
		cfg.Space = sp
	}
	if f.Baseline != nil && !isSet("baseline") {
		ps, err := space.ParseParameterSet(cfg.Space, *f.Baseline)
		if err != nil {
			return fmt.Errorf("%w: config baseline: %w", ErrInvalidConfig, err)
		}
		cfg.Baseline = ps
	}
	return nil
}

// KnobFlag maps a knob name to the command-line flag that overrides it.
func KnobFlag(knob string) string {
	switch knob {
	case "u":
		return "unrolls"
	case "pf":
		return "prefetch"
	case "bf":
		return "flatten"
	case "la":
		return "layout"
	case "al":
		return "align"
	}
	return knob
}

func set[T any](v *T, dst *T, flag string, isSet func(string) bool) {
	if v != nil && !isSet(flag) {
		*dst = *v
	}
}
