package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/config"
	"github.com/samcharles93/kerntune/internal/results"
	"github.com/samcharles93/kerntune/internal/space"
)

// loadConfigFile reads --config, or the default path when the flag is not
// given. Only an explicitly named file has to exist.
func loadConfigFile(cmd *cli.Command) (config.File, error) {
	path := cmd.String("config")
	if path == "" {
		return config.Load(config.DefaultPath())
	}
	if _, err := os.Stat(path); err != nil {
		return config.File{}, fmt.Errorf("%w: config file: %w", config.ErrInvalidConfig, err)
	}
	return config.Load(path)
}

// resolveConfig layers defaults, the config file and command-line flags
// (with their environment variables), then validates the result.
func resolveConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()
	file, err := loadConfigFile(cmd)
	if err != nil {
		return cfg, err
	}
	if err := rejectBlankEnv(cmd); err != nil {
		return cfg, err
	}
	if err := file.Apply(&cfg, cmd.IsSet); err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// rejectBlankEnv fails when a numeric flag of cmd has an environment
// variable that is present but empty.
func rejectBlankEnv(cmd *cli.Command) error {
	defined := make(map[string]bool)
	for _, f := range cmd.Flags {
		for _, name := range f.Names() {
			defined[name] = true
		}
	}
	for _, flag := range slices.Sorted(maps.Keys(numericEnv)) {
		if !defined[flag] {
			continue
		}
		for _, env := range numericEnv[flag] {
			if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: %s is set but empty (--%s)", config.ErrInvalidConfig, env, flag)
			}
		}
	}
	return nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) error {
	str := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	num := func(name string, dst *int) {
		if cmd.IsSet(name) {
			*dst = cmd.Int(name)
		}
	}
	float := func(name string, dst *float64) {
		if cmd.IsSet(name) {
			*dst = cmd.Float(name)
		}
	}

	str("source-dir", &cfg.SourceDir)
	str("build-dir", &cfg.BuildDir)
	str("artifact", &cfg.Artifact)
	str("runs-dir", &cfg.RunsDir)
	num("jobs", &cfg.Jobs)
	num("batches", &cfg.Batches)
	num("iters", &cfg.Iterations)
	float("size-cap", &cfg.SizeCap)
	float("w-p999", &cfg.Weights.P999)
	float("w-p99", &cfg.Weights.P99)
	float("w-stdev", &cfg.Weights.Stdev)
	str("metrics-addr", &cfg.MetricsAddr)
	str("metrics-textfile", &cfg.MetricsTextfile)

	str("store", &cfg.Store.Kind)
	str("out", &cfg.Store.Path)
	str("redis-addr", &cfg.Store.RedisAddr)
	str("redis-password", &cfg.Store.RedisPassword)
	num("redis-db", &cfg.Store.RedisDB)
	if cmd.IsSet("redis-ttl") {
		cfg.Store.RedisTTL = cmd.Duration("redis-ttl")
	}

	if cmd.IsSet("kernels") {
		cfg.Kernels = splitList(cmd.String("kernels"))
	}

	for _, k := range cfg.Space.Knobs {
		name := config.KnobFlag(k.Name)
		if !cmd.IsSet(name) {
			continue
		}
		values, err := space.ParseIntList(cmd.String(name))
		if err != nil {
			return fmt.Errorf("%w: --%s: %w", config.ErrInvalidConfig, name, err)
		}
		sp, err := cfg.Space.WithValues(k.Name, values)
		if err != nil {
			return fmt.Errorf("%w: --%s: %w", config.ErrInvalidConfig, name, err)
		}
		cfg.Space = sp
	}
	if cmd.IsSet("baseline") {
		ps, err := space.ParseParameterSet(cfg.Space, cmd.String("baseline"))
		if err != nil {
			return fmt.Errorf("%w: --baseline: %w", config.ErrInvalidConfig, err)
		}
		cfg.Baseline = ps
	}
	return nil
}

// openStore returns the configured result store and a close func.
func openStore(ctx context.Context, s config.Store) (results.Store, func() error, error) {
	switch s.Kind {
	case config.StoreRedis:
		rs, err := results.NewRedisStore(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB, s.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		return results.FileStore{Path: s.Path}, func() error { return nil }, nil
	}
}

// loadSet opens the store and loads one run.
func loadSet(ctx context.Context, cmd *cli.Command) (*results.Set, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeStore() }()
	return store.Load(ctx, cmd.String("run"))
}

func runFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "run",
		Usage: "run id to load",
		Value: results.Latest,
	}
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinKernels(kernels []string) string {
	return strings.Join(kernels, ",")
}

// envName maps a flag name to its environment variable, e.g. LSC_UNROLLS.
func envName(prefix, flag string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
