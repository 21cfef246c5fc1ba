package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/config"
	"github.com/samcharles93/kerntune/internal/space"
)

// resolveWith runs a throwaway command carrying the tune flags and returns
// the configuration it resolved.
func resolveWith(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var (
		cfg config.Config
		err error
	)
	cmd := &cli.Command{
		Name:  "tune",
		Flags: append(sweepFlags(), configFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err = resolveConfig(cmd)
			return nil
		},
	}
	if runErr := cmd.Run(context.Background(), append([]string{"tune"}, args...)); runErr != nil {
		t.Fatalf("run: %v", runErr)
	}
	return cfg, err
}

func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	names := []string{"LSC_UNROLLS", "KERNTUNE_UNROLLS"}
	for _, envs := range numericEnv {
		names = append(names, envs...)
	}
	for _, name := range names {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func TestResolveDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := resolveWith(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Batches != 20000 || cfg.Iterations != 64 {
		t.Fatalf("batches/iters: got %d/%d", cfg.Batches, cfg.Iterations)
	}
	if !cfg.Baseline.Equal(space.DefaultBaseline()) {
		t.Fatalf("baseline: got %s", cfg.Baseline)
	}
	if cfg.Space.Size() != 96 {
		t.Fatalf("space size: got %d want 96", cfg.Space.Size())
	}
}

func TestResolvePrecedence(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "kerntune.yaml")
	yaml := "batches: 500\niters: 16\nknobs:\n  u: [1, 2]\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LSC_ITERS", "32")

	cfg, err := resolveWith(t, "--config", path, "--batches", "100", "--prefetch", "0,16")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Batches != 100 {
		t.Fatalf("flag must win: batches %d", cfg.Batches)
	}
	if cfg.Iterations != 32 {
		t.Fatalf("env must win over file: iters %d", cfg.Iterations)
	}
	u, _ := cfg.Space.Knob("u")
	if space.FormatIntList(u.Values) != "1,2" {
		t.Fatalf("file must win over default: unrolls %v", u.Values)
	}
	pf, _ := cfg.Space.Knob("pf")
	if space.FormatIntList(pf.Values) != "0,16" {
		t.Fatalf("prefetch: %v", pf.Values)
	}
}

func TestResolveEnvKnobList(t *testing.T) {
	isolateConfig(t)
	t.Setenv("LSC_UNROLLS", "1,4")

	cfg, err := resolveWith(t)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	u, _ := cfg.Space.Knob("u")
	if space.FormatIntList(u.Values) != "1,4" {
		t.Fatalf("unrolls from env: %v", u.Values)
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	isolateConfig(t)

	tests := [][]string{
		{"--unrolls", "1,x"},
		{"--unrolls", "2,2"},
		{"--batches", "0"},
		{"--baseline", "u=1"},
		{"--size-cap", "0"},
		{"--store", "s3"},
		{"--config", filepath.Join(t.TempDir(), "missing.yaml")},
	}
	for _, args := range tests {
		if _, err := resolveWith(t, args...); !errors.Is(err, config.ErrInvalidConfig) {
			t.Fatalf("%v: expected ErrInvalidConfig, got %v", args, err)
		}
	}
}

func TestResolveRejectsBlankEnv(t *testing.T) {
	for _, env := range []string{"LSC_BATCHES", "LSC_SIZE_CAP", "KERNTUNE_JOBS", "KERNTUNE_REDIS_TTL"} {
		t.Run(env, func(t *testing.T) {
			isolateConfig(t)
			t.Setenv(env, "")

			if _, err := resolveWith(t); !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("%s=\"\": expected ErrInvalidConfig, got %v", env, err)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	if got := envName("LSC", "size-cap"); got != "LSC_SIZE_CAP" {
		t.Fatalf("envName: got %q", got)
	}
	got := splitList(" parser, ,ring ,obook")
	if len(got) != 3 || got[1] != "ring" {
		t.Fatalf("splitList: got %v", got)
	}
}
