package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/samcharles93/kerntune/internal/space"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available")
	}
}

func TestBuildDirSingleOwner(t *testing.T) {
	t.Parallel()

	d := NewBuildDir(t.TempDir())
	release, err := d.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := d.Acquire(); !errors.Is(err, ErrBuildDirBusy) {
		t.Fatalf("second Acquire: expected ErrBuildDirBusy, got %v", err)
	}
	release()
	release() // idempotent

	release2, err := d.Acquire()
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestDefineArgs(t *testing.T) {
	t.Parallel()

	got := DefineArgs(space.Default(), space.DefaultBaseline())
	want := []string{
		"-DUNROLL_FACTOR=1",
		"-DPREFETCH_DIST=0",
		"-DBRANCH_FLATTEN=0",
		"-DLAYOUT_AOS=1",
		"-DALIGN_BYTES=0",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExecSuccess(t *testing.T) {
	skipWithoutShell(t)
	t.Parallel()

	dir := t.TempDir()
	bench := writeScript(t, dir, "bench", `printf 'ns\n5\n7\n' > "$2"
echo "samples=2 mean_ns=6" >&2
`)
	out := filepath.Join(dir, "ring.csv")
	err := Exec{Dir: dir}.Run(context.Background(), BenchRequest{
		Artifact: bench, Kernel: "ring", Out: out, Batches: 2, Iterations: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "ns\n5\n7\n" {
		t.Fatalf("unexpected samples %q", data)
	}
}

func TestExecFailureSurfacesOutput(t *testing.T) {
	skipWithoutShell(t)
	t.Parallel()

	dir := t.TempDir()
	bench := writeScript(t, dir, "bench", `echo "running $1"
echo "unknown kernel" >&2
exit 1
`)
	err := Exec{Dir: dir}.Run(context.Background(), BenchRequest{
		Artifact: bench, Kernel: "nope", Out: filepath.Join(dir, "x.csv"), Batches: 1, Iterations: 1,
	})
	if !errors.Is(err, ErrBenchFailed) {
		t.Fatalf("expected ErrBenchFailed, got %v", err)
	}
	var be *BenchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BenchError, got %T", err)
	}
	if be.Kernel != "nope" || !strings.Contains(be.Stdout, "running nope") || !strings.Contains(be.Stderr, "unknown kernel") {
		t.Fatalf("captured output missing: %+v", be)
	}
	if !strings.Contains(err.Error(), "unknown kernel") {
		t.Fatalf("error text should carry stderr, got %q", err.Error())
	}
}

func TestCMakeInvocations(t *testing.T) {
	skipWithoutShell(t)

	bin := t.TempDir()
	logFile := filepath.Join(t.TempDir(), "cmake.log")
	writeScript(t, bin, "cmake", `echo "$@" >> "`+logFile+`"
`)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	buildDir := filepath.Join(t.TempDir(), "build")
	src := t.TempDir()
	c := &CMake{SourceDir: src, Dir: NewBuildDir(buildDir), Space: space.Default(), Jobs: 3}

	ctx := context.Background()
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.Configure(ctx, space.DefaultBaseline()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := c.Build(ctx); err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read cmake log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 cmake calls, got %q", lines)
	}
	if lines[0] != src {
		t.Fatalf("initial configure: got %q want %q", lines[0], src)
	}
	if !strings.HasPrefix(lines[1], "-DUNROLL_FACTOR=1 -DPREFETCH_DIST=0") || !strings.HasSuffix(lines[1], src) {
		t.Fatalf("configure args: got %q", lines[1])
	}
	if lines[2] != "--build . --parallel 3" {
		t.Fatalf("build args: got %q", lines[2])
	}
	if c.Artifact() != filepath.Join(buildDir, "bench") {
		t.Fatalf("artifact: got %q", c.Artifact())
	}
}

func TestCMakeBuildFailure(t *testing.T) {
	skipWithoutShell(t)

	bin := t.TempDir()
	writeScript(t, bin, "cmake", `echo "error: missing header" >&2
exit 2
`)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	buildDir := t.TempDir()
	c := &CMake{SourceDir: t.TempDir(), Dir: NewBuildDir(buildDir), Space: space.Default()}
	err := c.Configure(context.Background(), space.DefaultBaseline())
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	var be *BuildError
	if !errors.As(err, &be) || be.Step != "configure" || !strings.Contains(be.Output, "missing header") {
		t.Fatalf("unexpected build error: %#v", err)
	}
	if be.Variant != space.DefaultBaseline().Key() {
		t.Fatalf("variant: got %q", be.Variant)
	}
}
