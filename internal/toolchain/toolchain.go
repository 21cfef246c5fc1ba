// Package toolchain drives the external collaborators of a sweep: the build
// system that compiles one variant into the benchmark executable, and the
// benchmark executable itself.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/samcharles93/kerntune/internal/logger"
	"github.com/samcharles93/kerntune/internal/space"
)

// Builder (re)configures and (re)builds the benchmark for one parameter set.
// Implementations share a single build tree, so calls must be sequential.
type Builder interface {
	Configure(ctx context.Context, ps space.ParameterSet) error
	Build(ctx context.Context) error
	// Artifact is the path of the executable left by a successful Build.
	Artifact() string
}

// BenchRequest is one benchmark invocation.
type BenchRequest struct {
	Artifact   string
	Kernel     string
	Out        string
	Batches    int
	Iterations int
}

// Bencher runs the benchmark executable for one kernel; on success the
// sample file exists at req.Out.
type Bencher interface {
	Run(ctx context.Context, req BenchRequest) error
}

// BuildDir is the handle of the shared build tree. Exactly one owner may
// hold it at a time: a build-then-measure cycle must finish before the next
// reconfiguration, or measurements would read a partially rebuilt artifact.
type BuildDir struct {
	Path string
	mu   sync.Mutex
}

func NewBuildDir(path string) *BuildDir {
	return &BuildDir{Path: path}
}

// Acquire claims the build tree. It fails with ErrBuildDirBusy instead of
// waiting when another owner holds it.
func (d *BuildDir) Acquire() (release func(), err error) {
	if !d.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBuildDirBusy, d.Path)
	}
	var once sync.Once
	return func() { once.Do(d.mu.Unlock) }, nil
}

// CMake builds variants with cmake, passing each knob as -D<define>=<value>.
type CMake struct {
	SourceDir string
	Dir       *BuildDir
	Space     space.Space
	// Target is the executable name inside the build directory.
	Target string
	// Jobs is the parallel build job count; 0 means one per CPU.
	Jobs int
	Log  logger.Logger

	current string
}

// Init runs the one-time configure that generates the build system.
func (c *CMake) Init(ctx context.Context) error {
	src, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}
	if err := os.MkdirAll(c.Dir.Path, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	if out, err := run(ctx, c.Dir.Path, "cmake", src); err != nil {
		return &BuildError{Step: "initial configure", Output: out, Err: err}
	}
	return nil
}

func (c *CMake) Configure(ctx context.Context, ps space.ParameterSet) error {
	if err := c.Space.CheckParameterSet(ps); err != nil {
		return err
	}
	src, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}
	args := append(DefineArgs(c.Space, ps), src)
	c.current = ps.Key()
	c.log().Debug("configure", "variant", c.current, "args", args)
	if out, err := run(ctx, c.Dir.Path, "cmake", args...); err != nil {
		return &BuildError{Step: "configure", Variant: c.current, Output: out, Err: err}
	}
	return nil
}

func (c *CMake) Build(ctx context.Context) error {
	jobs := c.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if out, err := run(ctx, c.Dir.Path, "cmake", "--build", ".", "--parallel", strconv.Itoa(jobs)); err != nil {
		return &BuildError{Step: "build", Variant: c.current, Output: out, Err: err}
	}
	return nil
}

func (c *CMake) Artifact() string {
	target := c.Target
	if target == "" {
		target = "bench"
	}
	return filepath.Join(c.Dir.Path, target)
}

func (c *CMake) log() logger.Logger {
	if c.Log == nil {
		return logger.Discard()
	}
	return c.Log
}

// DefineArgs renders ps as cmake cache definitions in knob order.
func DefineArgs(s space.Space, ps space.ParameterSet) []string {
	args := make([]string, 0, len(ps))
	for _, setting := range ps {
		k, ok := s.Knob(setting.Name)
		if !ok {
			continue
		}
		args = append(args, fmt.Sprintf("-D%s=%d", k.Define, setting.Value))
	}
	return args
}

// Exec runs the benchmark as `<artifact> <kernel> <out> <batches> <iters>`.
type Exec struct {
	// Dir is the working directory of the benchmark process.
	Dir string
	Log logger.Logger
}

func (e Exec) Run(ctx context.Context, req BenchRequest) error {
	cmd := exec.CommandContext(ctx, req.Artifact,
		req.Kernel,
		req.Out,
		strconv.Itoa(req.Batches),
		strconv.Itoa(req.Iterations),
	)
	cmd.Dir = e.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &BenchError{
			Kernel: req.Kernel,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	if e.Log != nil && stderr.Len() > 0 {
		// the benchmark prints a one-line sample count and mean on stderr
		e.Log.Debug("bench output", "kernel", req.Kernel, "stderr", string(bytes.TrimSpace(stderr.Bytes())))
	}
	return nil
}

func run(ctx context.Context, dir, command string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
