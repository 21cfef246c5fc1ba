// Package measure runs one build-then-measure cycle: it turns a parameter
// set into an executable and collects a validated latency series per kernel.
package measure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samcharles93/kerntune/internal/logger"
	"github.com/samcharles93/kerntune/internal/space"
	"github.com/samcharles93/kerntune/internal/stats"
	"github.com/samcharles93/kerntune/internal/toolchain"
)

// SampleFile is one kernel's raw series and where it was read from.
type SampleFile struct {
	Path    string
	Samples []int64
}

// Measurement is everything one cycle produced for a parameter set.
type Measurement struct {
	Params space.ParameterSet
	// Size is the artifact size in bytes.
	Size    int64
	Samples map[string]SampleFile

	BuildTime time.Duration
	BenchTime map[string]time.Duration
}

// Orchestrator owns the build/measure cycle. It is not safe for concurrent
// use; the build directory handle enforces that at runtime.
type Orchestrator struct {
	Builder toolchain.Builder
	Bencher toolchain.Bencher
	Dir     *toolchain.BuildDir

	Kernels    []string
	RunsDir    string
	Batches    int
	Iterations int

	Log logger.Logger
}

// SamplePath is the content-addressed location of a kernel's series for ps.
func SamplePath(runsDir, kernel string, ps space.ParameterSet) string {
	return filepath.Join(runsDir, fmt.Sprintf("%s_%s.csv", kernel, ps.Key()))
}

// Evaluate builds ps and runs every kernel against the fresh artifact. The
// build directory is held for the whole cycle.
func (o *Orchestrator) Evaluate(ctx context.Context, ps space.ParameterSet) (Measurement, error) {
	if o.Builder == nil || o.Bencher == nil || o.Dir == nil {
		return Measurement{}, errors.New("orchestrator is missing a builder, bencher or build dir")
	}
	if len(o.Kernels) == 0 {
		return Measurement{}, errors.New("no kernels to measure")
	}

	release, err := o.Dir.Acquire()
	if err != nil {
		return Measurement{}, err
	}
	defer release()

	log := o.log().With("variant", ps.Key())
	m := Measurement{
		Params:    ps.Clone(),
		Samples:   make(map[string]SampleFile, len(o.Kernels)),
		BenchTime: make(map[string]time.Duration, len(o.Kernels)),
	}

	start := time.Now()
	if err := o.Builder.Configure(ctx, ps); err != nil {
		return Measurement{}, err
	}
	if err := o.Builder.Build(ctx); err != nil {
		return Measurement{}, err
	}
	m.BuildTime = time.Since(start)

	artifact := o.Builder.Artifact()
	info, err := os.Stat(artifact)
	if err != nil {
		return Measurement{}, fmt.Errorf("stat artifact: %w", err)
	}
	m.Size = info.Size()
	log.Debug("built", "artifact", artifact, "size", m.Size, "took", m.BuildTime)

	if err := os.MkdirAll(o.RunsDir, 0o755); err != nil {
		return Measurement{}, fmt.Errorf("create runs dir: %w", err)
	}

	for _, kernel := range o.Kernels {
		if err := ctx.Err(); err != nil {
			return Measurement{}, err
		}
		out := SamplePath(o.RunsDir, kernel, ps)
		// a file left by an earlier sweep must never pass as this build's series
		if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Measurement{}, fmt.Errorf("clear sample file: %w", err)
		}
		start := time.Now()
		err := o.Bencher.Run(ctx, toolchain.BenchRequest{
			Artifact:   artifact,
			Kernel:     kernel,
			Out:        out,
			Batches:    o.Batches,
			Iterations: o.Iterations,
		})
		if err != nil {
			return Measurement{}, err
		}
		m.BenchTime[kernel] = time.Since(start)
		if _, err := os.Stat(out); errors.Is(err, fs.ErrNotExist) {
			return Measurement{}, &toolchain.BenchError{
				Kernel: kernel,
				Err:    fmt.Errorf("no sample file written to %s", out),
			}
		}

		samples, err := stats.ReadSampleFile(out)
		if err != nil {
			return Measurement{}, fmt.Errorf("kernel %s variant %s: %w", kernel, ps.Key(), err)
		}
		m.Samples[kernel] = SampleFile{Path: out, Samples: samples}
		log.Debug("measured", "kernel", kernel, "samples", len(samples), "took", m.BenchTime[kernel])
	}
	return m, nil
}

func (o *Orchestrator) log() logger.Logger {
	if o.Log == nil {
		return logger.Discard()
	}
	return o.Log
}
