// Package sweep drives the grid search: it evaluates the baseline, then every
// other point of the knob space, and turns each measurement into scored
// results.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/kerntune/internal/logger"
	"github.com/samcharles93/kerntune/internal/measure"
	"github.com/samcharles93/kerntune/internal/metrics"
	"github.com/samcharles93/kerntune/internal/results"
	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
	"github.com/samcharles93/kerntune/internal/stats"
	"github.com/samcharles93/kerntune/internal/toolchain"
	"github.com/samcharles93/kerntune/internal/version"
)

// Evaluator builds and measures one parameter set.
type Evaluator interface {
	Evaluate(ctx context.Context, ps space.ParameterSet) (measure.Measurement, error)
}

// Driver runs one sweep. Fields other than Evaluator, Scorer and Kernels
// are optional.
type Driver struct {
	Evaluator Evaluator
	Scorer    score.Scorer
	Space     space.Space
	Baseline  space.ParameterSet
	Kernels   []string

	// Batches and Iterations are recorded in the run metadata only.
	Batches    int
	Iterations int

	Metrics *metrics.Metrics
	Log     logger.Logger

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// Run evaluates every variant once, baseline first, and returns the
// complete result set. Any error aborts the sweep; no partial set is
// returned.
func (d *Driver) Run(ctx context.Context) (*results.Set, error) {
	if d.Evaluator == nil {
		return nil, errors.New("sweep has no evaluator")
	}
	if len(d.Kernels) == 0 {
		return nil, errors.New("sweep has no kernels")
	}
	if d.Scorer.SizeCap <= 0 {
		return nil, errors.New("sweep scorer has no size cap")
	}

	variants, err := d.Space.Enumerate(d.Baseline)
	if err != nil {
		return nil, err
	}

	log := d.log()
	set := &results.Set{Run: results.Run{
		ID:         d.newID(),
		StartedAt:  d.now(),
		Host:       results.DetectHost(),
		Space:      d.Space,
		Baseline:   d.Baseline.Clone(),
		Kernels:    append([]string(nil), d.Kernels...),
		Batches:    d.Batches,
		Iterations: d.Iterations,
		Weights:    d.Scorer.Weights,
		SizeCap:    d.Scorer.SizeCap,
		Tool:       version.Resolve(),
	}}
	if d.Metrics != nil {
		d.Metrics.SetVariants(len(variants))
	}
	log.Info("sweep started", "run", set.Run.ID, "variants", len(variants), "kernels", len(d.Kernels))

	for i, ps := range variants {
		isBaseline := i == 0

		m, err := d.Evaluator.Evaluate(ctx, ps)
		if err != nil {
			d.recordError(err)
			return nil, fmt.Errorf("evaluate %s: %w", ps, err)
		}
		if isBaseline {
			if m.Size <= 0 {
				return nil, fmt.Errorf("baseline artifact is empty (%d bytes)", m.Size)
			}
			set.Run.BaselineSize = m.Size
		}

		for _, kernel := range d.Kernels {
			sf, ok := m.Samples[kernel]
			if !ok {
				return nil, fmt.Errorf("evaluate %s: no samples for kernel %s", ps, kernel)
			}
			r, err := d.result(set.Run.BaselineSize, kernel, ps, m, sf, isBaseline)
			if err != nil {
				d.recordError(err)
				return nil, err
			}
			set.Append(r)

			if d.Metrics != nil {
				d.Metrics.RecordBench(kernel, m.BenchTime[kernel])
				d.Metrics.RecordResult(kernel, r.Stats.P999, r.J, r.Feasible)
			}
			log.Debug("scored", "kernel", kernel, "variant", ps.Key(),
				"p99", r.Stats.P99, "p999", r.Stats.P999, "size_rel", r.Stats.SizeRel, "feasible", r.Feasible)
		}

		if d.Metrics != nil {
			d.Metrics.RecordBuild(m.BuildTime)
			d.Metrics.VariantDone()
		}
		log.Info("variant done", "n", i+1, "of", len(variants), "variant", ps.String(), "size", m.Size)
	}

	set.Run.FinishedAt = d.now()
	log.Info("sweep finished", "run", set.Run.ID, "results", len(set.Results),
		"took", set.Run.FinishedAt.Sub(set.Run.StartedAt))
	return set, nil
}

func (d *Driver) result(baseSize int64, kernel string, ps space.ParameterSet, m measure.Measurement, sf measure.SampleFile, baseline bool) (results.EvaluationResult, error) {
	sum, err := stats.Summarize(sf.Samples)
	if err != nil {
		return results.EvaluationResult{}, fmt.Errorf("kernel %s variant %s: %w", kernel, ps.Key(), err)
	}
	sum.Size = m.Size
	sum.SizeRel = float64(m.Size) / float64(baseSize)
	if baseline {
		sum.SizeRel = 1.0
	}

	return results.EvaluationResult{
		Kernel:   kernel,
		Params:   ps.Clone(),
		Stats:    sum,
		J:        d.Scorer.Score(sum),
		Feasible: d.Scorer.Feasible(sum),
		Baseline: baseline,
		Samples:  sf.Path,
	}, nil
}

func (d *Driver) recordError(err error) {
	if d.Metrics == nil {
		return
	}
	stage := "sweep"
	switch {
	case errors.Is(err, toolchain.ErrBuildFailed):
		stage = "build"
	case errors.Is(err, toolchain.ErrBenchFailed):
		stage = "bench"
	case errors.Is(err, stats.ErrMalformedSamples), errors.Is(err, stats.ErrEmptySeries):
		stage = "samples"
	}
	d.Metrics.RecordError(stage)
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Driver) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d *Driver) log() logger.Logger {
	if d.Log == nil {
		return logger.Discard()
	}
	return d.Log
}
