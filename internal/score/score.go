// Package score reduces a latency summary to the single objective J that a
// sweep minimizes. Lower is better.
package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/kerntune/internal/stats"
)

// Infeasible is the objective of a configuration that exceeds the size cap.
// It is larger than any attainable weighted latency, still sorts like a
// number and survives JSON encoding (unlike +Inf).
const Infeasible = math.MaxFloat64

// DefaultSizeCap is the largest artifact size, relative to the baseline, that
// a configuration may reach and still be selected.
const DefaultSizeCap = 1.5

var ErrInvalidWeights = errors.New("invalid scoring weights")

// Weights of the tail-latency objective. Tail latency dominates, jitter
// counts least.
type Weights struct {
	P999  float64 `json:"p999" yaml:"p999"`
	P99   float64 `json:"p99" yaml:"p99"`
	Stdev float64 `json:"stdev" yaml:"stdev"`
}

func DefaultWeights() Weights {
	return Weights{P999: 3.0, P99: 1.5, Stdev: 0.5}
}

// Validate keeps the qualitative ordering P999 >= P99 >= Stdev >= 0 with a
// positive P999 weight.
func (w Weights) Validate() error {
	switch {
	case w.P999 <= 0:
		return fmt.Errorf("%w: p99.9 weight must be positive, got %v", ErrInvalidWeights, w.P999)
	case w.P99 < 0 || w.Stdev < 0:
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidWeights)
	case w.P999 < w.P99:
		return fmt.Errorf("%w: p99.9 weight %v below p99 weight %v", ErrInvalidWeights, w.P999, w.P99)
	case w.P99 < w.Stdev:
		return fmt.Errorf("%w: p99 weight %v below stdev weight %v", ErrInvalidWeights, w.P99, w.Stdev)
	}
	return nil
}

// Scorer applies the size cap and the weighted objective.
type Scorer struct {
	Weights Weights
	SizeCap float64
}

func New(w Weights, sizeCap float64) (Scorer, error) {
	if err := w.Validate(); err != nil {
		return Scorer{}, err
	}
	if sizeCap <= 0 || math.IsNaN(sizeCap) || math.IsInf(sizeCap, 0) {
		return Scorer{}, fmt.Errorf("%w: size cap must be a positive ratio, got %v", ErrInvalidWeights, sizeCap)
	}
	return Scorer{Weights: w, SizeCap: sizeCap}, nil
}

// Feasible reports whether the summary's artifact fits under the size cap.
func (s Scorer) Feasible(sum stats.Summary) bool {
	return sum.SizeRel <= s.SizeCap
}

// Score returns Infeasible when size_rel exceeds the cap and the weighted
// tail-latency sum otherwise.
func (s Scorer) Score(sum stats.Summary) float64 {
	if !s.Feasible(sum) {
		return Infeasible
	}
	return s.Weights.P999*sum.P999 + s.Weights.P99*sum.P99 + s.Weights.Stdev*sum.Stdev
}

// IsInfeasible reports whether j is the infeasible sentinel.
func IsInfeasible(j float64) bool {
	return j >= Infeasible
}
