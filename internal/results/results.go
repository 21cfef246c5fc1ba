// Package results holds the durable output of a sweep: one evaluation record
// per (configuration, kernel) pair plus the run metadata needed to interpret
// the records without re-running anything.
package results

import (
	"errors"
	"time"

	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
	"github.com/samcharles93/kerntune/internal/stats"
	"github.com/samcharles93/kerntune/internal/version"
)

var ErrNotFound = errors.New("result set not found")

// EvaluationResult is the outcome of one (configuration, kernel) pair.
type EvaluationResult struct {
	Kernel   string             `json:"kernel"`
	Params   space.ParameterSet `json:"params"`
	Stats    stats.Summary      `json:"stats"`
	J        float64            `json:"J"`
	Feasible bool               `json:"feasible"`
	Baseline bool               `json:"baseline,omitempty"`
	// Samples is the raw sample file the summary was computed from.
	Samples string `json:"samples,omitempty"`
}

// Run describes how a result set was produced.
type Run struct {
	ID         string             `json:"id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Host       Host               `json:"host"`
	Space      space.Space        `json:"space"`
	Baseline   space.ParameterSet `json:"baseline"`
	Kernels    []string           `json:"kernels"`
	Batches    int                `json:"batches"`
	Iterations int                `json:"iterations"`
	Weights    score.Weights      `json:"weights"`
	SizeCap    float64            `json:"size_cap"`
	// BaselineSize is the artifact size every size_rel is relative to.
	BaselineSize int64        `json:"baseline_size"`
	Tool         version.Info `json:"tool"`
}

// Set is the result set of one sweep. It is appended to while the sweep runs
// and treated as immutable once saved.
type Set struct {
	Run     Run                `json:"run"`
	Results []EvaluationResult `json:"results"`
}

// Append records one evaluation.
func (s *Set) Append(r EvaluationResult) {
	s.Results = append(s.Results, r)
}

// Kernels returns the kernels present in the set in first-seen order.
func (s *Set) Kernels() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range s.Results {
		if _, ok := seen[r.Kernel]; ok {
			continue
		}
		seen[r.Kernel] = struct{}{}
		out = append(out, r.Kernel)
	}
	return out
}

// ForKernel returns the results of one kernel in evaluation order.
func (s *Set) ForKernel(kernel string) []EvaluationResult {
	var out []EvaluationResult
	for _, r := range s.Results {
		if r.Kernel == kernel {
			out = append(out, r)
		}
	}
	return out
}

// Variants is the number of distinct configurations evaluated.
func (s *Set) Variants() int {
	seen := make(map[string]struct{})
	for _, r := range s.Results {
		seen[r.Params.Key()] = struct{}{}
	}
	return len(seen)
}
