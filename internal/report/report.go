// Package report selects, per kernel, the best configuration of a result set
// and compares it with the baseline.
package report

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/kerntune/internal/results"
	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
)

var ErrNoBaseline = errors.New("no baseline result")

// Percent is a relative improvement in percent. It is undefined when the
// baseline value it is relative to is zero.
type Percent struct {
	Value   float64
	Defined bool
}

func Undefined() Percent { return Percent{} }

// Improvement returns 100*(base-best)/base, undefined when base is zero.
func Improvement(base, best float64) Percent {
	if base == 0 {
		return Undefined()
	}
	return Percent{Value: 100 * (base - best) / base, Defined: true}
}

func (p Percent) String() string {
	if !p.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(p.Value, 'f', 2, 64)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Defined {
		return []byte(`"undefined"`), nil
	}
	return json.Marshal(p.Value)
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	if string(data) == `"undefined"` {
		*p = Undefined()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("percent: %w", err)
	}
	*p = Percent{Value: v, Defined: true}
	return nil
}

// KernelReport is the baseline-vs-best comparison for one kernel.
type KernelReport struct {
	Kernel   string                   `json:"kernel"`
	Baseline results.EvaluationResult `json:"baseline"`
	Best     results.EvaluationResult `json:"best"`

	ImprovementP99  Percent `json:"improvement_p99_%"`
	ImprovementP999 Percent `json:"improvement_p999_%"`
	StdevDrop       Percent `json:"stdev_drop_%"`
	// SizeGrowth is the best configuration's size relative to the baseline.
	SizeGrowth float64 `json:"size_growth_x"`
	// Feasible is false when no configuration, baseline included, met the
	// size cap.
	Feasible bool `json:"feasible"`
}

// Report is derived from a result set and never modifies it.
type Report struct {
	RunID   string         `json:"run_id"`
	Kernels []KernelReport `json:"kernels"`
}

// Build computes the report for every kernel in set, in first-seen order.
func Build(set *results.Set) (*Report, error) {
	if set == nil {
		return nil, errors.New("nil result set")
	}
	rep := &Report{RunID: set.Run.ID}
	for _, kernel := range set.Kernels() {
		kr, err := ForKernel(set.ForKernel(kernel), set.Run.Baseline)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", kernel, err)
		}
		rep.Kernels = append(rep.Kernels, kr)
	}
	return rep, nil
}

// ForKernel builds the report for one kernel's results. The baseline is the
// result flagged as baseline, or failing that the one whose parameters equal
// baseline. The best result has the lowest J; ties keep the earlier result.
func ForKernel(rs []results.EvaluationResult, baseline space.ParameterSet) (KernelReport, error) {
	if len(rs) == 0 {
		return KernelReport{}, ErrNoBaseline
	}
	base, ok := findBaseline(rs, baseline)
	if !ok {
		return KernelReport{}, ErrNoBaseline
	}

	best := rs[0]
	for _, r := range rs[1:] {
		if r.J < best.J {
			best = r
		}
	}

	return KernelReport{
		Kernel:          rs[0].Kernel,
		Baseline:        base,
		Best:            best,
		ImprovementP99:  Improvement(base.Stats.P99, best.Stats.P99),
		ImprovementP999: Improvement(base.Stats.P999, best.Stats.P999),
		StdevDrop:       Improvement(base.Stats.Stdev, best.Stats.Stdev),
		SizeGrowth:      best.Stats.SizeRel,
		Feasible:        !score.IsInfeasible(best.J),
	}, nil
}

func findBaseline(rs []results.EvaluationResult, baseline space.ParameterSet) (results.EvaluationResult, bool) {
	for _, r := range rs {
		if r.Baseline {
			return r, true
		}
	}
	if len(baseline) == 0 {
		return results.EvaluationResult{}, false
	}
	for _, r := range rs {
		if r.Params.Equal(baseline) {
			return r, true
		}
	}
	return results.EvaluationResult{}, false
}

// Round2 rounds v to two decimals for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
