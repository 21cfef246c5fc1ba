package score

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/samcharles93/kerntune/internal/stats"
)

func mustScorer(t *testing.T, sizeCap float64) Scorer {
	t.Helper()
	s, err := New(DefaultWeights(), sizeCap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestScoreWeightedSum(t *testing.T) {
	t.Parallel()

	s := mustScorer(t, DefaultSizeCap)
	got := s.Score(stats.Summary{P999: 100, P99: 80, Stdev: 10, SizeRel: 1.2})
	want := 3.0*100 + 1.5*80 + 0.5*10
	if got != want {
		t.Fatalf("score: got %v want %v", got, want)
	}
}

func TestScoreInfeasibleAboveCap(t *testing.T) {
	t.Parallel()

	s := mustScorer(t, 1.5)
	tests := []struct {
		sizeRel    float64
		infeasible bool
	}{
		{0.5, false},
		{1.0, false},
		{1.5, false},
		{1.5000001, true},
		{2.0, true},
	}
	for _, tt := range tests {
		sum := stats.Summary{P999: 1, P99: 1, Stdev: 1, SizeRel: tt.sizeRel}
		j := s.Score(sum)
		if IsInfeasible(j) != tt.infeasible {
			t.Fatalf("size_rel %v: infeasible=%v want %v (J=%v)", tt.sizeRel, IsInfeasible(j), tt.infeasible, j)
		}
		if !tt.infeasible && (math.IsInf(j, 0) || math.IsNaN(j)) {
			t.Fatalf("size_rel %v: expected finite score, got %v", tt.sizeRel, j)
		}
	}
}

func TestInfeasibleSortsLast(t *testing.T) {
	t.Parallel()

	s := mustScorer(t, 1.5)
	js := []float64{
		s.Score(stats.Summary{P999: 1, SizeRel: 2.0}),
		s.Score(stats.Summary{P999: 1e12, P99: 1e12, Stdev: 1e12, SizeRel: 1.0}),
		s.Score(stats.Summary{P999: 5, SizeRel: 1.1}),
	}
	sort.Float64s(js)
	if !IsInfeasible(js[2]) || IsInfeasible(js[1]) {
		t.Fatalf("infeasible score did not sort last: %v", js)
	}
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	bad := []Weights{
		{P999: 0, P99: 0, Stdev: 0},
		{P999: 1, P99: 2, Stdev: 0},
		{P999: 3, P99: 1, Stdev: 2},
		{P999: 3, P99: -1, Stdev: -2},
	}
	for _, w := range bad {
		if err := w.Validate(); !errors.Is(err, ErrInvalidWeights) {
			t.Fatalf("weights %+v: expected ErrInvalidWeights, got %v", w, err)
		}
	}
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights rejected: %v", err)
	}
	if _, err := New(DefaultWeights(), 0); !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("zero cap: expected ErrInvalidWeights, got %v", err)
	}
}
