package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samcharles93/kerntune/internal/measure"
	"github.com/samcharles93/kerntune/internal/metrics"
	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
	"github.com/samcharles93/kerntune/internal/toolchain"
)

// fakeEvaluator returns fixed sizes per unroll factor and a series whose
// values shrink as the unroll factor grows.
type fakeEvaluator struct {
	sizes   map[int]int64
	failAt  int
	err     error
	visited []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, ps space.ParameterSet) (measure.Measurement, error) {
	f.visited = append(f.visited, ps.Key())
	if f.err != nil && len(f.visited) == f.failAt {
		return measure.Measurement{}, f.err
	}
	u, _ := ps.Value("u")
	base := int64(1000 / u)
	samples := []int64{base, base + 10, base + 20, base + 30}
	return measure.Measurement{
		Params: ps,
		Size:   f.sizes[u],
		Samples: map[string]measure.SampleFile{
			"parser": {Path: "runs/parser_" + ps.Key() + ".csv", Samples: samples},
			"ring":   {Path: "runs/ring_" + ps.Key() + ".csv", Samples: samples},
		},
		BenchTime: map[string]time.Duration{"parser": time.Millisecond, "ring": time.Millisecond},
	}, nil
}

func smallSpace(t *testing.T) space.Space {
	t.Helper()
	s, err := space.Default().WithValues("u", []int{1, 2, 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"pf", "bf", "la", "al"} {
		k, _ := s.Knob(name)
		if s, err = s.WithValues(name, k.Values[:1]); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func newDriver(t *testing.T, ev Evaluator) *Driver {
	t.Helper()
	sc, err := score.New(score.DefaultWeights(), 1.5)
	if err != nil {
		t.Fatal(err)
	}
	s := smallSpace(t)
	baseline, err := space.ParseParameterSet(s, "u=1,pf=0,bf=0,la=0,al=0")
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &Driver{
		Evaluator: ev,
		Scorer:    sc,
		Space:     s,
		Baseline:  baseline,
		Kernels:   []string{"parser", "ring"},
		Now:       func() time.Time { return fixed },
		NewID:     func() string { return "run-1" },
	}
}

func TestRunOrderAndScoring(t *testing.T) {
	t.Parallel()

	ev := &fakeEvaluator{sizes: map[int]int64{1: 1000, 2: 1400, 4: 2000}}
	d := newDriver(t, ev)
	d.Metrics = metrics.New(false)

	set, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantVisited := []string{"u1_pf0_bf0_la0_al0", "u2_pf0_bf0_la0_al0", "u4_pf0_bf0_la0_al0"}
	if len(ev.visited) != len(wantVisited) {
		t.Fatalf("visited: got %v want %v", ev.visited, wantVisited)
	}
	for i := range wantVisited {
		if ev.visited[i] != wantVisited[i] {
			t.Fatalf("visited[%d]: got %s want %s", i, ev.visited[i], wantVisited[i])
		}
	}

	if len(set.Results) != 6 {
		t.Fatalf("results: got %d want 6", len(set.Results))
	}
	if set.Run.ID != "run-1" || set.Run.BaselineSize != 1000 {
		t.Fatalf("run metadata: %+v", set.Run)
	}

	for i, r := range set.Results {
		wantKernel := []string{"parser", "ring"}[i%2]
		if r.Kernel != wantKernel {
			t.Fatalf("result %d kernel: got %s want %s", i, r.Kernel, wantKernel)
		}
		if (i < 2) != r.Baseline {
			t.Fatalf("result %d baseline flag: got %v", i, r.Baseline)
		}
	}

	base := set.Results[0]
	if base.Stats.SizeRel != 1.0 || !base.Feasible {
		t.Fatalf("baseline: got size_rel %v feasible %v", base.Stats.SizeRel, base.Feasible)
	}
	if base.Samples != "runs/parser_u1_pf0_bf0_la0_al0.csv" {
		t.Fatalf("baseline samples path: got %s", base.Samples)
	}

	u2 := set.Results[2]
	if u2.Stats.SizeRel != 1.4 || !u2.Feasible || score.IsInfeasible(u2.J) {
		t.Fatalf("u=2: got size_rel %v feasible %v J %v", u2.Stats.SizeRel, u2.Feasible, u2.J)
	}
	want := 3.0*u2.Stats.P999 + 1.5*u2.Stats.P99 + 0.5*u2.Stats.Stdev
	if u2.J != want {
		t.Fatalf("u=2 J: got %v want %v", u2.J, want)
	}

	u4 := set.Results[4]
	if u4.Stats.SizeRel != 2.0 || u4.Feasible || !score.IsInfeasible(u4.J) {
		t.Fatalf("u=4 must be infeasible: got size_rel %v J %v", u4.Stats.SizeRel, u4.J)
	}

	if got := testutil.ToFloat64(d.Metrics.VariantsEvaluated); got != 3 {
		t.Fatalf("variants evaluated metric: got %v", got)
	}
	if got := testutil.ToFloat64(d.Metrics.InfeasibleTotal.WithLabelValues("ring")); got != 1 {
		t.Fatalf("infeasible metric: got %v", got)
	}
}

func TestRunAbortsOnError(t *testing.T) {
	t.Parallel()

	buildErr := &toolchain.BuildError{Step: "build", Output: "ld: error", Err: errors.New("exit status 1")}
	ev := &fakeEvaluator{sizes: map[int]int64{1: 1000, 2: 1000, 4: 1000}, failAt: 2, err: buildErr}
	d := newDriver(t, ev)
	d.Metrics = metrics.New(false)

	set, err := d.Run(context.Background())
	if !errors.Is(err, toolchain.ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if set != nil {
		t.Fatal("no result set may be returned after a failure")
	}
	if len(ev.visited) != 2 {
		t.Fatalf("sweep must stop at the failing variant: visited %v", ev.visited)
	}
	if got := testutil.ToFloat64(d.Metrics.ErrorsTotal.WithLabelValues("build")); got != 1 {
		t.Fatalf("build error metric: got %v", got)
	}
}

func TestRunRejectsEmptyBaselineArtifact(t *testing.T) {
	t.Parallel()

	ev := &fakeEvaluator{sizes: map[int]int64{}}
	if _, err := newDriver(t, ev).Run(context.Background()); err == nil {
		t.Fatal("expected error for a zero-byte baseline artifact")
	}
}

func TestRunRejectsForeignBaseline(t *testing.T) {
	t.Parallel()

	d := newDriver(t, &fakeEvaluator{sizes: map[int]int64{1: 1}})
	d.Baseline = space.ParameterSet{{Name: "u", Value: 1}}
	if _, err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error for a baseline that does not cover every knob")
	}
}
