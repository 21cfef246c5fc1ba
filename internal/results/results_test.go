package results

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
	"github.com/samcharles93/kerntune/internal/stats"
)

func sampleSet(id string) *Set {
	base := space.DefaultBaseline()
	other, _ := space.ParseParameterSet(space.Default(), "u=2,pf=32,bf=0,la=1,al=0")
	set := &Set{Run: Run{
		ID:        id,
		StartedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Space:     space.Default(),
		Baseline:  base,
		Kernels:   []string{"parser", "ring"},
		Weights:   score.DefaultWeights(),
		SizeCap:   score.DefaultSizeCap,
	}}
	set.Append(EvaluationResult{Kernel: "parser", Params: base, Stats: stats.Summary{P999: 10, SizeRel: 1}, J: 30, Feasible: true, Baseline: true})
	set.Append(EvaluationResult{Kernel: "ring", Params: base, Stats: stats.Summary{P999: 20, SizeRel: 1}, J: 60, Feasible: true, Baseline: true})
	set.Append(EvaluationResult{Kernel: "parser", Params: other, Stats: stats.Summary{P999: 8, SizeRel: 2}, J: score.Infeasible})
	set.Append(EvaluationResult{Kernel: "ring", Params: other, Stats: stats.Summary{P999: 9, SizeRel: 2}, J: score.Infeasible})
	return set
}

func TestSetQueries(t *testing.T) {
	t.Parallel()

	set := sampleSet("r1")
	kernels := set.Kernels()
	if len(kernels) != 2 || kernels[0] != "parser" || kernels[1] != "ring" {
		t.Fatalf("kernels: got %v", kernels)
	}
	if got := len(set.ForKernel("ring")); got != 2 {
		t.Fatalf("ForKernel(ring): got %d results", got)
	}
	if got := set.Variants(); got != 2 {
		t.Fatalf("Variants: got %d want 2", got)
	}
}

func TestEncodeDecodeKeepsSentinelAndOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Encode(&buf, sampleSet("r1")); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !score.IsInfeasible(got.Results[2].J) {
		t.Fatalf("infeasible sentinel lost: %v", got.Results[2].J)
	}
	if !got.Results[0].Params.Equal(space.DefaultBaseline()) {
		t.Fatalf("params order lost: %s", got.Results[0].Params)
	}
	if !got.Run.Baseline.Equal(space.DefaultBaseline()) {
		t.Fatalf("run baseline lost: %s", got.Run.Baseline)
	}
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := FileStore{Path: filepath.Join(t.TempDir(), "reports", "summary.json")}

	if _, err := fs.Load(ctx, Latest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	if err := fs.Save(ctx, sampleSet("r1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := fs.Save(ctx, sampleSet("r1")); !errors.Is(err, ErrAlreadySaved) {
		t.Fatalf("second Save of same run: expected ErrAlreadySaved, got %v", err)
	}

	got, err := fs.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Results) != 4 {
		t.Fatalf("results: got %d want 4", len(got.Results))
	}
	if _, err := fs.Load(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load other id: expected ErrNotFound, got %v", err)
	}

	if err := fs.Save(ctx, sampleSet("r2")); err != nil {
		t.Fatalf("Save r2: %v", err)
	}
	latest, err := fs.Load(ctx, "")
	if err != nil || latest.Run.ID != "r2" {
		t.Fatalf("latest: got %v, %v", latest, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(fs.Path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestDetectHost(t *testing.T) {
	t.Parallel()

	h := DetectHost()
	if h.CPUs < 1 || h.GoOS == "" || h.GoArch == "" {
		t.Fatalf("incomplete host info: %+v", h)
	}
}
