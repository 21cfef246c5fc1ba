// Package stats turns raw per-call latency samples into the summary figures a
// sweep scores and reports on.
package stats

import (
	"errors"
	"math"
	"slices"
)

var ErrEmptySeries = errors.New("empty sample series")

// Summary holds the latency figures of one sample series (nanoseconds) plus
// the artifact size it was measured against.
type Summary struct {
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	P999  float64 `json:"p999"`
	Stdev float64 `json:"stdev"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	N     int     `json:"n"`

	// Size is the artifact size in bytes; SizeRel is Size over the baseline size.
	Size    int64   `json:"size"`
	SizeRel float64 `json:"size_rel"`
}

// Percentile returns the p-th percentile (0-100) of an ascending series using
// linear interpolation between closest ranks: k = (n-1)p/100, and the result
// blends x[floor k] and x[ceil k] by the fractional part of k.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	k := float64(n-1) * p / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	// x[f]*(c-k) + x[c]*(k-f), written so equal neighbours return exactly x[f]
	lo, hi := sorted[int(f)], sorted[int(c)]
	return lo + (k-f)*(hi-lo)
}

// Summarize computes the summary of a sample series. The input is not
// modified. Size fields are left for the caller.
func Summarize(samples []int64) (Summary, error) {
	n := len(samples)
	if n == 0 {
		return Summary{}, ErrEmptySeries
	}

	sorted := make([]float64, n)
	var sum float64
	for i, v := range samples {
		sorted[i] = float64(v)
		sum += float64(v)
	}
	slices.Sort(sorted)
	mean := sum / float64(n)

	var ss float64
	for _, v := range sorted {
		d := v - mean
		ss += d * d
	}

	return Summary{
		P50:   Percentile(sorted, 50),
		P90:   Percentile(sorted, 90),
		P99:   Percentile(sorted, 99),
		P999:  Percentile(sorted, 99.9),
		Stdev: math.Sqrt(ss / float64(n)),
		Mean:  mean,
		Min:   sorted[0],
		Max:   sorted[n-1],
		N:     n,
	}, nil
}

// Point is one step of an empirical CDF.
type Point struct {
	Value    float64 `json:"ns"`
	Fraction float64 `json:"fraction"`
}

// ECDF returns the empirical cumulative distribution of the series, one point
// per distinct value with the fraction of samples at or below it.
func ECDF(samples []int64) []Point {
	n := len(samples)
	if n == 0 {
		return nil
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		// collapse runs of equal values onto their last index
		if i+1 < n && sorted[i+1] == sorted[i] {
			continue
		}
		out = append(out, Point{
			Value:    float64(sorted[i]),
			Fraction: float64(i+1) / float64(n),
		})
	}
	return out
}
