// Package space describes the compile-time tuning knobs and expands them into
// the ordered list of parameter sets a sweep evaluates.
package space

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidSpace = errors.New("invalid search space")

// Knob is one integer-valued compile-time tuning parameter.
type Knob struct {
	// Name is the short key used in parameter sets and sample file tags.
	Name string `json:"name" yaml:"name"`
	// Define is the build variable the value is passed as (-D<Define>=<v>).
	Define string `json:"define" yaml:"define"`
	// Values are the candidates in declared order.
	Values []int `json:"values" yaml:"values"`
}

// Space is the declared set of knobs. Knob order fixes both the order of
// settings inside a ParameterSet and the iteration order of the product.
type Space struct {
	Knobs []Knob `json:"knobs"`
}

// Default returns the knob space of the reference kernels.
func Default() Space {
	return Space{Knobs: []Knob{
		{Name: "u", Define: "UNROLL_FACTOR", Values: []int{1, 2, 4, 8}},
		{Name: "pf", Define: "PREFETCH_DIST", Values: []int{0, 32, 64}},
		{Name: "bf", Define: "BRANCH_FLATTEN", Values: []int{0, 1}},
		{Name: "la", Define: "LAYOUT_AOS", Values: []int{0, 1}},
		{Name: "al", Define: "ALIGN_BYTES", Values: []int{0, 64}},
	}}
}

// DefaultBaseline is the untransformed reference configuration.
func DefaultBaseline() ParameterSet {
	return ParameterSet{
		{Name: "u", Value: 1},
		{Name: "pf", Value: 0},
		{Name: "bf", Value: 0},
		{Name: "la", Value: 1},
		{Name: "al", Value: 0},
	}
}

// Knob returns the knob with the given name.
func (s Space) Knob(name string) (Knob, bool) {
	for _, k := range s.Knobs {
		if k.Name == name {
			return k, true
		}
	}
	return Knob{}, false
}

// WithValues returns a copy of s with the candidate list of one knob replaced.
func (s Space) WithValues(name string, values []int) (Space, error) {
	out := Space{Knobs: make([]Knob, len(s.Knobs))}
	found := false
	for i, k := range s.Knobs {
		k.Values = append([]int(nil), k.Values...)
		if k.Name == name {
			k.Values = append([]int(nil), values...)
			found = true
		}
		out.Knobs[i] = k
	}
	if !found {
		return Space{}, fmt.Errorf("%w: unknown knob %q", ErrInvalidSpace, name)
	}
	return out, nil
}

// Validate checks that every knob has a unique name and define and a
// non-empty candidate list without repeats.
func (s Space) Validate() error {
	if len(s.Knobs) == 0 {
		return fmt.Errorf("%w: no knobs declared", ErrInvalidSpace)
	}
	names := make(map[string]struct{}, len(s.Knobs))
	defines := make(map[string]struct{}, len(s.Knobs))
	for _, k := range s.Knobs {
		if k.Name == "" || k.Define == "" {
			return fmt.Errorf("%w: knob needs both a name and a define", ErrInvalidSpace)
		}
		if _, dup := names[k.Name]; dup {
			return fmt.Errorf("%w: duplicate knob name %q", ErrInvalidSpace, k.Name)
		}
		if _, dup := defines[k.Define]; dup {
			return fmt.Errorf("%w: duplicate knob define %q", ErrInvalidSpace, k.Define)
		}
		names[k.Name] = struct{}{}
		defines[k.Define] = struct{}{}

		if len(k.Values) == 0 {
			return fmt.Errorf("%w: knob %q has no candidate values", ErrInvalidSpace, k.Name)
		}
		seen := make(map[int]struct{}, len(k.Values))
		for _, v := range k.Values {
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: knob %q lists value %d twice", ErrInvalidSpace, k.Name, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

// Size is the number of points in the Cartesian product.
func (s Space) Size() int {
	if len(s.Knobs) == 0 {
		return 0
	}
	n := 1
	for _, k := range s.Knobs {
		n *= len(k.Values)
	}
	return n
}

// Product returns every combination of candidate values. The first knob is
// the outermost loop and candidates keep their declared order, so the result
// is identical across runs for identical input.
func (s Space) Product() []ParameterSet {
	total := s.Size()
	if total == 0 {
		return nil
	}
	out := make([]ParameterSet, 0, total)
	idx := make([]int, len(s.Knobs))
	for {
		ps := make(ParameterSet, len(s.Knobs))
		for i, k := range s.Knobs {
			ps[i] = Setting{Name: k.Name, Value: k.Values[idx[i]]}
		}
		out = append(out, ps)

		// odometer increment, last knob fastest
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(s.Knobs[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// Enumerate returns the evaluation order for a sweep: the baseline first,
// then every product point that is not equal to it. The baseline does not
// need to lie inside the product. No two returned sets are equal.
func (s Space) Enumerate(baseline ParameterSet) ([]ParameterSet, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.CheckParameterSet(baseline); err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	product := s.Product()
	out := make([]ParameterSet, 0, len(product)+1)
	seen := make(map[string]struct{}, len(product)+1)

	out = append(out, baseline.Clone())
	seen[baseline.Key()] = struct{}{}

	for _, ps := range product {
		if ps.Equal(baseline) {
			continue
		}
		key := ps.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ps)
	}
	return out, nil
}

// CheckParameterSet verifies that ps assigns every knob of s exactly once, in
// declaration order.
func (s Space) CheckParameterSet(ps ParameterSet) error {
	if len(ps) != len(s.Knobs) {
		return fmt.Errorf("%w: parameter set has %d settings, space has %d knobs", ErrInvalidSpace, len(ps), len(s.Knobs))
	}
	for i, k := range s.Knobs {
		if ps[i].Name != k.Name {
			return fmt.Errorf("%w: setting %d is %q, want %q", ErrInvalidSpace, i, ps[i].Name, k.Name)
		}
	}
	return nil
}

// ParseIntList parses a comma-separated list of integers such as "1,2,4,8".
// Whitespace around entries is ignored. A list that is empty after parsing,
// a non-numeric entry or a repeated value is an error.
func ParseIntList(raw string) ([]int, error) {
	var out []int
	seen := make(map[int]struct{})
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidSpace, part)
		}
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("%w: value %d listed twice", ErrInvalidSpace, v)
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty value list %q", ErrInvalidSpace, raw)
	}
	return out, nil
}

// FormatIntList is the inverse of ParseIntList.
func FormatIntList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
