package space

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting is one knob assignment.
type Setting struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ParameterSet is one complete assignment of values to all knobs, in knob
// declaration order. It is never mutated after enumeration.
type ParameterSet []Setting

// Equal reports whether both sets assign the same values to the same knobs.
func (p ParameterSet) Equal(other ParameterSet) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Key is the deterministic content address of the set, e.g. "u1_pf0_bf0_la1_al0".
// It names the raw sample files of the variant.
func (p ParameterSet) Key() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(s.Name)
		b.WriteString(strconv.Itoa(s.Value))
	}
	return b.String()
}

// String renders the set as "u=1,pf=0,...", the form ParseParameterSet accepts.
func (p ParameterSet) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Name + "=" + strconv.Itoa(s.Value)
	}
	return strings.Join(parts, ",")
}

// Value returns the value assigned to the named knob.
func (p ParameterSet) Value(name string) (int, bool) {
	for _, s := range p {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

func (p ParameterSet) Clone() ParameterSet {
	return append(ParameterSet(nil), p...)
}

// ParseParameterSet parses "u=1,pf=0,..." against s. Every knob must be
// assigned exactly once; the result is ordered like s.Knobs regardless of
// input order.
func ParseParameterSet(s Space, raw string) (ParameterSet, error) {
	assigned := make(map[string]int)
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not name=value", ErrInvalidSpace, part)
		}
		name = strings.TrimSpace(name)
		if _, known := s.Knob(name); !known {
			return nil, fmt.Errorf("%w: unknown knob %q", ErrInvalidSpace, name)
		}
		if _, dup := assigned[name]; dup {
			return nil, fmt.Errorf("%w: knob %q assigned twice", ErrInvalidSpace, name)
		}
		v, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("%w: knob %q value %q is not an integer", ErrInvalidSpace, name, val)
		}
		assigned[name] = v
	}

	out := make(ParameterSet, 0, len(s.Knobs))
	for _, k := range s.Knobs {
		v, ok := assigned[k.Name]
		if !ok {
			return nil, fmt.Errorf("%w: knob %q not assigned", ErrInvalidSpace, k.Name)
		}
		out = append(out, Setting{Name: k.Name, Value: v})
	}
	return out, nil
}
