package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FilterKind is a comparison operator applied by a filter.
type FilterKind string

// Filter kinds
const (
	Equal          FilterKind = "EQUAL"
	NotEqual       FilterKind = "NOT_EQUAL"
	Greater        FilterKind = "GREATER"
	GreaterOrEqual FilterKind = "GREATER_OR_EQUAL"
	Less           FilterKind = "LESS"
	LessOrEqual    FilterKind = "LESS_OR_EQUAL"
)

// FilterValue is the right hand side of a filter. It decodes from either a
// JSON string or a JSON number and keeps the literal text, so integers wider
// than 64 bits are never rounded through float64. Struct-encoded gRPC
// requests must send it as a string.
type FilterValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FilterValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("filter value must be a string or a number: %w", err)
	}
	*v = FilterValue(n.String())
	return nil
}

// FilterSpec selects orders whose Field compares to Value according to Kind.
type FilterSpec struct {
	Field OrderField  `json:"field"`
	Kind  FilterKind  `json:"kind"`
	Value FilterValue `json:"value"`
}

func (f FilterSpec) String() string {
	return fmt.Sprintf("%s %s %s", f.Field, f.Kind, f.Value)
}

// Predicate reports whether an order is selected.
type Predicate func(o *OrderWithMetadata) bool

// matchAll is the predicate of an empty filter list.
func matchAll(*OrderWithMetadata) bool { return true }

// kindTests maps each filter kind to a test on the sign of order[field] - value.
var kindTests = map[FilterKind]func(sign int) bool{
	Equal:          func(c int) bool { return c == 0 },
	NotEqual:       func(c int) bool { return c != 0 },
	Greater:        func(c int) bool { return c > 0 },
	GreaterOrEqual: func(c int) bool { return c >= 0 },
	Less:           func(c int) bool { return c < 0 },
	LessOrEqual:    func(c int) bool { return c <= 0 },
}

// CompileFilters compiles specs into one predicate that accepts an order only
// when every spec accepts it. An empty list accepts every order. Any malformed
// spec fails the whole compilation.
func CompileFilters(specs []FilterSpec) (Predicate, error) {
	if len(specs) == 0 {
		return matchAll, nil
	}
	conds := make([]Predicate, len(specs))
	for i, spec := range specs {
		cond, err := compileFilter(spec)
		if err != nil {
			return nil, fmt.Errorf("compile filter %d: %w", i, err)
		}
		conds[i] = cond
	}
	return func(o *OrderWithMetadata) bool {
		for _, cond := range conds {
			if !cond(o) {
				return false
			}
		}
		return true
	}, nil
}

func compileFilter(spec FilterSpec) (Predicate, error) {
	if !spec.Field.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFilterable, string(spec.Field))
	}
	test, ok := kindTests[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilterKind, string(spec.Kind))
	}
	op, err := newOperand(spec.Field, string(spec.Value))
	if err != nil {
		return nil, err
	}
	return func(o *OrderWithMetadata) bool {
		return test(op.compareTo(o))
	}, nil
}
