package state

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy is the merge rule declared for a field.
type Strategy int

const (
	// Overwrite replaces the current value; last writer wins.
	Overwrite Strategy = iota

	// Append accumulates values after existing ones. The update value may be
	// a single element or a slice; either way arrival order is preserved.
	Append

	// KeyMerge shallow-merges a partial map into the current map: new keys
	// added, existing keys overwritten, absent keys untouched.
	KeyMerge
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	case KeyMerge:
		return "key_merge"
	default:
		return "unknown"
	}
}

// Sentinel errors for update application.
var (
	// ErrUnknownField indicates an update wrote a field the schema never declared.
	ErrUnknownField = errors.New("field not declared in schema")

	// ErrBadValue indicates an update value is incompatible with the field's strategy.
	ErrBadValue = errors.New("value incompatible with field strategy")
)

// Schema declares the fields of a State and the merge strategy of each.
// Build it once, then share it: a Schema is immutable after the graph using
// it compiles, and Apply never mutates its inputs.
//
// Example:
//
//	schema := state.NewSchema().
//	    Overwrite("csv_path", "data_summary", "plan").
//	    Append("artifacts").
//	    KeyMerge("report_sections")
type Schema struct {
	strategies map[string]Strategy
	order      []string
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{strategies: make(map[string]Strategy)}
}

// Overwrite declares fields with last-writer-wins semantics.
// Panics on an empty, whitespace, or duplicate field name.
func (sc *Schema) Overwrite(fields ...string) *Schema {
	return sc.declare(Overwrite, fields)
}

// Append declares append-only sequence fields.
// Panics on an empty, whitespace, or duplicate field name.
func (sc *Schema) Append(fields ...string) *Schema {
	return sc.declare(Append, fields)
}

// KeyMerge declares key-merged mapping fields.
// Panics on an empty, whitespace, or duplicate field name.
func (sc *Schema) KeyMerge(fields ...string) *Schema {
	return sc.declare(KeyMerge, fields)
}

// declare records the fields. Misuse panics, matching the graph builder:
// a malformed schema is a programming error, not a runtime condition.
func (sc *Schema) declare(st Strategy, fields []string) *Schema {
	for _, f := range fields {
		if f == "" {
			panic("state: field name cannot be empty")
		}
		if strings.ContainsAny(f, " \t\n\r") {
			panic("state: field name cannot contain whitespace")
		}
		if _, exists := sc.strategies[f]; exists {
			panic(fmt.Sprintf("state: duplicate field declaration: %s", f))
		}
		sc.strategies[f] = st
		sc.order = append(sc.order, f)
	}
	return sc
}

// StrategyOf returns the declared strategy for a field.
func (sc *Schema) StrategyOf(field string) (Strategy, bool) {
	st, ok := sc.strategies[field]
	return st, ok
}

// Fields returns the declared field names in declaration order.
func (sc *Schema) Fields() []string {
	out := make([]string, len(sc.order))
	copy(out, sc.order)
	return out
}

// Len returns the number of declared fields.
func (sc *Schema) Len() int {
	return len(sc.order)
}

// Apply folds an update into a state, field by field, using each field's
// declared strategy. The input state is never mutated; the result is a fresh
// State sharing no mutable containers with either input. Fields absent from
// the update carry over unchanged. Writing an undeclared field is an error.
func (sc *Schema) Apply(cur State, upd Update) (State, error) {
	next := cur.Clone()
	// Iterate declared order so error reporting is deterministic when an
	// update carries several bad fields.
	for _, field := range sc.order {
		v, ok := upd[field]
		if !ok {
			continue
		}
		switch sc.strategies[field] {
		case Overwrite:
			next[field] = cloneValue(v)
		case Append:
			merged, err := appendValues(next[field], v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			next[field] = merged
		case KeyMerge:
			merged, err := mergeKeys(next[field], v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			next[field] = merged
		}
	}
	for field := range upd {
		if _, ok := sc.strategies[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}
	return next, nil
}

// appendValues concatenates the update onto the current sequence. The current
// value may be nil, []any, or []string; the update may be a slice or a single
// element. The result is always []any so checkpoint round-trips are stable.
func appendValues(cur, upd any) ([]any, error) {
	out, err := toSlice(cur)
	if err != nil {
		return nil, fmt.Errorf("%w: current %T is not a sequence", ErrBadValue, cur)
	}
	add, err := toSlice(upd)
	if err != nil {
		// Single element append.
		return append(out, cloneValue(upd)), nil
	}
	for _, item := range add {
		out = append(out, cloneValue(item))
	}
	return out, nil
}

// toSlice normalizes nil and slice forms to []any; anything else errors.
func toSlice(v any) ([]any, error) {
	switch val := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a slice: %T", v)
	}
}

// mergeKeys shallow-merges the update map into the current map.
func mergeKeys(cur, upd any) (map[string]any, error) {
	out := make(map[string]any)
	switch val := cur.(type) {
	case nil:
	case map[string]any:
		for k, item := range val {
			out[k] = cloneValue(item)
		}
	default:
		return nil, fmt.Errorf("%w: current %T is not a map", ErrBadValue, cur)
	}
	add, ok := upd.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: update %T is not a map", ErrBadValue, upd)
	}
	for k, item := range add {
		out[k] = cloneValue(item)
	}
	return out, nil
}
