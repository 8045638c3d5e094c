// Package state provides the shared workflow state and its merge semantics.
//
// A State is a flat record of named fields. Every field is declared on a
// Schema with exactly one merge strategy, fixed before any graph using the
// schema is compiled. Nodes never mutate state directly; they return partial
// Updates that the executor folds in through Schema.Apply.
package state

// State is the shared record a workflow operates on.
// Values must be JSON-serializable so sessions can be checkpointed.
type State map[string]any

// Update is the partial state a node produces. It never needs to cover all
// fields; absent fields are left untouched when the update is applied.
type Update map[string]any

// Clone returns a deep copy of the state. Maps and slices are copied
// recursively so a node holding the pre-wave view can never observe
// writes merged after its wave started.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Get returns the value for a field and whether it is present.
func (s State) Get(field string) (any, bool) {
	v, ok := s[field]
	return v, ok
}

// String returns the field as a string, or the empty string when the field
// is absent or not a string.
func (s State) String(field string) string {
	if v, ok := s[field].(string); ok {
		return v
	}
	return ""
}

// Int returns the field as an int. JSON round-trips store numbers as
// float64, so both forms are accepted. Absent or non-numeric fields
// return zero.
func (s State) Int(field string) int {
	switch v := s[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Strings returns the field as a string slice. Checkpoint round-trips decode
// sequences as []any, so elements are converted where possible.
func (s State) Strings(field string) []string {
	switch v := s[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Map returns the field as a map, or nil when absent or not a map.
func (s State) Map(field string) map[string]any {
	if v, ok := s[field].(map[string]any); ok {
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = item
		}
		return out
	}
	return nil
}

// cloneValue copies nested containers; scalars are returned as-is.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
