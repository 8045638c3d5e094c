package waveflow

import "github.com/waveflow-io/waveflow/pkg/waveflow/state"

// END is the terminal marker.
// Use it as an edge or label-table target to indicate the session is done.
const END = "__end__"

// WorkFunc is the signature of a work node.
// It receives the execution context and a read-only clone of the pre-wave
// state, and returns a partial update (or nil for no change). The update is
// merged into session state at the wave boundary, never by the node itself.
//
// Side effects are permitted but must tolerate re-invocation: a node marked
// retry-eligible, or re-run through a declared cycle, executes the same
// logical step more than once.
//
// Example:
//
//	func summarize(ctx waveflow.Context, s state.State) (state.Update, error) {
//	    return state.Update{"data_summary": profile(s.String("csv_path"))}, nil
//	}
type WorkFunc func(ctx Context, s state.State) (state.Update, error)

// DecisionFunc is the signature of a decision node.
// It returns an optional update plus a route label. The update is merged
// before the label is resolved against the node's label table, so routing
// always reflects the state the decision just produced.
//
// Example:
//
//	func review(ctx waveflow.Context, s state.State) (state.Update, string, error) {
//	    if complete(s) {
//	        return nil, "approve", nil
//	    }
//	    return state.Update{"iteration": s.Int("iteration") + 1}, "retry", nil
//	}
type DecisionFunc func(ctx Context, s state.State) (state.Update, string, error)

// nodeKind distinguishes work from decision nodes in builder bookkeeping.
type nodeKind int

const (
	kindWork nodeKind = iota
	kindDecision
)
