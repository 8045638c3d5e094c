package waveflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references an undeclared node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge endpoint references an undeclared node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoSchema indicates the graph was built without a state schema.
	ErrNoSchema = errors.New("state schema not set")

	// ErrNotDecision indicates a conditional edge was attached to a work node.
	ErrNotDecision = errors.New("conditional edge source is not a decision node")

	// ErrDecisionUnrouted indicates a decision node has no conditional edge.
	ErrDecisionUnrouted = errors.New("decision node has no conditional edge")

	// ErrDecisionFanOut indicates a decision node also has unconditional edges.
	ErrDecisionFanOut = errors.New("decision node cannot have unconditional edges")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Execute() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMaxWaves indicates the wave loop exceeded the configured hard limit.
	ErrMaxWaves = errors.New("exceeded maximum waves")

	// ErrStalled indicates the ready set emptied before END was reached,
	// typically a fan-in whose predecessor sits on an untaken conditional path.
	ErrStalled = errors.New("no runnable nodes before reaching END")

	// ErrNoTerminalLabel indicates the iteration ceiling was reached but the
	// decision's label table has no route to END that could be forced.
	ErrNoTerminalLabel = errors.New("ceiling reached with no label routing to END")
)

// Sentinel errors for checkpointing and resumption.
var (
	// ErrSessionIDRequired indicates checkpointing was enabled without a session id.
	ErrSessionIDRequired = errors.New("session id required for checkpointing")

	// ErrSnapshotVersion indicates the stored snapshot format is incompatible.
	ErrSnapshotVersion = errors.New("snapshot version mismatch")
)

// NodeError wraps a node failure with its name and the operation attempted.
type NodeError struct {
	// NodeID is the node that failed.
	NodeID string
	// Op is the operation that failed ("execute", "decide", "merge", "timeout").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a node, stack included.
type PanicError struct {
	// NodeID is the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// LabelError indicates a decision returned a label outside its declared table.
type LabelError struct {
	// NodeID is the decision node.
	NodeID string
	// Label is what the decision returned.
	Label string
	// Table lists the declared labels.
	Table []string
}

// Error implements the error interface.
func (e *LabelError) Error() string {
	return fmt.Sprintf("decision %s returned undeclared label %q (declared: %v)", e.NodeID, e.Label, e.Table)
}

// CancellationError reports a session cancelled at a wave boundary. Results
// of the interrupted wave were discarded; the latest snapshot, if any, holds
// the last fully merged state.
type CancellationError struct {
	// Wave is the wave that was running or about to run.
	Wave int
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at wave %d: %v", e.Wave, e.Cause)
}

// Unwrap returns the cancellation cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// CheckpointError wraps a checkpointer failure. Save failures are surfaced as
// warnings by default and do not abort the run in progress.
type CheckpointError struct {
	// SessionID is the session whose snapshot failed.
	SessionID string
	// Op is the operation that failed ("save", "load", "marshal", "restore").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for session %s: %v", e.Op, e.SessionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// MaxWavesError provides context when the hard wave limit is exceeded.
type MaxWavesError struct {
	// Max is the configured wave limit.
	Max int
	// Frontier is the ready set that would have run next.
	Frontier []string
}

// Error implements the error interface.
func (e *MaxWavesError) Error() string {
	return fmt.Sprintf("exceeded maximum waves (%d), next ready set %v", e.Max, e.Frontier)
}

// Unwrap returns ErrMaxWaves for errors.Is support.
func (e *MaxWavesError) Unwrap() error {
	return ErrMaxWaves
}
