package waveflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with an injected logger and run metadata;
// there is no process-wide logger instance anywhere in the engine.
//
// Context is immutable after creation. The executor derives per-node
// contexts with the node id, wave number, and attempt filled in.
type Context interface {
	context.Context

	// Logger returns the injected logger, enriched with session and node
	// context during execution. Never nil; defaults to slog.Default().
	Logger() *slog.Logger

	// SessionID returns the session identifier for this run.
	// Auto-generated if not configured.
	SessionID() string

	// NodeID returns the node currently executing, or "" outside a node.
	NodeID() string

	// Wave returns the wave number of the current node execution.
	Wave() int

	// Attempt returns the retry attempt number (1 = first attempt).
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	sessionID string
	nodeID    string
	wave      int
	attempt   int
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) SessionID() string    { return c.sessionID }
func (c *executionContext) NodeID() string       { return c.nodeID }
func (c *executionContext) Wave() int            { return c.wave }
func (c *executionContext) Attempt() int         { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger carried by the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionID sets the session identifier. Sessions sharing an id share
// checkpoints; if unset, a UUID is generated and the run is effectively
// anonymous (resumable only within the same process by keeping the id).
func WithSessionID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := waveflow.NewContext(context.Background(),
//	    waveflow.WithLogger(logger),
//	    waveflow.WithSessionID("session-001"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:   ctx,
		logger:    slog.Default(),
		sessionID: uuid.New().String(),
		attempt:   1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withNode derives a per-node context with an enriched logger.
func (c *executionContext) withNode(nodeID string, wave, attempt int) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger: c.logger.With(
			slog.String("session_id", c.sessionID),
			slog.String("node_id", nodeID),
			slog.Int("wave", wave),
			slog.Int("attempt", attempt),
		),
		sessionID: c.sessionID,
		nodeID:    nodeID,
		wave:      wave,
		attempt:   attempt,
	}
}
