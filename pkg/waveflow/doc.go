/*
Package waveflow provides wave-scheduled orchestration for multi-agent
workflows over a schema-merged shared state.

# Overview

waveflow is a Go library for building and executing directed graphs where
nodes produce partial state updates and edges define flow. Independent
nodes run concurrently in waves; their updates are folded into session
state by per-field merge strategies, so parallel branches never race on
shared data.

Built for orchestrating LLM-powered pipelines with:
  - Declared merge strategies (overwrite, append, key-merge) per state field
  - Deterministic merges in node declaration order
  - Fan-out/fan-in, conditional routing, and bounded retry loops
  - Session snapshots for crash recovery via SQLite
  - OpenTelemetry integration for observability

# Basic Usage

Declare a schema, wire nodes and edges, compile, execute:

	schema := state.NewSchema().
	    Overwrite("csv_path", "data_summary").
	    Append("artifacts")

	summarize := func(ctx waveflow.Context, s state.State) (state.Update, error) {
	    return state.Update{"data_summary": profile(s.String("csv_path"))}, nil
	}

	graph := waveflow.NewGraph(schema).
	    AddNode("summarize", summarize).
	    AddEdge("summarize", waveflow.END).
	    SetEntry("summarize")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := waveflow.NewContext(context.Background())
	result, err := compiled.Execute(ctx, state.State{"csv_path": "sales.csv"})

# Fan-Out and Fan-In

Multiple edges from one node run the targets in the same wave; a node with
several unconditional predecessors waits for all of them:

	graph.AddEdge("planner", "kpi")
	graph.AddEdge("planner", "stats")
	graph.AddEdge("planner", "charts")
	graph.AddEdge("kpi", "writer")
	graph.AddEdge("stats", "writer")
	graph.AddEdge("charts", "writer")

The three analysis nodes execute concurrently against clones of the same
pre-wave state; "writer" runs once, after the wave merges.

# Decisions and Loops

Decision nodes return a route label resolved against a declared table:

	review := func(ctx waveflow.Context, s state.State) (state.Update, string, error) {
	    if complete(s) {
	        return nil, "approve", nil
	    }
	    return state.Update{"iteration": s.Int("iteration") + 1}, "retry", nil
	}

	graph.AddDecision("supervisor", review)
	graph.AddConditionalEdge("supervisor", map[string]string{
	    "approve": waveflow.END,
	    "retry":   "planner",
	})

Routing back to an already-completed node starts a new pass. Bound the
loop with an iteration ceiling; once the counter reaches the ceiling, the
decision is forced onto its route to END:

	result, err := compiled.Execute(ctx, initial,
	    waveflow.WithLoopCeiling("iteration", 3))

A hard wave limit (default 1000, see WithMaxWaves) backstops graphs whose
decisions never settle.

# Checkpointing

Enable crash recovery with a snapshot store and a stable session id:

	store, err := checkpoint.NewSQLiteStore("./sessions.db")
	defer store.Close()

	ctx := waveflow.NewContext(context.Background(),
	    waveflow.WithSessionID("report-2024-q3"))
	result, err := compiled.Execute(ctx, initial,
	    waveflow.WithCheckpointer(store))

A snapshot is saved after every wave. Calling Execute again with the same
session id resumes from the last snapshot instead of starting over; a
session that already finished returns its stored state without running
anything. Snapshot writes that fail are logged and the run continues,
unless WithCheckpointFailFast is set.

# Observability

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := waveflow.NewContext(context.Background(), waveflow.WithLogger(logger))
	result, err := compiled.Execute(ctx, initial,
	    waveflow.WithMetrics(observability.NewMetricsRecorder()),
	    waveflow.WithTracing())

Logs carry structured fields: session_id, node_id, wave, attempt,
duration_ms. Metrics: waveflow.node.executions, waveflow.node.latency_ms,
waveflow.wave.executions, and friends. Tracing nests session > wave >
node spans.

# Error Handling

Errors identify the node that failed:

	var nodeErr *waveflow.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

Panics inside nodes are recovered into PanicError with a stack trace. A
decision returning a label outside its table yields LabelError. A frontier
that empties before END yields ErrStalled.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - checkpoint.Store implementations are safe for concurrent use

# Subpackages

  - state: shared state, schema, and merge strategies
  - checkpoint: session snapshot storage (memory, SQLite)
  - config: file-loadable execution settings
  - errors: error categorization and retry with backoff
  - llm: LLM client interface and OpenAI-compatible implementation
  - prompt: state-backed prompt template expansion
  - registry: named node factories for graph assembly
  - observability: logging, metrics, and tracing helpers
  - report: a complete CSV-to-PDF analysis pipeline built on the engine
*/
package waveflow
