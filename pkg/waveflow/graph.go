package waveflow

import (
	"fmt"
	"strings"
	"sync"

	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// Graph is a mutable builder for execution graphs.
// Use NewGraph with a state schema, then chain AddNode, AddDecision,
// AddEdge, AddConditionalEdge, and SetEntry calls.
//
// Graph is NOT thread-safe during building. Construct it from a single
// goroutine, then call Compile() to produce an immutable CompiledGraph that
// any number of concurrent sessions may share.
//
// Example:
//
//	g := waveflow.NewGraph(schema).
//	    AddNode("planner", plan).
//	    AddNode("kpi", kpiSection).
//	    AddNode("stats", statsSection).
//	    AddNode("writer", write).
//	    AddDecision("supervisor", review).
//	    AddEdge("planner", "kpi").
//	    AddEdge("planner", "stats").
//	    AddEdge("kpi", "writer").
//	    AddEdge("stats", "writer").
//	    AddEdge("writer", "supervisor").
//	    AddConditionalEdge("supervisor", map[string]string{
//	        "approve": waveflow.END,
//	        "retry":   "planner",
//	    }).
//	    SetEntry("planner")
//
//	compiled, err := g.Compile()
type Graph struct {
	mu        sync.RWMutex
	schema    *state.Schema
	work      map[string]WorkFunc
	decisions map[string]DecisionFunc
	order     []string
	edges     map[string][]string
	routes    map[string]map[string]string
	entry     string
}

// NewGraph creates a graph builder over the given state schema.
// The schema fixes every field's merge strategy before any node exists;
// every update any node ever produces is applied through it.
func NewGraph(schema *state.Schema) *Graph {
	return &Graph{
		schema:    schema,
		work:      make(map[string]WorkFunc),
		decisions: make(map[string]DecisionFunc),
		edges:     make(map[string][]string),
		routes:    make(map[string]map[string]string),
	}
}

// AddNode adds a named work node. Returns the graph for chaining.
//
// Panics if:
//   - id is empty, reserved ("END"/"__end__", case-insensitive), or
//     contains whitespace
//   - fn is nil
//   - id already exists in the graph
func (g *Graph) AddNode(id string, fn WorkFunc) *Graph {
	validateNodeID(id)
	if fn == nil {
		panic("waveflow: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkDuplicate(id)
	g.work[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddDecision adds a named decision node. A decision node routes via a label
// table attached with AddConditionalEdge; it cannot carry unconditional
// outgoing edges. Returns the graph for chaining.
//
// Panics under the same conditions as AddNode.
func (g *Graph) AddDecision(id string, fn DecisionFunc) *Graph {
	validateNodeID(id)
	if fn == nil {
		panic("waveflow: decision function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkDuplicate(id)
	g.decisions[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds an unconditional edge. The target can be a node id or END.
// Returns the graph for chaining.
//
// Several outgoing edges from one node declare fan-out: every target becomes
// independently runnable once the node completes. Several incoming edges
// declare fan-in: the target runs only after all its predecessors completed
// in the current pass.
//
// Endpoint validation happens at Compile() time so edges may be added in any
// order.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge binds a label table to a decision node: the label the
// decision returns selects the successor. Targets may be node ids or END.
// Returns the graph for chaining.
//
// Panics if the table is empty or a prior table was already bound to from.
// Everything else (source exists and is a decision, targets exist) is
// validated at Compile() time.
func (g *Graph) AddConditionalEdge(from string, table map[string]string) *Graph {
	if len(table) == 0 {
		panic("waveflow: conditional edge label table cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.routes[from]; exists {
		panic(fmt.Sprintf("waveflow: duplicate conditional edge from %s", from))
	}
	copied := make(map[string]string, len(table))
	for label, to := range table {
		copied[label] = to
	}
	g.routes[from] = copied
	return g
}

// SetEntry designates the entry point node. Must be called before Compile().
// Returns the graph for chaining. Validation happens at Compile() time.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entry = id
	return g
}

// checkDuplicate panics when the id is already taken. Caller holds the lock.
func (g *Graph) checkDuplicate(id string) {
	if _, exists := g.work[id]; exists {
		panic(fmt.Sprintf("waveflow: duplicate node ID: %s", id))
	}
	if _, exists := g.decisions[id]; exists {
		panic(fmt.Sprintf("waveflow: duplicate node ID: %s", id))
	}
}

// validateNodeID panics on malformed node ids.
func validateNodeID(id string) {
	if id == "" {
		panic("waveflow: node ID cannot be empty")
	}
	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("waveflow: node ID cannot be reserved word 'END'")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("waveflow: node ID cannot contain whitespace")
	}
}
