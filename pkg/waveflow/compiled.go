package waveflow

import (
	"sort"

	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// CompiledGraph is an immutable, executable graph produced by Compile().
//
// It is safe for concurrent use: any number of sessions may Execute against
// the same CompiledGraph simultaneously. Sessions share the definition but
// never share state.
type CompiledGraph struct {
	schema    *state.Schema
	work      map[string]WorkFunc
	decisions map[string]DecisionFunc
	edges     map[string][]string
	routes    map[string]map[string]string
	entry     string

	// Precomputed for the executor.
	order        []string
	orderIndex   map[string]int
	predecessors map[string][]string
}

// Schema returns the state schema the graph was built with.
func (cg *CompiledGraph) Schema() *state.Schema {
	return cg.schema
}

// EntryPoint returns the entry node id.
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entry
}

// NodeIDs returns all node ids in declaration order.
func (cg *CompiledGraph) NodeIDs() []string {
	return append([]string(nil), cg.order...)
}

// HasNode reports whether a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	if _, ok := cg.work[id]; ok {
		return true
	}
	_, ok := cg.decisions[id]
	return ok
}

// IsDecision reports whether the node routes through a label table.
func (cg *CompiledGraph) IsDecision(id string) bool {
	_, ok := cg.decisions[id]
	return ok
}

// Successors returns the unconditional edge targets of a node.
func (cg *CompiledGraph) Successors(id string) []string {
	return append([]string(nil), cg.edges[id]...)
}

// Predecessors returns the unconditional predecessors of a node; these are
// the nodes a fan-in waits for.
func (cg *CompiledGraph) Predecessors(id string) []string {
	return append([]string(nil), cg.predecessors[id]...)
}

// Labels returns the declared route labels of a decision node, sorted.
func (cg *CompiledGraph) Labels(id string) []string {
	table, ok := cg.routes[id]
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// routeTarget resolves a decision label against the node's table.
func (cg *CompiledGraph) routeTarget(id, label string) (string, bool) {
	table, ok := cg.routes[id]
	if !ok {
		return "", false
	}
	to, ok := table[label]
	return to, ok
}

// terminalLabel returns a label from the decision's table whose target is
// END, preferring the lexically smallest for determinism. Used when the
// iteration ceiling forces the terminal route.
func (cg *CompiledGraph) terminalLabel(id string) (string, bool) {
	table, ok := cg.routes[id]
	if !ok {
		return "", false
	}
	best := ""
	for label, to := range table {
		if to != END {
			continue
		}
		if best == "" || label < best {
			best = label
		}
	}
	return best, best != ""
}

// sortByOrder sorts node ids in place by declaration order.
func (cg *CompiledGraph) sortByOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return cg.orderIndex[ids[i]] < cg.orderIndex[ids[j]]
	})
}
