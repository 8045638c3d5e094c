package waveflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails; multiple problems are joined.
//
// Validation checks:
//  1. A state schema is set
//  2. Entry point is set and references a declared node
//  3. Every unconditional edge endpoint references a declared node or END
//  4. Every conditional edge source is a declared decision node
//  5. Every decision node has a conditional edge, and no unconditional ones
//  6. Every label-table target references a declared node or END
//  7. A path from the entry point to END exists
//
// Nodes unreachable from the entry are logged as warnings but do not fail
// compilation.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.schema == nil {
		errs = append(errs, ErrNoSchema)
	}

	if g.entry == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if !g.declared(g.entry) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entry))
	}

	for from, targets := range g.edges {
		if !g.declared(from) {
			errs = append(errs, fmt.Errorf("%w: edge source %q", ErrNodeNotFound, from))
		}
		if _, isDecision := g.decisions[from]; isDecision {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDecisionFanOut, from))
		}
		for _, to := range targets {
			if to != END && !g.declared(to) {
				errs = append(errs, fmt.Errorf("%w: edge target %q", ErrNodeNotFound, to))
			}
		}
	}

	for from, table := range g.routes {
		if !g.declared(from) {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q", ErrNodeNotFound, from))
		} else if _, isDecision := g.decisions[from]; !isDecision {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotDecision, from))
		}
		for label, to := range table {
			if to != END && !g.declared(to) {
				errs = append(errs, fmt.Errorf("%w: label %q target %q", ErrNodeNotFound, label, to))
			}
		}
	}

	for id := range g.decisions {
		if _, routed := g.routes[id]; !routed {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDecisionUnrouted, id))
		}
	}

	if g.entry != "" && g.declared(g.entry) && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// declared reports whether id names a work or decision node.
func (g *Graph) declared(id string) bool {
	if _, ok := g.work[id]; ok {
		return true
	}
	_, ok := g.decisions[id]
	return ok
}

// successorsOf returns every possible successor of a node, conditional
// targets included. Label tables are enumerable, so reachability here is
// exact rather than assumed.
func (g *Graph) successorsOf(id string) []string {
	out := append([]string(nil), g.edges[id]...)
	if table, ok := g.routes[id]; ok {
		labels := make([]string, 0, len(table))
		for label := range table {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			out = append(out, table[label])
		}
	}
	return out
}

// hasPathToEnd checks that END is reachable from the entry point using
// reverse propagation over both edge kinds.
func (g *Graph) hasPathToEnd() bool {
	canReach := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for _, id := range g.order {
			if canReach[id] {
				continue
			}
			for _, to := range g.successorsOf(id) {
				if canReach[to] {
					canReach[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReach[g.entry]
}

// warnUnreachableNodes logs nodes not reachable from the entry.
func (g *Graph) warnUnreachableNodes() {
	if g.entry == "" || !g.declared(g.entry) {
		return
	}

	reachable := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, to := range g.successorsOf(current) {
			if to != END && !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}

	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// buildCompiledGraph snapshots the builder into an immutable CompiledGraph.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	work := make(map[string]WorkFunc, len(g.work))
	for id, fn := range g.work {
		work[id] = fn
	}
	decisions := make(map[string]DecisionFunc, len(g.decisions))
	for id, fn := range g.decisions {
		decisions[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = append([]string(nil), targets...)
	}

	routes := make(map[string]map[string]string, len(g.routes))
	for from, table := range g.routes {
		copied := make(map[string]string, len(table))
		for label, to := range table {
			copied[label] = to
		}
		routes[from] = copied
	}

	// Declaration order doubles as the deterministic merge order: a wave's
	// updates are always folded in by this index, never by completion timing.
	order := append([]string(nil), g.order...)
	orderIndex := make(map[string]int, len(order))
	for i, id := range order {
		orderIndex[id] = i
	}

	// Unconditional predecessors drive fan-in counting. Conditional routes
	// activate their target directly instead of counting toward readiness,
	// otherwise a loop-back edge would deadlock its own target.
	predecessors := make(map[string][]string)
	for from, targets := range edges {
		for _, to := range targets {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}
	for to := range predecessors {
		preds := predecessors[to]
		sort.Slice(preds, func(i, j int) bool { return orderIndex[preds[i]] < orderIndex[preds[j]] })
	}

	return &CompiledGraph{
		schema:       g.schema,
		work:         work,
		decisions:    decisions,
		edges:        edges,
		routes:       routes,
		entry:        g.entry,
		order:        order,
		orderIndex:   orderIndex,
		predecessors: predecessors,
	}
}
