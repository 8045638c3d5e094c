// Package registry holds named node definitions so graph wiring can be
// assembled from registered parts instead of hardcoded function values.
// A pipeline registers its nodes once and builds graphs by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/waveflow-io/waveflow/pkg/waveflow"
)

// Kind distinguishes registered node types.
type Kind int

const (
	// KindWork is a node that produces a state update.
	KindWork Kind = iota

	// KindDecision is a node that additionally routes through a label table.
	KindDecision
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindWork:
		return "work"
	case KindDecision:
		return "decision"
	default:
		return "unknown"
	}
}

// Entry is a registered node definition.
type Entry struct {
	// Name is the node id used in graphs.
	Name string

	// Kind selects which function field is set.
	Kind Kind

	// Work is set for KindWork entries.
	Work waveflow.WorkFunc

	// Decision is set for KindDecision entries.
	Decision waveflow.DecisionFunc

	// Labels is the route table for KindDecision entries, applied as the
	// node's conditional edge by Apply.
	Labels map[string]string
}

// Registry is a thread-safe collection of node definitions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// RegisterWork adds a work node definition. Registering a name twice
// replaces the earlier definition.
func (r *Registry) RegisterWork(name string, fn waveflow.WorkFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry{Name: name, Kind: KindWork, Work: fn}
}

// RegisterDecision adds a decision node definition with its route table.
func (r *Registry) RegisterDecision(name string, fn waveflow.DecisionFunc, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]string, len(labels))
	for label, to := range labels {
		copied[label] = to
	}
	r.entries[name] = Entry{Name: name, Kind: KindDecision, Decision: fn, Labels: copied}
}

// Get returns a definition and whether it exists.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether a definition exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered node names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Apply adds the named nodes to a graph builder: work entries via
// AddNode, decision entries via AddDecision plus their conditional edge.
// Edges between work nodes and the entry point remain the caller's job.
func (r *Registry) Apply(g *waveflow.Graph, names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("registry: node %q not registered", name)
		}
		switch e.Kind {
		case KindWork:
			g.AddNode(e.Name, e.Work)
		case KindDecision:
			g.AddDecision(e.Name, e.Decision)
			g.AddConditionalEdge(e.Name, e.Labels)
		}
	}
	return nil
}

// ApplyAll adds every registered node to the graph, in name order.
func (r *Registry) ApplyAll(g *waveflow.Graph) error {
	return r.Apply(g, r.Names()...)
}
