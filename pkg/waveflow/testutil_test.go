package waveflow

import (
	"context"
	"sync"

	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// Helper node functions used across tests.

// tracker records node executions in completion order, concurrently safe.
type tracker struct {
	mu  sync.Mutex
	ran []string
}

func (t *tracker) record(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ran = append(t.ran, name)
}

func (t *tracker) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ran...)
}

// put returns a node producing a single-field update.
func put(field string, value any) WorkFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		return state.Update{field: value}, nil
	}
}

// noop returns no update.
func noop(_ Context, _ state.State) (state.Update, error) {
	return nil, nil
}

// failing returns a node that always fails with err.
func failing(err error) WorkFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		return nil, err
	}
}

// panicking returns a node that panics with value.
func panicking(value any) WorkFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		panic(value)
	}
}

// route returns a decision that always picks the given label.
func route(label string) DecisionFunc {
	return func(_ Context, _ state.State) (state.Update, string, error) {
		return nil, label, nil
	}
}

// testCtx creates a plain test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// testSchema covers the strategies most graph tests need.
func testSchema() *state.Schema {
	return state.NewSchema().
		Overwrite("plan", "output", "iteration").
		Append("artifacts", "log").
		KeyMerge("sections")
}

// linearGraph builds a -> b -> END over the test schema.
func linearGraph() *Graph {
	return NewGraph(testSchema()).
		AddNode("a", put("log", "a")).
		AddNode("b", put("log", "b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")
}
