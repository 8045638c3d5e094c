package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveflow-io/waveflow/pkg/waveflow"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

func noteWriter(field, value string) waveflow.WorkFunc {
	return func(_ waveflow.Context, _ state.State) (state.Update, error) {
		return state.Update{field: value}, nil
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	r.RegisterWork("planner", noteWriter("plan", "draft"))

	e, ok := r.Get("planner")
	require.True(t, ok)
	assert.Equal(t, "planner", e.Name)
	assert.Equal(t, KindWork, e.Kind)
	assert.NotNil(t, e.Work)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.True(t, r.Has("planner"))
	assert.Equal(t, 1, r.Len())
}

func TestRegisterDecisionCopiesLabels(t *testing.T) {
	labels := map[string]string{"approve": waveflow.END}
	r := New()
	r.RegisterDecision("supervisor", func(_ waveflow.Context, _ state.State) (state.Update, string, error) {
		return nil, "approve", nil
	}, labels)

	labels["approve"] = "elsewhere"

	e, _ := r.Get("supervisor")
	assert.Equal(t, waveflow.END, e.Labels["approve"])
	assert.Equal(t, KindDecision, e.Kind)
}

func TestNamesSorted(t *testing.T) {
	r := New()
	r.RegisterWork("writer", noteWriter("a", "1"))
	r.RegisterWork("kpi", noteWriter("b", "2"))
	r.RegisterWork("planner", noteWriter("c", "3"))

	assert.Equal(t, []string{"kpi", "planner", "writer"}, r.Names())
}

func TestApplyBuildsRunnableGraph(t *testing.T) {
	r := New()
	r.RegisterWork("planner", noteWriter("plan", "draft"))
	r.RegisterDecision("supervisor", func(_ waveflow.Context, s state.State) (state.Update, string, error) {
		return nil, "approve", nil
	}, map[string]string{"approve": waveflow.END})

	schema := state.NewSchema().Overwrite("plan")
	g := waveflow.NewGraph(schema)
	require.NoError(t, r.Apply(g, "planner", "supervisor"))

	g.AddEdge("planner", "supervisor").SetEntry("planner")
	compiled, err := g.Compile()
	require.NoError(t, err)

	result, err := compiled.Execute(waveflow.NewContext(context.Background()), state.State{})
	require.NoError(t, err)
	assert.Equal(t, "draft", result.State.String("plan"))
	assert.Equal(t, []string{"planner", "supervisor"}, result.Completed)
}

func TestApplyUnknownName(t *testing.T) {
	r := New()
	g := waveflow.NewGraph(state.NewSchema().Overwrite("x"))
	err := r.Apply(g, "ghost")
	assert.ErrorContains(t, err, `node "ghost" not registered`)
}
