package waveflow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveflow-io/waveflow/pkg/waveflow/checkpoint"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// TestReportPipeline drives a realistic review loop end to end: a planner
// fans out to three section writers, a writer joins their output, and a
// supervisor either approves or sends the whole pass back to the planner.
func TestReportPipeline(t *testing.T) {
	schema := state.NewSchema().
		Overwrite("plan", "draft", "iteration", "review").
		Append("artifacts").
		KeyMerge("sections")

	section := func(name string) WorkFunc {
		return func(_ Context, s state.State) (state.Update, error) {
			body := fmt.Sprintf("%s (rev %d)", name, s.Int("iteration"))
			return state.Update{
				"sections":  map[string]any{name: body},
				"artifacts": name + ".png",
			}, nil
		}
	}

	g := NewGraph(schema).
		AddNode("planner", func(_ Context, _ state.State) (state.Update, error) {
			return state.Update{"plan": "kpi, stats, charts"}, nil
		}).
		AddNode("kpi", section("kpi")).
		AddNode("stats", section("stats")).
		AddNode("charts", section("charts")).
		AddNode("writer", func(_ Context, s state.State) (state.Update, error) {
			parts := make([]string, 0, 3)
			sections, _ := s["sections"].(map[string]any)
			for _, name := range []string{"kpi", "stats", "charts"} {
				if body, ok := sections[name].(string); ok {
					parts = append(parts, body)
				}
			}
			return state.Update{"draft": strings.Join(parts, "\n")}, nil
		}).
		AddDecision("supervisor", func(_ Context, s state.State) (state.Update, string, error) {
			n := s.Int("iteration")
			update := state.Update{"iteration": n + 1}
			// Demand two revisions before signing off.
			if n < 2 {
				update["review"] = "needs work"
				return update, "retry", nil
			}
			update["review"] = "approved"
			return update, "approve", nil
		}).
		AddEdge("planner", "kpi").
		AddEdge("planner", "stats").
		AddEdge("planner", "charts").
		AddEdge("kpi", "writer").
		AddEdge("stats", "writer").
		AddEdge("charts", "writer").
		AddEdge("writer", "supervisor").
		AddConditionalEdge("supervisor", map[string]string{
			"approve": END,
			"retry":   "planner",
		}).
		SetEntry("planner")

	compiled, err := g.Compile()
	require.NoError(t, err)

	result, err := compiled.Execute(testCtx(), state.State{}, WithMaxWaves(50))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passes, "two retries before approval")
	assert.Equal(t, 3, result.State.Int("iteration"))
	assert.Equal(t, "approved", result.State.String("review"))
	assert.False(t, result.CeilingForced)

	// Each pass runs the whole subgraph once.
	runs := map[string]int{}
	for _, id := range result.Completed {
		runs[id]++
	}
	for _, id := range []string{"planner", "kpi", "stats", "charts", "writer", "supervisor"} {
		assert.Equal(t, 3, runs[id], id)
	}

	// Appends accumulate across passes, key merges keep the latest revision.
	assert.Len(t, result.State.Strings("artifacts"), 9)
	assert.Contains(t, result.State.String("draft"), "kpi (rev 2)")
	sections, ok := result.State["sections"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, sections, 3)
}

// TestReportPipelineCeiling caps the same loop with a hard pass ceiling and
// a stubborn supervisor that never approves on its own.
func TestReportPipelineCeiling(t *testing.T) {
	schema := state.NewSchema().
		Overwrite("draft", "iteration").
		Append("artifacts")

	compiled, err := NewGraph(schema).
		AddNode("work", put("draft", "never good enough")).
		AddDecision("supervisor", func(_ Context, s state.State) (state.Update, string, error) {
			return state.Update{"iteration": s.Int("iteration") + 1}, "retry", nil
		}).
		AddEdge("work", "supervisor").
		AddConditionalEdge("supervisor", map[string]string{
			"approve": END,
			"retry":   "work",
		}).
		SetEntry("work").
		Compile()
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	defer store.Close()

	ctx := NewContext(context.Background(), WithSessionID("report-ceiling"))
	result, err := compiled.Execute(ctx, state.State{},
		WithLoopCeiling("iteration", 3),
		WithCheckpointer(store))
	require.NoError(t, err)

	assert.True(t, result.CeilingForced)
	assert.Equal(t, 3, result.State.Int("iteration"))
	assert.Equal(t, 2, result.Passes)

	// The last snapshot records the finished session.
	data, err := store.Load("report-ceiling")
	require.NoError(t, err)
	snap, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, snap.Frontier)
}
