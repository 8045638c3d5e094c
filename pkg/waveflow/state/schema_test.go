package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema().
		Overwrite("summary", "iteration").
		Append("artifacts").
		KeyMerge("sections")
}

func TestApply_OverwriteLastWriterWins(t *testing.T) {
	sc := testSchema()

	s, err := sc.Apply(State{}, Update{"summary": "first"})
	require.NoError(t, err)
	s, err = sc.Apply(s, Update{"summary": "second"})
	require.NoError(t, err)

	assert.Equal(t, "second", s.String("summary"))
}

func TestApply_AppendAccumulatesInArrivalOrder(t *testing.T) {
	sc := testSchema()

	s, err := sc.Apply(State{}, Update{"artifacts": []string{"a.png"}})
	require.NoError(t, err)
	s, err = sc.Apply(s, Update{"artifacts": []string{"b.png", "c.png"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, s.Strings("artifacts"))
}

func TestApply_AppendSingleElement(t *testing.T) {
	sc := testSchema()

	s, err := sc.Apply(State{}, Update{"artifacts": "solo.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{"solo.png"}, s.Strings("artifacts"))
}

func TestApply_KeyMergeShallowUnion(t *testing.T) {
	sc := testSchema()

	s, err := sc.Apply(State{}, Update{"sections": map[string]any{"kpis": "v1", "stats": "s1"}})
	require.NoError(t, err)
	s, err = sc.Apply(s, Update{"sections": map[string]any{"kpis": "v2", "narrative": "n1"}})
	require.NoError(t, err)

	sections := s.Map("sections")
	assert.Equal(t, "v2", sections["kpis"])      // later key overwrites
	assert.Equal(t, "s1", sections["stats"])     // absent key untouched
	assert.Equal(t, "n1", sections["narrative"]) // new key added
}

func TestApply_AbsentFieldsUnchanged(t *testing.T) {
	sc := testSchema()
	initial := State{"summary": "keep", "iteration": 3}

	s, err := sc.Apply(initial, Update{"artifacts": []string{"x.png"}})
	require.NoError(t, err)

	assert.Equal(t, "keep", s.String("summary"))
	assert.Equal(t, 3, s.Int("iteration"))
}

func TestApply_NeverMutatesInput(t *testing.T) {
	sc := testSchema()
	base := State{
		"artifacts": []any{"a.png"},
		"sections":  map[string]any{"kpis": "orig"},
	}

	_, err := sc.Apply(base, Update{
		"artifacts": []string{"b.png"},
		"sections":  map[string]any{"kpis": "changed"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png"}, base.Strings("artifacts"))
	assert.Equal(t, "orig", base.Map("sections")["kpis"])
}

func TestApply_UndeclaredFieldRejected(t *testing.T) {
	sc := testSchema()

	_, err := sc.Apply(State{}, Update{"mystery": 1})

	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestApply_StrategyTypeMismatch(t *testing.T) {
	sc := testSchema()

	_, err := sc.Apply(State{"sections": map[string]any{}}, Update{"sections": "not a map"})
	assert.ErrorIs(t, err, ErrBadValue)

	_, err = sc.Apply(State{"artifacts": 42}, Update{"artifacts": []string{"a"}})
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestSchema_DuplicateFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema().Overwrite("x").Append("x")
	})
}

func TestSchema_EmptyFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema().Overwrite("")
	})
}

func TestSchema_FieldsInDeclarationOrder(t *testing.T) {
	sc := testSchema()
	assert.Equal(t, []string{"summary", "iteration", "artifacts", "sections"}, sc.Fields())
}

func TestState_CheckpointRoundTrip(t *testing.T) {
	sc := testSchema()
	s, err := sc.Apply(State{}, Update{
		"summary":   "data",
		"iteration": 2,
		"artifacts": []string{"a.png"},
		"sections":  map[string]any{"kpis": "k"},
	})
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var restored State
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, "data", restored.String("summary"))
	assert.Equal(t, 2, restored.Int("iteration"))
	assert.Equal(t, []string{"a.png"}, restored.Strings("artifacts"))
	assert.Equal(t, "k", restored.Map("sections")["kpis"])

	// Applying to a restored state keeps working across the []any decode.
	again, err := sc.Apply(restored, Update{"artifacts": []string{"b.png"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, again.Strings("artifacts"))
}

func TestState_CloneIsDeep(t *testing.T) {
	s := State{"sections": map[string]any{"kpis": "orig"}, "artifacts": []any{"a"}}
	c := s.Clone()

	c.Map("sections")["kpis"] = "changed" // Map copies, this is a no-op on c too
	c["sections"].(map[string]any)["kpis"] = "changed"
	c["artifacts"] = append(c["artifacts"].([]any), "b")

	assert.Equal(t, "orig", s.Map("sections")["kpis"])
	assert.Len(t, s.Strings("artifacts"), 1)
}
