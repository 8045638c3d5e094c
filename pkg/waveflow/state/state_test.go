package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateAccessors(t *testing.T) {
	s := State{
		"name":    "report",
		"count":   3,
		"decoded": float64(7),
		"tags":    []string{"a", "b"},
		"mixed":   []any{"x", 1, "y"},
		"plan":    map[string]any{"goal": "charts"},
	}

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "report", s.String("name"))
		assert.Equal(t, "", s.String("count"), "non-string yields empty")
		assert.Equal(t, "", s.String("absent"))
	})

	t.Run("Int accepts decoded floats", func(t *testing.T) {
		assert.Equal(t, 3, s.Int("count"))
		assert.Equal(t, 7, s.Int("decoded"))
		assert.Equal(t, 0, s.Int("name"))
	})

	t.Run("Strings filters non-strings", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, s.Strings("tags"))
		assert.Equal(t, []string{"x", "y"}, s.Strings("mixed"))
		assert.Nil(t, s.Strings("count"))
	})

	t.Run("Map copies", func(t *testing.T) {
		m := s.Map("plan")
		m["goal"] = "changed"
		assert.Equal(t, "charts", s.Map("plan")["goal"])
		assert.Nil(t, s.Map("absent"))
	})

	t.Run("Get reports presence", func(t *testing.T) {
		_, ok := s.Get("name")
		assert.True(t, ok)
		_, ok = s.Get("absent")
		assert.False(t, ok)
	})
}

func TestCloneNil(t *testing.T) {
	var s State
	clone := s.Clone()
	assert.NotNil(t, clone)
	assert.Empty(t, clone)
}
