package checkpoint

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	stateJSON, err := json.Marshal(map[string]any{"plan": "draft", "iteration": 2})
	require.NoError(t, err)

	snap := New("sess-1", stateJSON, 2,
		[]string{"planner", "writer", "planner"},
		[]string{"planner"},
		[]string{"writer"})

	data, err := snap.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, Version, got.Version)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, 2, got.Pass)
	assert.Equal(t, []string{"planner", "writer", "planner"}, got.Completed)
	assert.Equal(t, []string{"planner"}, got.PassCompleted)
	assert.Equal(t, []string{"writer"}, got.Frontier)
	assert.JSONEq(t, string(stateJSON), string(got.State))
	assert.False(t, got.Timestamp.IsZero())
}

func TestUnmarshalInvalid(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}

func TestNewCopiesSlices(t *testing.T) {
	completed := []string{"a"}
	snap := New("s", []byte("{}"), 0, completed, nil, nil)
	completed[0] = "b"
	assert.Equal(t, []string{"a"}, snap.Completed)
}

// storeTests exercises the Store contract against any implementation.
func storeTests(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save("s1", []byte("first")))
	require.NoError(t, store.Save("s2", []byte("other")))

	data, err := store.Load("s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	// Last write wins.
	require.NoError(t, store.Save("s1", []byte("second")))
	data, err = store.Load("s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	require.NoError(t, store.Delete("s1"))
	_, err = store.Load("s1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing session is not an error.
	require.NoError(t, store.Delete("never-saved"))

	data, err = store.Load("s2")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), data)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Save("s3", []byte("x")), ErrStoreClosed)
	_, err = store.Load("s2")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	storeTests(t, store)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save("durable", []byte("payload")))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	data, err := store.Load("durable")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	buf := []byte("original")
	require.NoError(t, store.Save("s", buf))
	buf[0] = 'X'

	data, err := store.Load("s")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)

	// Mutating the loaded copy must not affect the stored bytes.
	data[0] = 'Y'
	again, err := store.Load("s")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
