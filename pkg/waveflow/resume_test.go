package waveflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveflow-io/waveflow/pkg/waveflow/checkpoint"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

func sessionCtx(id string) Context {
	return NewContext(context.Background(), WithSessionID(id))
}

func TestExecuteSavesSnapshotPerWave(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("snap"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	data, err := store.Load("snap")
	require.NoError(t, err)
	snap, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "snap", snap.SessionID)
	assert.Equal(t, []string{"a", "b"}, snap.Completed)
	assert.Empty(t, snap.Frontier, "finished session has no ready set")
}

func TestResumeSkipsCompletedWork(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	var aRuns, bCalls atomic.Int32
	g := NewGraph(testSchema()).
		AddNode("a", func(_ Context, _ state.State) (state.Update, error) {
			aRuns.Add(1)
			return state.Update{"log": "a"}, nil
		}).
		AddNode("b", func(_ Context, _ state.State) (state.Update, error) {
			if bCalls.Add(1) == 1 {
				return nil, errors.New("crash")
			}
			return state.Update{"log": "b"}, nil
		}).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")
	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("resume-1"), state.State{}, WithCheckpointer(store))
	require.Error(t, err)

	result, err := compiled.Execute(sessionCtx("resume-1"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	assert.Equal(t, int32(1), aRuns.Load(), "completed node must not re-run")
	assert.Equal(t, []string{"a", "b"}, result.State.Strings("log"))
	assert.Equal(t, []string{"a", "b"}, result.Completed)
	assert.Equal(t, 1, result.Waves, "only the interrupted wave runs again")
}

func TestResumeFinishedSessionReturnsStoredState(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	var runs atomic.Int32
	compiled, err := NewGraph(testSchema()).
		AddNode("a", func(_ Context, _ state.State) (state.Update, error) {
			runs.Add(1)
			return state.Update{"output": "done"}, nil
		}).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("fin"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	result, err := compiled.Execute(sessionCtx("fin"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 0, result.Waves)
	assert.Equal(t, "done", result.State.String("output"))
	assert.Equal(t, []string{"a"}, result.Completed)
}

func TestResumePreservesFanInProgress(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	var joinRuns atomic.Int32
	var failOnce atomic.Bool
	failOnce.Store(true)

	compiled, err := NewGraph(testSchema()).
		AddNode("start", noop).
		AddNode("left", put("log", "left")).
		AddNode("right", func(_ Context, _ state.State) (state.Update, error) {
			if failOnce.CompareAndSwap(true, false) {
				return nil, errors.New("transient crash")
			}
			return state.Update{"log": "right"}, nil
		}).
		AddNode("join", func(_ Context, _ state.State) (state.Update, error) {
			joinRuns.Add(1)
			return nil, nil
		}).
		AddEdge("start", "left").
		AddEdge("start", "right").
		AddEdge("left", "join").
		AddEdge("right", "join").
		AddEdge("join", END).
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("fanin"), state.State{}, WithCheckpointer(store))
	require.Error(t, err)

	result, err := compiled.Execute(sessionCtx("fanin"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)
	assert.Equal(t, int32(1), joinRuns.Load())
	assert.Contains(t, result.Completed, "join")
}

func TestFreshSessionIgnoresSnapshot(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	var runs atomic.Int32
	compiled, err := NewGraph(testSchema()).
		AddNode("a", func(_ Context, _ state.State) (state.Update, error) {
			runs.Add(1)
			return nil, nil
		}).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("fresh"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("fresh"), state.State{},
		WithCheckpointer(store), WithFreshSession())
	require.NoError(t, err)

	assert.Equal(t, int32(2), runs.Load())
}

func TestCorruptSnapshotStartsFresh(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Save("corrupt", []byte("not a snapshot")))

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	result, err := compiled.Execute(sessionCtx("corrupt"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Completed)
}

func TestSnapshotVersionMismatch(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	snap := checkpoint.New("old", []byte("{}"), 0, nil, nil, []string{"a"})
	snap.Version = 99
	data, err := snap.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("old", data))

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("old"), state.State{}, WithCheckpointer(store))
	assert.ErrorIs(t, err, ErrSnapshotVersion)
}

func TestSnapshotUnknownFrontierNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	snap := checkpoint.New("drift", []byte("{}"), 0, nil, nil, []string{"removed_node"})
	data, err := snap.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("drift", data))

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("drift"), state.State{}, WithCheckpointer(store))
	require.Error(t, err)

	var cerr *CheckpointError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// erroringStore fails every Save but loads normally.
type erroringStore struct {
	checkpoint.Store
}

func (e *erroringStore) Save(string, []byte) error {
	return errors.New("disk full")
}

func TestCheckpointSaveFailureContinues(t *testing.T) {
	store := &erroringStore{Store: checkpoint.NewMemoryStore()}

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	result, err := compiled.Execute(sessionCtx("lossy"), state.State{},
		WithCheckpointer(store),
		WithObservabilityLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Completed)
}

func TestCheckpointSaveFailureFailFast(t *testing.T) {
	store := &erroringStore{Store: checkpoint.NewMemoryStore()}

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("strict"), state.State{},
		WithCheckpointer(store),
		WithCheckpointFailFast())
	require.Error(t, err)

	var cerr *CheckpointError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "save", cerr.Op)
}

// bareContext is a minimal Context with no session id.
type bareContext struct {
	context.Context
}

func (bareContext) Logger() *slog.Logger { return slog.Default() }
func (bareContext) SessionID() string    { return "" }
func (bareContext) NodeID() string       { return "" }
func (bareContext) Wave() int            { return 0 }
func (bareContext) Attempt() int         { return 1 }

func TestCheckpointingRequiresSessionID(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(bareContext{context.Background()}, state.State{},
		WithCheckpointer(store))
	assert.ErrorIs(t, err, ErrSessionIDRequired)
}

func TestResumeLoopSession(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	var crash atomic.Bool
	crash.Store(true)

	compiled, err := NewGraph(testSchema()).
		AddNode("work", put("output", "draft")).
		AddDecision("check", func(_ Context, s state.State) (state.Update, string, error) {
			n := s.Int("iteration")
			if n >= 2 {
				return nil, "done", nil
			}
			if n == 1 && crash.CompareAndSwap(true, false) {
				return nil, "", errors.New("crash mid-loop")
			}
			return state.Update{"iteration": n + 1}, "again", nil
		}).
		AddEdge("work", "check").
		AddConditionalEdge("check", map[string]string{"done": END, "again": "work"}).
		SetEntry("work").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Execute(sessionCtx("loop"), state.State{}, WithCheckpointer(store))
	require.Error(t, err)

	result, err := compiled.Execute(sessionCtx("loop"), state.State{}, WithCheckpointer(store))
	require.NoError(t, err)

	// The pass counter survives the crash.
	assert.Equal(t, 2, result.State.Int("iteration"))
	assert.GreaterOrEqual(t, result.Passes, 2)
}
