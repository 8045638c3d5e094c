package waveflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waveflow-io/waveflow/pkg/waveflow/checkpoint"
	"github.com/waveflow-io/waveflow/pkg/waveflow/observability"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// Result is the outcome of a completed session.
type Result struct {
	// State is the final merged state.
	State state.State

	// Completed is the append-only execution log: node names in the order
	// they were folded in, across all passes. A node re-run through a cycle
	// appears once per run.
	Completed []string

	// Waves is the number of waves executed by this call. Zero when the
	// session was already finished and restored from a snapshot.
	Waves int

	// Passes is the number of cycle restarts the session went through.
	Passes int

	// CeilingForced reports whether the iteration ceiling overrode at least
	// one decision's route.
	CeilingForced bool

	// SessionID identifies the session for checkpoint lookup.
	SessionID string
}

// session is the mutable bookkeeping of one Execute call.
type session struct {
	cur           state.State
	pass          int
	completed     []string
	passCompleted []string
	passDone      map[string]bool
	frontier      []string
	ceilingForced bool
	finished      bool
}

// Execute runs the graph to END and returns the final state.
//
// Scheduling is wave-based: each wave runs every ready node concurrently
// against a snapshot of the pre-wave state, then folds their updates into
// session state in node declaration order. A node is ready when all of its
// unconditional predecessors have completed in the current pass; conditional
// routes activate their target directly. Routing back to an already-completed
// node starts a new pass.
//
// With a checkpointer configured, a snapshot is saved after every wave and a
// later Execute with the same session id resumes instead of starting over.
func (cg *CompiledGraph) Execute(ctx Context, initial state.State, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ec := asExecutionContext(ctx)
	if cfg.logger != nil {
		ec = &executionContext{Context: ec.Context, logger: cfg.logger, sessionID: ec.sessionID, attempt: 1}
	}
	if cfg.store != nil && ec.sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	sessionLogger := ec.logger.With("session_id", ec.sessionID)
	elapsed := observability.TimedOperation()

	spanCtx, span := cfg.spans.StartSessionSpan(ec.Context, cg.entry, ec.sessionID)
	ec = &executionContext{Context: spanCtx, logger: ec.logger, sessionID: ec.sessionID, attempt: 1}

	sess, err := cg.openSession(ec, &cfg, sessionLogger, initial)
	if err != nil {
		cfg.spans.EndSpanWithError(span, err)
		return nil, err
	}

	if sess.finished {
		// A prior run already reached END; nothing left to schedule.
		cfg.spans.EndSpanWithError(span, nil)
		return &Result{
			State:     sess.cur,
			Completed: sess.completed,
			Passes:    sess.pass,
			SessionID: ec.sessionID,
		}, nil
	}

	waves := 0
	runErr := func() error {
		for len(sess.frontier) > 0 {
			if cause := ec.Context.Err(); cause != nil {
				return &CancellationError{Wave: waves, Cause: cause}
			}
			if waves >= cfg.maxWaves {
				return &MaxWavesError{Max: cfg.maxWaves, Frontier: sess.frontier}
			}

			if err := cg.executeWave(ec, &cfg, sess, waves, sessionLogger); err != nil {
				return err
			}
			waves++
		}

		if !sess.finished {
			return fmt.Errorf("%w: pass %d after %s", ErrStalled, sess.pass, lastOf(sess.completed))
		}
		return nil
	}()

	durationMs := elapsed()
	cfg.spans.EndSpanWithError(span, runErr)
	cfg.metrics.RecordSession(ec.Context, runErr == nil, msToDuration(durationMs))

	if runErr != nil {
		observability.LogSessionError(sessionLogger, ec.sessionID, runErr, durationMs)
		return nil, runErr
	}

	observability.LogSessionComplete(sessionLogger, ec.sessionID, durationMs, waves, len(sess.completed))
	return &Result{
		State:         sess.cur,
		Completed:     sess.completed,
		Waves:         waves,
		Passes:        sess.pass,
		CeilingForced: sess.ceilingForced,
		SessionID:     ec.sessionID,
	}, nil
}

// openSession restores a checkpointed session or starts a fresh one.
func (cg *CompiledGraph) openSession(ec *executionContext, cfg *runConfig, logger *slog.Logger, initial state.State) (*session, error) {
	fresh := func() *session {
		cur := initial.Clone()
		if cur == nil {
			cur = state.State{}
		}
		observability.LogSessionStart(logger, ec.sessionID)
		return &session{
			cur:      cur,
			passDone: make(map[string]bool),
			frontier: []string{cg.entry},
		}
	}

	if cfg.store == nil || cfg.discardCheckpoint {
		return fresh(), nil
	}

	data, err := cfg.store.Load(ec.sessionID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return fresh(), nil
	}
	if err != nil {
		// A broken snapshot must not brick the session: warn and start over.
		observability.LogCheckpointError(logger, ec.sessionID, "load", err)
		return fresh(), nil
	}

	snap, err := checkpoint.Unmarshal(data)
	if err != nil {
		observability.LogCheckpointError(logger, ec.sessionID, "restore", err)
		return fresh(), nil
	}
	if snap.Version != checkpoint.Version {
		return nil, &CheckpointError{SessionID: ec.sessionID, Op: "restore",
			Err: fmt.Errorf("%w: stored %d, supported %d", ErrSnapshotVersion, snap.Version, checkpoint.Version)}
	}

	var cur state.State
	if err := json.Unmarshal(snap.State, &cur); err != nil {
		return nil, &CheckpointError{SessionID: ec.sessionID, Op: "restore", Err: err}
	}
	for _, id := range snap.Frontier {
		if !cg.HasNode(id) {
			return nil, &CheckpointError{SessionID: ec.sessionID, Op: "restore",
				Err: fmt.Errorf("%w: frontier node %q", ErrNodeNotFound, id)}
		}
	}

	passDone := make(map[string]bool, len(snap.PassCompleted))
	for _, id := range snap.PassCompleted {
		passDone[id] = true
	}

	observability.LogSessionResumed(logger, ec.sessionID, snap.Pass, len(snap.Completed))
	return &session{
		cur:           cur,
		pass:          snap.Pass,
		completed:     append([]string(nil), snap.Completed...),
		passCompleted: append([]string(nil), snap.PassCompleted...),
		passDone:      passDone,
		frontier:      append([]string(nil), snap.Frontier...),
		finished:      len(snap.Frontier) == 0,
	}, nil
}

// executeWave runs one wave end to end: execute the frontier, fold updates in
// declaration order, resolve routes, advance the frontier, checkpoint.
func (cg *CompiledGraph) executeWave(ec *executionContext, cfg *runConfig, sess *session, wave int, logger *slog.Logger) error {
	frontier := append([]string(nil), sess.frontier...)
	cg.sortByOrder(frontier)

	observability.LogWaveStart(logger, wave, frontier)
	elapsed := observability.TimedOperation()

	waveCtx, waveSpan := cfg.spans.StartWaveSpan(ec.Context, wave)
	wec := &executionContext{Context: waveCtx, logger: ec.logger, sessionID: ec.sessionID, attempt: 1}

	results := cg.runWave(wec, cfg, wave, frontier, sess.cur)

	var waveErr error
	if cause := ec.Context.Err(); cause != nil {
		// Discard whatever the interrupted wave produced.
		waveErr = &CancellationError{Wave: wave, Cause: cause}
	} else {
		var errs []error
		for _, r := range results {
			if r.err != nil {
				errs = append(errs, r.err)
			}
		}
		waveErr = errors.Join(errs...)
	}

	durationMs := elapsed()
	cfg.spans.EndSpanWithError(waveSpan, waveErr)
	cfg.metrics.RecordWave(ec.Context, wave, len(frontier), msToDuration(durationMs))
	if waveErr != nil {
		return waveErr
	}

	// Fold updates in declaration order. results is positioned like the
	// sorted frontier, so iteration order is already deterministic.
	for _, r := range results {
		next, err := cg.schema.Apply(sess.cur, r.update)
		if err != nil {
			return &NodeError{NodeID: r.id, Op: "merge", Err: err}
		}
		sess.cur = next
	}

	for _, r := range results {
		sess.completed = append(sess.completed, r.id)
		sess.passCompleted = append(sess.passCompleted, r.id)
		sess.passDone[r.id] = true
	}

	if err := cg.advanceFrontier(cfg, sess, results, logger); err != nil {
		return err
	}

	return cg.saveSnapshot(ec, cfg, sess, wave, logger)
}

// advanceFrontier resolves decision routes (ceiling included) and computes
// the ready set for the next wave.
func (cg *CompiledGraph) advanceFrontier(cfg *runConfig, sess *session, results []nodeResult, logger *slog.Logger) error {
	// The ceiling is read from merged state, so a decision that just bumped
	// the counter is itself subject to forcing.
	forced := cfg.maxPasses > 0 && sess.cur.Int(cfg.loopField) >= cfg.maxPasses

	nextSet := make(map[string]bool)
	var backTargets []string
	reachedEnd := false

	for _, r := range results {
		if r.decision {
			label := r.label
			if forced {
				terminal, ok := cg.terminalLabel(r.id)
				if !ok {
					return fmt.Errorf("%w: decision %s", ErrNoTerminalLabel, r.id)
				}
				if terminal != label {
					sess.ceilingForced = true
					observability.LogCeilingForced(logger, r.id, terminal, sess.cur.Int(cfg.loopField))
				}
				label = terminal
			}
			target, ok := cg.routeTarget(r.id, label)
			if !ok {
				return &LabelError{NodeID: r.id, Label: label, Table: cg.Labels(r.id)}
			}
			switch {
			case target == END:
				reachedEnd = true
			case sess.passDone[target]:
				// Routing back to a node completed this pass starts a new one.
				backTargets = append(backTargets, target)
			default:
				nextSet[target] = true
			}
			continue
		}

		for _, to := range cg.edges[r.id] {
			if to == END {
				reachedEnd = true
				continue
			}
			if sess.passDone[to] {
				continue
			}
			if cg.fanInSatisfied(to, sess.passDone) {
				nextSet[to] = true
			}
		}
	}

	if reachedEnd {
		sess.finished = true
		sess.frontier = nil
		return nil
	}

	if len(backTargets) > 0 {
		sess.pass++
		sess.passDone = make(map[string]bool)
		sess.passCompleted = nil
		for id := range nextSet {
			backTargets = append(backTargets, id)
		}
		sess.frontier = dedupe(backTargets)
		cg.sortByOrder(sess.frontier)
		return nil
	}

	frontier := make([]string, 0, len(nextSet))
	for id := range nextSet {
		frontier = append(frontier, id)
	}
	cg.sortByOrder(frontier)
	sess.frontier = frontier
	return nil
}

// fanInSatisfied reports whether every unconditional predecessor of id has
// completed in the current pass.
func (cg *CompiledGraph) fanInSatisfied(id string, passDone map[string]bool) bool {
	for _, pred := range cg.predecessors[id] {
		if !passDone[pred] {
			return false
		}
	}
	return true
}

// saveSnapshot persists the post-wave state. Failures warn and continue
// unless fail-fast checkpointing was requested.
func (cg *CompiledGraph) saveSnapshot(ec *executionContext, cfg *runConfig, sess *session, wave int, logger *slog.Logger) error {
	if cfg.store == nil {
		return nil
	}

	stateJSON, err := json.Marshal(sess.cur)
	if err != nil {
		cerr := &CheckpointError{SessionID: ec.sessionID, Op: "marshal", Err: err}
		if cfg.checkpointFail {
			return cerr
		}
		observability.LogCheckpointError(logger, ec.sessionID, "marshal", err)
		return nil
	}

	snap := checkpoint.New(ec.sessionID, stateJSON, sess.pass, sess.completed, sess.passCompleted, sess.frontier)
	data, err := snap.Marshal()
	if err == nil {
		err = cfg.store.Save(ec.sessionID, data)
	}
	if err != nil {
		cerr := &CheckpointError{SessionID: ec.sessionID, Op: "save", Err: err}
		if cfg.checkpointFail {
			return cerr
		}
		observability.LogCheckpointError(logger, ec.sessionID, "save", err)
		return nil
	}

	observability.LogCheckpoint(logger, ec.sessionID, wave, len(data))
	cfg.metrics.RecordCheckpoint(ec.Context, ec.sessionID, int64(len(data)))
	return nil
}

// asExecutionContext adapts any Context implementation to the internal one.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context:   ctx,
		logger:    ctx.Logger(),
		sessionID: ctx.SessionID(),
		attempt:   1,
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func lastOf(ids []string) string {
	if len(ids) == 0 {
		return "entry"
	}
	return ids[len(ids)-1]
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
