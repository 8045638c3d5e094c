package waveflow

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	wferrors "github.com/waveflow-io/waveflow/pkg/waveflow/errors"
	"github.com/waveflow-io/waveflow/pkg/waveflow/observability"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// nodeOutcome is what a single node invocation produced.
type nodeOutcome struct {
	update state.Update
	label  string
}

// nodeResult is the recorded outcome of one node within a wave, including
// failure. Results are positioned like the frontier so the caller merges in
// declaration order regardless of completion timing.
type nodeResult struct {
	id       string
	decision bool
	update   state.Update
	label    string
	attempts int
	err      error
}

// runWave executes every frontier node concurrently against a shared
// read-only snapshot of the pre-wave state. Each node gets its own clone, so
// nothing a node does to its state affects its siblings. No merging happens
// here; the wave boundary belongs to the caller.
func (cg *CompiledGraph) runWave(ec *executionContext, cfg *runConfig, wave int, frontier []string, cur state.State) []nodeResult {
	results := make([]nodeResult, len(frontier))

	var g errgroup.Group
	if cfg.maxConcurrency > 0 {
		g.SetLimit(cfg.maxConcurrency)
	}

	for i, id := range frontier {
		g.Go(func() error {
			results[i] = cg.runNode(ec, cfg, wave, id, cur.Clone())
			return nil
		})
	}
	g.Wait() // always nil; failures are carried per-result

	return results
}

// runNode executes one node with retry, per-attempt timeout, tracing, and
// metrics. The returned error is already wrapped as a NodeError or PanicError.
func (cg *CompiledGraph) runNode(ec *executionContext, cfg *runConfig, wave int, id string, snapshot state.State) nodeResult {
	decision := cg.IsDecision(id)

	attempt := 0
	res := wferrors.WithRetryContext(ec.Context, cfg.retry, func(base context.Context) (nodeOutcome, error) {
		attempt++
		nctx := ec.withNode(id, wave, attempt)

		runCtx := base
		if cfg.nodeTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(base, cfg.nodeTimeout)
			defer cancel()
		}
		spanCtx, span := cfg.spans.StartNodeSpan(runCtx, id)
		nctx.Context = spanCtx

		observability.LogNodeStart(nctx.logger, id)
		elapsed := observability.TimedOperation()

		out, err := cg.invoke(nctx, id, decision, snapshot)

		durationMs := elapsed()
		cfg.spans.EndSpanWithError(span, err)
		cfg.metrics.RecordNodeExecution(base, id, time.Duration(durationMs*float64(time.Millisecond)), err)

		if err != nil {
			observability.LogNodeError(nctx.logger, id, err)
			return nodeOutcome{}, err
		}
		observability.LogNodeComplete(nctx.logger, id, durationMs)
		return out, nil
	})

	return nodeResult{
		id:       id,
		decision: decision,
		update:   res.Value.update,
		label:    res.Value.label,
		attempts: res.Attempts,
		err:      wrapNodeErr(id, decision, res.Err),
	}
}

// invoke calls the node function, enforcing the per-attempt deadline even
// against a node that ignores its context.
func (cg *CompiledGraph) invoke(nctx *executionContext, id string, decision bool, snapshot state.State) (nodeOutcome, error) {
	if _, hasDeadline := nctx.Deadline(); !hasDeadline {
		return cg.call(nctx, id, decision, snapshot)
	}

	type reply struct {
		out nodeOutcome
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		out, err := cg.call(nctx, id, decision, snapshot)
		ch <- reply{out, err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-nctx.Done():
		return nodeOutcome{}, &NodeError{NodeID: id, Op: "timeout", Err: nctx.Err()}
	}
}

// call dispatches to the node function with panic recovery.
func (cg *CompiledGraph) call(nctx *executionContext, id string, decision bool, snapshot state.State) (out nodeOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nodeOutcome{}
			err = &PanicError{NodeID: id, Value: r, Stack: string(debug.Stack())}
		}
	}()

	if decision {
		upd, label, derr := cg.decisions[id](nctx, snapshot)
		return nodeOutcome{update: upd, label: label}, derr
	}
	upd, werr := cg.work[id](nctx, snapshot)
	return nodeOutcome{update: upd}, werr
}

// wrapNodeErr attributes an error to its node unless already attributed.
func wrapNodeErr(id string, decision bool, err error) error {
	if err == nil {
		return nil
	}
	var ne *NodeError
	var pe *PanicError
	if errors.As(err, &ne) || errors.As(err, &pe) {
		return err
	}
	op := "execute"
	if decision {
		op = "decide"
	}
	return &NodeError{NodeID: id, Op: op, Err: err}
}
