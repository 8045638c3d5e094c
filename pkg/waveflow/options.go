package waveflow

import (
	"log/slog"
	"time"

	"github.com/waveflow-io/waveflow/pkg/waveflow/checkpoint"
	"github.com/waveflow-io/waveflow/pkg/waveflow/config"
	wferrors "github.com/waveflow-io/waveflow/pkg/waveflow/errors"
	"github.com/waveflow-io/waveflow/pkg/waveflow/observability"
)

// runConfig holds configuration for session execution.
type runConfig struct {
	maxWaves       int
	maxConcurrency int
	nodeTimeout    time.Duration

	retry wferrors.RetryConfig

	loopField string
	maxPasses int

	store             checkpoint.Store
	checkpointFail    bool
	discardCheckpoint bool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	tracing bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxWaves:  1000,
		retry:     wferrors.NoRetry,
		loopField: "iteration",
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// RunOption configures session execution behavior.
type RunOption func(*runConfig)

// WithMaxWaves sets the maximum number of scheduling waves.
// Default: 1000
//
// This is a hard backstop against runaway graphs. If a session exceeds
// this limit, Run returns ErrMaxWaves even when a loop ceiling is set.
func WithMaxWaves(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxWaves = n
		}
	}
}

// WithMaxConcurrency bounds how many nodes of a wave run at once.
// Zero or negative means unbounded (the whole wave runs in parallel).
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithNodeTimeout sets a per-node execution deadline. A node exceeding
// the deadline fails with a NodeError wrapping context.DeadlineExceeded.
// Zero means no per-node timeout.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.nodeTimeout = d
		}
	}
}

// WithRetryPolicy enables transient-error retry for node execution.
// Permanent errors fail immediately regardless of the policy.
func WithRetryPolicy(cfg wferrors.RetryConfig) RunOption {
	return func(c *runConfig) {
		c.retry = cfg
	}
}

// WithLoopCeiling forces decision nodes onto their terminal route once
// the named state field reaches max. The field is read after each wave
// merges; nodes are responsible for incrementing it.
//
// A ceiling of zero disables forcing.
func WithLoopCeiling(field string, max int) RunOption {
	return func(c *runConfig) {
		if field != "" {
			c.loopField = field
		}
		c.maxPasses = max
	}
}

// WithCheckpointer enables session snapshots. A snapshot is written
// after every wave; on resume with the same session id, completed work
// is not re-run.
func WithCheckpointer(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithCheckpointFailFast aborts the session when a snapshot write
// fails. By default a failed write is logged and the session continues.
func WithCheckpointFailFast() RunOption {
	return func(c *runConfig) {
		c.checkpointFail = true
	}
}

// WithFreshSession ignores any existing snapshot for the session id and
// starts over from the initial state.
func WithFreshSession() RunOption {
	return func(c *runConfig) {
		c.discardCheckpoint = true
	}
}

// WithObservabilityLogger overrides the logger carried by the Context
// for this run only.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the session, each wave,
// and each node execution.
func WithTracing() RunOption {
	return func(c *runConfig) {
		c.tracing = true
		c.spans = observability.NewSpanManager()
	}
}

// WithSpanManager sets a custom span manager and enables tracing.
func WithSpanManager(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.tracing = true
			c.spans = sm
		}
	}
}

// FromSettings applies file-loaded settings. Options placed after
// FromSettings override individual fields.
func FromSettings(s config.Settings) RunOption {
	return func(c *runConfig) {
		if s.MaxWaves > 0 {
			c.maxWaves = s.MaxWaves
		}
		if s.MaxConcurrency > 0 {
			c.maxConcurrency = s.MaxConcurrency
		}
		if s.NodeTimeout > 0 {
			c.nodeTimeout = s.NodeTimeout.Std()
		}
		if s.Retry.MaxAttempts > 0 {
			c.retry = wferrors.RetryConfig{
				MaxAttempts:    s.Retry.MaxAttempts,
				InitialBackoff: s.Retry.InitialDelay.Std(),
				MaxBackoff:     s.Retry.MaxDelay.Std(),
				BackoffFactor:  s.Retry.Multiplier,
				Jitter:         wferrors.DefaultRetry.Jitter,
			}
		}
		if s.Loop.Field != "" {
			c.loopField = s.Loop.Field
		}
		c.maxPasses = s.Loop.MaxPasses
		c.checkpointFail = s.Checkpoint.FailFast
	}
}
