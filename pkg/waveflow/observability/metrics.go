package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records waveflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordWave records a merged wave and its size.
	RecordWave(ctx context.Context, wave, nodes int, duration time.Duration)

	// RecordSession records a session run completion.
	RecordSession(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a snapshot save.
	RecordCheckpoint(ctx context.Context, sessionID string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	waves          metric.Int64Counter
	waveLatency    metric.Float64Histogram
	sessions       metric.Int64Counter
	sessionLatency metric.Float64Histogram
	checkpointSize metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("waveflow")

	nodeExecutions, err := meter.Int64Counter("waveflow.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("waveflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("waveflow.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	waves, err := meter.Int64Counter("waveflow.wave.executions",
		metric.WithDescription("Number of merged waves"),
	)
	if err != nil {
		return nil, err
	}

	waveLatency, err := meter.Float64Histogram("waveflow.wave.latency_ms",
		metric.WithDescription("Wave latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64Counter("waveflow.session.runs",
		metric.WithDescription("Number of session runs"),
	)
	if err != nil {
		return nil, err
	}

	sessionLatency, err := meter.Float64Histogram("waveflow.session.latency_ms",
		metric.WithDescription("Session run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("waveflow.checkpoint.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		waves:          waves,
		waveLatency:    waveLatency,
		sessions:       sessions,
		sessionLatency: sessionLatency,
		checkpointSize: checkpointSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider; configure the provider before calling. Falls back to a
// no-op recorder if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node_id", nodeID),
	}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordWave records a merged wave.
func (m *otelMetrics) RecordWave(ctx context.Context, wave, nodes int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int("nodes", nodes),
	}
	m.waves.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.waveLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordSession records a session run.
func (m *otelMetrics) RecordSession(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sessionLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCheckpoint records a snapshot save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, sessionID string, sizeBytes int64) {
	attrs := []attribute.KeyValue{
		attribute.String("session_id", sessionID),
	}
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))
}
