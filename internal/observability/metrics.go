// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The shutdown function should be called on application exit for graceful cleanup.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// RunMetrics holds the instruments the runner records per workflow run.
type RunMetrics struct {
	runs            metric.Int64Counter
	runDuration     metric.Float64Histogram
	publishesNoOp   metric.Int64Counter
	dispatchesSkipd metric.Int64Counter
}

// NewRunMetrics creates the run instruments on the global meter provider.
func NewRunMetrics() (*RunMetrics, error) {
	meter := otel.Meter("leadrunner")

	runs, err := meter.Int64Counter("leadrunner_runs_total",
		metric.WithDescription("Workflow runs by trigger and terminal status"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("leadrunner_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of workflow runs"))
	if err != nil {
		return nil, err
	}

	noop, err := meter.Int64Counter("leadrunner_publish_noop_total",
		metric.WithDescription("Runs where the result file was unchanged and no commit was made"))
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter("leadrunner_dispatches_skipped_total",
		metric.WithDescription("Triggers skipped because another run held the workflow lock"))
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		runs:            runs,
		runDuration:     duration,
		publishesNoOp:   noop,
		dispatchesSkipd: skipped,
	}, nil
}

// RecordRun records one finished run.
func (m *RunMetrics) RecordRun(ctx context.Context, trigger, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordPublishNoOp records a run whose publish step was an idempotent no-op.
func (m *RunMetrics) RecordPublishNoOp(ctx context.Context) {
	m.publishesNoOp.Add(ctx, 1)
}

// RecordSkipped records a trigger skipped under the workflow lock.
func (m *RunMetrics) RecordSkipped(ctx context.Context, trigger string) {
	m.dispatchesSkipd.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
