// Package observe provides the observability primitives shared by the
// questpack codec, the watcher and the CLI: OpenTelemetry metrics,
// distributed tracing, trace-enriched structured logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that a watching process
// can be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all questpack metrics.
const meterName = "github.com/MrWong99/questpack"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LoadDuration tracks how long decoding one package takes. Use with
	// attribute.String("source", "zip"|"dir").
	LoadDuration metric.Float64Histogram

	// SaveDuration tracks how long encoding one package takes.
	SaveDuration metric.Float64Histogram

	// --- Counters ---

	// EntitiesLoaded counts entities created by successful loads. Use with
	// attribute.String("kind", ...).
	EntitiesLoaded metric.Int64Counter

	// LoadErrors counts failed loads. Use with attribute.String("reason", ...).
	LoadErrors metric.Int64Counter

	// LintFindings counts lint findings. Use with
	// attribute.String("severity", ...).
	LintFindings metric.Int64Counter

	// Reloads counts watcher reloads. Use with attribute.String("status", ...).
	Reloads metric.Int64Counter

	// --- Gauges ---

	// PackagesLoaded tracks the number of packages currently held by
	// long-running processes.
	PackagesLoaded metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks request handling time of the watch
	// listener, by route pattern and status code.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for codec
// runs, which range from sub-millisecond for tiny packages to seconds for
// archives with hundreds of conversations.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LoadDuration, err = m.Float64Histogram("questpack.load.duration",
		metric.WithDescription("Latency of loading one quest package."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SaveDuration, err = m.Float64Histogram("questpack.save.duration",
		metric.WithDescription("Latency of saving one quest package."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EntitiesLoaded, err = m.Int64Counter("questpack.entities.loaded",
		metric.WithDescription("Total entities created by loads, by kind."),
	); err != nil {
		return nil, err
	}
	if met.LoadErrors, err = m.Int64Counter("questpack.load.errors",
		metric.WithDescription("Total failed package loads by reason."),
	); err != nil {
		return nil, err
	}
	if met.LintFindings, err = m.Int64Counter("questpack.lint.findings",
		metric.WithDescription("Total lint findings by severity."),
	); err != nil {
		return nil, err
	}
	if met.Reloads, err = m.Int64Counter("questpack.watch.reloads",
		metric.WithDescription("Total watcher reloads by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PackagesLoaded, err = m.Int64UpDownCounter("questpack.packages.loaded",
		metric.WithDescription("Number of packages held by the running process."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("questpack.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLoad records a successful load: its duration and how many entities of
// each kind it produced. Kinds with a zero count are not recorded.
func (m *Metrics) RecordLoad(ctx context.Context, source string, d time.Duration, counts map[string]int) {
	m.LoadDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("source", source)),
	)
	for kind, n := range counts {
		if n == 0 {
			continue
		}
		m.EntitiesLoaded.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("kind", kind)),
		)
	}
}

// RecordLoadError records a failed load.
func (m *Metrics) RecordLoadError(ctx context.Context, reason string) {
	m.LoadErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordSave records the duration of a successful save.
func (m *Metrics) RecordSave(ctx context.Context, source string, d time.Duration) {
	m.SaveDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordLintFinding records one lint finding.
func (m *Metrics) RecordLintFinding(ctx context.Context, severity string) {
	m.LintFindings.Add(ctx, 1,
		metric.WithAttributes(attribute.String("severity", severity)),
	)
}

// RecordReload records one watcher reload attempt.
func (m *Metrics) RecordReload(ctx context.Context, status string) {
	m.Reloads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
