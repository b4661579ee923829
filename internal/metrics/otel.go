package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	promReaderFactory = prometheusComponents
	otlpReaderFactory = buildOTLPReader
	instrumentFactory = newOtelInstruments
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	Port         string
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup configures OpenTelemetry metrics with a Prometheus exporter and optional OTLP exporter.
// It returns a Recorder, the Prometheus HTTP handler, and a shutdown function.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "game-ingest-service"
	}

	promReader, promHandler, err := promReaderFactory()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(promReader)}

	if cfg.OtlpEndpoint != "" {
		otlpReader, err := otlpReaderFactory(ctx, cfg.OtlpEndpoint, cfg.OtlpInsecure)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(otlpReader))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)

	otelInst, err := instrumentFactory(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := newRecorder(otelInst)
	shutdown := func(c context.Context) error {
		return provider.Shutdown(c)
	}

	return rec, promHandler, shutdown, nil
}

func buildOTLPReader(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
	}
	otlpExp, err := otlpmetrichttp.New(ctx, otlpOpts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(15*time.Second)), nil
}

type otelInstruments struct {
	ctx              context.Context
	meter            metric.Meter
	requests         metric.Int64Counter
	requestLatencyMs metric.Float64Histogram
	fetchAttempts    metric.Int64Counter
	fetchLatencyMs   metric.Float64Histogram
	rateLimitHits    metric.Int64Counter
	retryAfterMs     metric.Float64Histogram
	robotsDenials    metric.Int64Counter
	profileSwaps     metric.Int64Counter
	ingestNewRows    metric.Int64Counter
	ingestTotalRows  metric.Int64Counter
	tasksRemoved     metric.Int64Counter
	reconciliations  metric.Int64Counter
	inconsistencies  metric.Int64Counter
	upsertRows       metric.Int64Counter
	upsertFailures   metric.Int64Counter
	pollerCycles     metric.Int64Counter
	pollerErrors     metric.Int64Counter
	pollerLatencyMs  metric.Float64Histogram
}

func prometheusComponents() (sdkmetric.Reader, http.Handler, error) {
	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return promExp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	meter := provider.Meter("game-ingest-service")
	inst := &otelInstruments{ctx: context.Background(), meter: meter}

	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"http_requests_total", &inst.requests},
		{"fetch_attempts_total", &inst.fetchAttempts},
		{"fetch_rate_limit_hits_total", &inst.rateLimitHits},
		{"fetch_robots_denials_total", &inst.robotsDenials},
		{"fetch_profile_swaps_total", &inst.profileSwaps},
		{"ingest_new_rows_total", &inst.ingestNewRows},
		{"ingest_rows_total", &inst.ingestTotalRows},
		{"live_tasks_removed_total", &inst.tasksRemoved},
		{"reconciliations_total", &inst.reconciliations},
		{"reconcile_inconsistencies_total", &inst.inconsistencies},
		{"store_upsert_rows_total", &inst.upsertRows},
		{"store_upsert_failures_total", &inst.upsertFailures},
		{"poller_cycles_total", &inst.pollerCycles},
		{"poller_errors_total", &inst.pollerErrors},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	histograms := []struct {
		name string
		dst  *metric.Float64Histogram
	}{
		{"http_request_duration_ms", &inst.requestLatencyMs},
		{"fetch_duration_ms", &inst.fetchLatencyMs},
		{"fetch_retry_after_ms", &inst.retryAfterMs},
		{"poller_cycle_duration_ms", &inst.pollerLatencyMs},
	}
	for _, h := range histograms {
		hist, err := meter.Float64Histogram(h.name)
		if err != nil {
			return nil, err
		}
		*h.dst = hist
	}

	return inst, nil
}

func originAttr(origin string) attribute.KeyValue {
	return attribute.String(AttrOrigin, origin)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(AttrReason, reason)
}

func (o *otelInstruments) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.Int(AttrStatus, status),
	}
	o.recordCounter(o.requests, 1, attrs...)
	o.recordHistogram(o.requestLatencyMs, float64(duration.Milliseconds()), attrs...)
}

func (o *otelInstruments) recordFetchAttempt(origin, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{originAttr(origin), attribute.String(AttrOutcome, outcome)}
	o.recordCounter(o.fetchAttempts, 1, attrs...)
	o.recordHistogram(o.fetchLatencyMs, float64(duration.Milliseconds()), originAttr(origin))
}

func (o *otelInstruments) recordRateLimit(origin string, retryAfter time.Duration) {
	if o == nil {
		return
	}
	o.recordCounter(o.rateLimitHits, 1, originAttr(origin))
	if retryAfter > 0 {
		o.recordHistogram(o.retryAfterMs, float64(retryAfter.Milliseconds()), originAttr(origin))
	}
}

func (o *otelInstruments) recordIngest(source string, newRows, totalRows int) {
	if o == nil {
		return
	}
	attr := attribute.String(AttrSource, source)
	o.recordCounter(o.ingestNewRows, int64(newRows), attr)
	o.recordCounter(o.ingestTotalRows, int64(totalRows), attr)
}

func (o *otelInstruments) recordReconciliation(recommendation string, inconsistencies int) {
	if o == nil {
		return
	}
	attr := attribute.String(AttrRecommendation, recommendation)
	o.recordCounter(o.reconciliations, 1, attr)
	o.recordCounter(o.inconsistencies, int64(inconsistencies), attr)
}

func (o *otelInstruments) recordUpsert(entity string, rows int, err error) {
	if o == nil {
		return
	}
	attr := attribute.String(AttrEntity, entity)
	if err != nil {
		o.recordCounter(o.upsertFailures, 1, attr)
		return
	}
	o.recordCounter(o.upsertRows, int64(rows), attr)
}

func (o *otelInstruments) recordPoller(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.recordCounter(o.pollerCycles, 1)
	o.recordHistogram(o.pollerLatencyMs, float64(duration.Milliseconds()))
	if err != nil {
		o.recordCounter(o.pollerErrors, 1)
	}
}

func (o *otelInstruments) recordCounter(counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if o == nil || counter == nil {
		return
	}
	counter.Add(o.ctx, value, metric.WithAttributes(attrs...))
}

func (o *otelInstruments) recordHistogram(hist metric.Float64Histogram, value float64, attrs ...attribute.KeyValue) {
	if o == nil || hist == nil {
		return
	}
	hist.Record(o.ctx, value, metric.WithAttributes(attrs...))
}
