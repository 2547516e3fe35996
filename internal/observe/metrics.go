// Package observe provides application-wide observability primitives for the
// translator: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all translator metrics.
const meterName = "github.com/jcoronado1982/real-time-translator"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TranslateDuration tracks machine translation latency.
	TranslateDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback latency.
	TTSDuration metric.Float64Histogram

	// UtteranceDuration tracks the end-to-end processing time of one
	// segment, from hand-off to the processor until the outcome is known.
	UtteranceDuration metric.Float64Histogram

	// SegmentAudio tracks the audio length of emitted segments.
	SegmentAudio metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Utterances counts processed segments. Use with attribute:
	//   attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// Segments counts segments emitted by the segmenter. Use with attribute:
	//   attribute.String("reason", ...)
	Segments metric.Int64Counter

	// FramesDropped counts frames rejected by a full ingestion queue.
	FramesDropped metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// VADErrors counts speech detector failures that were treated as silence.
	VADErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// CaptionClients tracks connected live caption subscribers.
	CaptionClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// audioBuckets covers utterance lengths from a short word to a long sentence.
var audioBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("translator.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("translator.translate.duration",
		metric.WithDescription("Latency of machine translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("translator.tts.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("translator.utterance.duration",
		metric.WithDescription("End-to-end processing time of one segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentAudio, err = m.Float64Histogram("translator.segment.audio",
		metric.WithDescription("Audio length of emitted speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(audioBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("translator.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("translator.utterances",
		metric.WithDescription("Total processed segments by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("translator.segments",
		metric.WithDescription("Total segments emitted by the segmenter by reason."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("translator.frames.dropped",
		metric.WithDescription("Frames dropped because the ingestion queue was full."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("translator.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.VADErrors, err = m.Int64Counter("translator.vad.errors",
		metric.WithDescription("Speech detector failures treated as silence."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("translator.active_sessions",
		metric.WithDescription("Number of running capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.CaptionClients, err = m.Int64UpDownCounter("translator.caption_clients",
		metric.WithDescription("Number of connected live caption subscribers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("translator.http.request.duration",
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordUtterance counts one processed segment and its end-to-end latency.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Utterances.Add(ctx, 1, attrs)
	m.UtteranceDuration.Record(ctx, seconds, attrs)
}

// RecordSegment counts one emitted segment and its audio length. reason is
// "silence", "max_length" or "flush".
func (m *Metrics) RecordSegment(ctx context.Context, reason string, audioSeconds float64) {
	m.Segments.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.SegmentAudio.Record(ctx, audioSeconds)
}

// RecordVADError counts a speech detector failure.
func (m *Metrics) RecordVADError(ctx context.Context) {
	m.VADErrors.Add(ctx, 1)
}

// RecordDroppedFrames adds n to the dropped frame counter. Zero is ignored.
func (m *Metrics) RecordDroppedFrames(ctx context.Context, n uint64) {
	if n == 0 {
		return
	}
	m.FramesDropped.Add(ctx, int64(n))
}
