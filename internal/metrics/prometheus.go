package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the meetResume server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsFinalized *prometheus.CounterVec
	SessionsExpired   prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Chunk metrics
	ChunksReceived  prometheus.Counter
	ChunksRejected  *prometheus.CounterVec
	ChunkSize       prometheus.Histogram
	ReleaseFailures prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// Summarization metrics
	SummarizationSuccesses prometheus.Counter
	SummarizationFallbacks prometheus.Counter
	SummarizationDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "meetresume_active_sessions",
			Help: "Current number of sessions held by the registry",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetresume_sessions_finalized_total",
			Help: "Total number of sessions finalized, by outcome",
		}, []string{"outcome"}),
		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_sessions_expired_total",
			Help: "Total number of idle sessions evicted by the reaper",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetresume_session_duration_seconds",
			Help:    "Lifetime of sessions from creation to removal",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12), // 5s to ~3 hours
		}),

		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_chunks_received_total",
			Help: "Total number of chunks accepted for transcription",
		}),
		ChunksRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetresume_chunks_rejected_total",
			Help: "Total number of chunks rejected, by reason",
		}, []string{"reason"}),
		ChunkSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetresume_chunk_size_bytes",
			Help:    "Size of uploaded audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 15), // 1KB to ~16MB
		}),
		ReleaseFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_temp_release_failures_total",
			Help: "Total number of temporary resources that could not be released",
		}),

		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_transcription_requests_total",
			Help: "Total number of chunk transcriptions started",
		}),
		TranscriptionSuccesses: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_transcription_successes_total",
			Help: "Total number of successful chunk transcriptions",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_transcription_failures_total",
			Help: "Total number of chunk transcriptions that failed after retries",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetresume_transcription_duration_seconds",
			Help:    "Duration of chunk transcriptions including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),
		TranscriptionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_transcription_retries_total",
			Help: "Total number of transcription retries",
		}),

		SummarizationSuccesses: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_summarization_successes_total",
			Help: "Total number of successful summaries",
		}),
		SummarizationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "meetresume_summarization_fallbacks_total",
			Help: "Total number of degraded fallback analyses returned",
		}),
		SummarizationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetresume_summarization_duration_seconds",
			Help:    "Duration of summarization including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetresume_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetresume_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetresume_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// SetActiveSessions sets the current number of sessions
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordSessionFinalized records a finalized session and its lifetime
func (m *Metrics) RecordSessionFinalized(degraded bool, durationSeconds float64) {
	if m == nil {
		return
	}
	outcome := "summarized"
	if degraded {
		outcome = "degraded"
	}
	m.SessionsFinalized.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionExpired records a session evicted by the reaper
func (m *Metrics) RecordSessionExpired(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunkReceived records an accepted chunk
func (m *Metrics) RecordChunkReceived(sizeBytes int) {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordChunkRejected records a rejected chunk
func (m *Metrics) RecordChunkRejected(reason string) {
	if m == nil {
		return
	}
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

// RecordReleaseFailure increments the release failure counter
func (m *Metrics) RecordReleaseFailure() {
	if m == nil {
		return
	}
	m.ReleaseFailures.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	if m == nil {
		return
	}
	m.TranscriptionRetries.Inc()
}

// RecordSummarization records a summarization outcome
func (m *Metrics) RecordSummarization(fallback bool, durationSeconds float64) {
	if m == nil {
		return
	}
	if fallback {
		m.SummarizationFallbacks.Inc()
	} else {
		m.SummarizationSuccesses.Inc()
	}
	m.SummarizationDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
