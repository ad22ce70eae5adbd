// Package metrics exposes Prometheus metrics for council sessions.
//
// All Record methods are safe to call on a nil *Metrics, so components can
// take an optional metrics dependency without guarding every call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the council engine.
type Metrics struct {
	registry *prometheus.Registry

	// Synthesis metrics
	SynthesisAttempts *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	SynthesisBytes    prometheus.Counter

	// Dialogue metrics
	ScriptGenerations *prometheus.CounterVec
	LiveResponses     *prometheus.CounterVec

	// Session metrics
	SessionsStarted *prometheus.CounterVec
	RoundsReady     prometheus.Counter

	// Persistence and transcription
	HistorySaves   *prometheus.CounterVec
	Transcriptions *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "council"
	}

	registry := prometheus.NewRegistry()

	synthesisAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_attempts_total",
			Help:      "Speech synthesis attempts by outcome",
		},
		[]string{"outcome"},
	)

	synthesisDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of a single synthesis attempt",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	synthesisBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_audio_bytes_total",
			Help:      "Total synthesized audio bytes",
		},
	)

	scriptGenerations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_generations_total",
			Help:      "Batch script generations by source (model or fallback)",
		},
		[]string{"source"},
	)

	liveResponses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_responses_total",
			Help:      "Live-mode AI turns by outcome",
		},
		[]string{"outcome"},
	)

	sessionsStarted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions initialized by kind and mode",
		},
		[]string{"kind", "mode"},
	)

	roundsReady := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ready_total",
			Help:      "Rounds whose audio pre-generation pass completed",
		},
	)

	historySaves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_saves_total",
			Help:      "History writes by outcome",
		},
		[]string{"outcome"},
	)

	transcriptions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription requests by outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		synthesisAttempts,
		synthesisDuration,
		synthesisBytes,
		scriptGenerations,
		liveResponses,
		sessionsStarted,
		roundsReady,
		historySaves,
		transcriptions,
	)

	return &Metrics{
		registry:          registry,
		SynthesisAttempts: synthesisAttempts,
		SynthesisDuration: synthesisDuration,
		SynthesisBytes:    synthesisBytes,
		ScriptGenerations: scriptGenerations,
		LiveResponses:     liveResponses,
		SessionsStarted:   sessionsStarted,
		RoundsReady:       roundsReady,
		HistorySaves:      historySaves,
		Transcriptions:    transcriptions,
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSynthesisAttempt records one synthesis attempt.
func (m *Metrics) RecordSynthesisAttempt(outcome string, duration time.Duration, audioBytes int) {
	if m == nil {
		return
	}
	m.SynthesisAttempts.WithLabelValues(outcome).Inc()
	m.SynthesisDuration.Observe(duration.Seconds())
	if audioBytes > 0 {
		m.SynthesisBytes.Add(float64(audioBytes))
	}
}

// RecordScriptGeneration records where a batch script came from.
func (m *Metrics) RecordScriptGeneration(source string) {
	if m == nil {
		return
	}
	m.ScriptGenerations.WithLabelValues(source).Inc()
}

// RecordLiveResponse records the outcome of a live AI turn.
func (m *Metrics) RecordLiveResponse(outcome string) {
	if m == nil {
		return
	}
	m.LiveResponses.WithLabelValues(outcome).Inc()
}

// RecordSessionStart records a session initialization.
func (m *Metrics) RecordSessionStart(kind, mode string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(kind, mode).Inc()
}

// RecordRoundReady records a completed round pre-generation pass.
func (m *Metrics) RecordRoundReady() {
	if m == nil {
		return
	}
	m.RoundsReady.Inc()
}

// RecordHistorySave records a history write.
func (m *Metrics) RecordHistorySave(outcome string) {
	if m == nil {
		return
	}
	m.HistorySaves.WithLabelValues(outcome).Inc()
}

// RecordTranscription records a transcription request.
func (m *Metrics) RecordTranscription(outcome string) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
}
