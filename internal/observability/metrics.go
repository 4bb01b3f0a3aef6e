package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_relay_active_connections",
		Help: "Number of active relay connections",
	})

	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_relay_connections_total",
		Help: "Total number of relay connections accepted",
	})

	// Speak request metrics
	speakRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_speak_requests_total",
		Help: "Total number of speak requests by outcome",
	}, []string{"outcome"}) // outcome: "ok", "fallback_ok", "exhausted", "canceled", "rejected"

	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_audio_frames_total",
		Help: "Total audio frames relayed to clients",
	}, []string{"provider"})

	synthesisLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_relay_synthesis_duration_seconds",
		Help:    "Wall time of one full synthesis stream",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	// Fallback metrics
	providerSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_provider_switches_total",
		Help: "Mid-stream synthesis provider switches",
	}, []string{"from", "to"})

	providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_provider_errors_total",
		Help: "Provider failures by provider and error class",
	}, []string{"provider", "class"})

	// Generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_generation_requests_total",
		Help: "Total generation requests by provider and status",
	}, []string{"provider", "status"})

	generationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_relay_generation_duration_seconds",
		Help:    "Generation call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"provider"})
)

// RecordConnectionOpen records a newly accepted relay connection.
func RecordConnectionOpen() {
	totalConnections.Inc()
	activeConnections.Inc()
}

// RecordConnectionClose records a relay connection going away.
func RecordConnectionClose() {
	activeConnections.Dec()
}

// RecordSpeak records the terminal outcome of one speak request.
func RecordSpeak(outcome string) {
	speakRequests.WithLabelValues(outcome).Inc()
}

// RecordFrame records one audio frame relayed from the named provider.
func RecordFrame(provider string) {
	framesSent.WithLabelValues(provider).Inc()
}

// ObserveSynthesis records how long a full synthesis stream took.
func ObserveSynthesis(provider string, elapsed time.Duration) {
	synthesisLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordProviderSwitch records a mid-stream failover from one provider to another.
func RecordProviderSwitch(from, to string) {
	providerSwitches.WithLabelValues(from, to).Inc()
}

// RecordProviderError records a provider failure by error class.
func RecordProviderError(provider, class string) {
	providerErrors.WithLabelValues(provider, class).Inc()
}

// RecordGeneration records a generation call and its latency.
func RecordGeneration(provider, status string, elapsed time.Duration) {
	generationRequests.WithLabelValues(provider, status).Inc()
	generationLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}
