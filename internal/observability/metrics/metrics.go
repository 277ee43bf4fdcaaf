package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for chat turns and sessions.
type ChatMetrics struct {
	turnsTotal      *prometheus.CounterVec
	fragmentsTotal  prometheus.Counter
	turnLatency     *prometheus.HistogramVec
	estimatedTokens prometheus.Histogram
	activeSessions  prometheus.Gauge
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatassistant",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Chat turns by outcome",
		}, []string{"outcome"}),
		fragmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatassistant",
			Subsystem: "conversation",
			Name:      "stream_fragments_total",
			Help:      "Streamed response fragments delivered to sessions",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatassistant",
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "Time from submission to the end of the response stream",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
		estimatedTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatassistant",
			Subsystem: "conversation",
			Name:      "estimated_tokens",
			Help:      "Estimated transcript tokens after each turn",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatassistant",
			Subsystem: "webchat",
			Name:      "active_sessions",
			Help:      "Open chat sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.fragmentsTotal, m.turnLatency, m.estimatedTokens, m.activeSessions)
	return m
}

// ObserveTurn counts a turn; rejected submissions carry no latency.
func (m *ChatMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.turnLatency.WithLabelValues(outcome).Observe(seconds)
	}
}

func (m *ChatMetrics) ObserveFragment() {
	if m == nil {
		return
	}
	m.fragmentsTotal.Inc()
}

func (m *ChatMetrics) ObserveEstimatedTokens(tokens int) {
	if m == nil {
		return
	}
	m.estimatedTokens.Observe(float64(tokens))
}

func (m *ChatMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *ChatMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
