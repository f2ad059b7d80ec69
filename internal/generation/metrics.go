package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess         = "success"
	outcomeInvalidInput    = "invalid_input"
	outcomeBackendError    = "backend_error"
	outcomeMalformedOutput = "malformed_output"
)

// Metrics records generation call outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates generation metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analystai",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Structured generation calls by prompt and outcome.",
		}, []string{"prompt", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "analystai",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Latency of backend generation calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"prompt"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(prompt, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(prompt, outcome).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(prompt).Observe(elapsed.Seconds())
	}
}
