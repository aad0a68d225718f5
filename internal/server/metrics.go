package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry         *prometheus.Registry
	donationsTotal   *prometheus.CounterVec
	sessionsTotal    *prometheus.CounterVec
	settlementsTotal *prometheus.CounterVec
	replaysTotal     prometheus.Counter
}

func newMetricsRegistry() *metricsRegistry {
	donations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "umanity_donations_total",
		Help: "Donation submissions by flow and outcome",
	}, []string{"flow", "status"})

	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "umanity_sessions_total",
		Help: "Wallet session connect attempts by result",
	}, []string{"result"})

	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "umanity_settlements_total",
		Help: "Background settlement watches by terminal status",
	}, []string{"status"})

	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "umanity_idempotent_replays_total",
		Help: "Requests served from the idempotency cache",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(donations, sessions, settlements, replays)

	return &metricsRegistry{
		registry:         r,
		donationsTotal:   donations,
		sessionsTotal:    sessions,
		settlementsTotal: settlements,
		replaysTotal:     replays,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incDonation(flow, status string) {
	m.donationsTotal.WithLabelValues(flow, status).Inc()
}

func (m *metricsRegistry) incSession(result string) {
	m.sessionsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) incSettlement(status string) {
	m.settlementsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incReplay() {
	m.replaysTotal.Inc()
}
