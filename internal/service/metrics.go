// Package service contains application services composing the trust core.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Grant Gate.
// Pass to components that need to record metrics.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	CredentialsIssued prometheus.Counter
	RateLimitDenials  prometheus.Counter
	AuditDropsTotal   prometheus.Counter
	LimiterFallback   prometheus.Gauge
	LiveCredentials   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grantgate",
				Name:      "decisions_total",
				Help:      "Total access decisions made",
			},
			[]string{"result"}, // result=allow/deny
		),
		CredentialsIssued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "grantgate",
				Name:      "credentials_issued_total",
				Help:      "Total credentials issued",
			},
		),
		RateLimitDenials: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "grantgate",
				Name:      "rate_limit_denials_total",
				Help:      "Total requests rejected by the rate limiter",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "grantgate",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to store errors",
			},
		),
		LimiterFallback: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "grantgate",
				Name:      "rate_limiter_fallback",
				Help:      "1 when the rate limiter runs on local fallback storage",
			},
		),
		LiveCredentials: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "grantgate",
				Name:      "live_credentials",
				Help:      "Number of live credentials held by the vendor",
			},
		),
	}
}
