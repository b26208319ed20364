// Package metrics exposes login flow counters and provider latency to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the login flow and middleware report to.
type Recorder interface {
	RecordLogin(provider, action string)
	RecordCallback(provider, outcome string)
	RecordProviderCall(provider, op string, d time.Duration, err error)
	RecordRateLimited(route string)
}

type Collector struct {
	logins          *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_login_redirects_total",
			Help: "Login redirects issued to a provider.",
		}, []string{"provider", "action"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_callbacks_total",
			Help: "Provider callbacks by outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "social_login_provider_request_seconds",
			Help:    "Latency of token exchange and profile requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_provider_errors_total",
			Help: "Failed token exchange and profile requests.",
		}, []string{"provider", "op"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.logins,
		c.callbacks,
		c.providerLatency,
		c.providerErrors,
		c.rateLimited,
	)

	return c
}

func (c *Collector) RecordLogin(provider, action string) {
	c.logins.WithLabelValues(provider, action).Inc()
}

func (c *Collector) RecordCallback(provider, outcome string) {
	c.callbacks.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordProviderCall(provider, op string, d time.Duration, err error) {
	c.providerLatency.WithLabelValues(provider, op).Observe(d.Seconds())
	if err != nil {
		c.providerErrors.WithLabelValues(provider, op).Inc()
	}
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the Prometheus exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string, string)                              {}
func (Nop) RecordCallback(string, string)                           {}
func (Nop) RecordProviderCall(string, string, time.Duration, error) {}
func (Nop) RecordRateLimited(string)                                {}
