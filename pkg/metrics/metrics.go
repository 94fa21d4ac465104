// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

const namespace = "sponsorgw"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Latency buckets in seconds. Sponsored relays are dominated by provider
// round trips, so the range runs up to a minute.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60}

// Metrics groups all gateway collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.HistogramVec
	SponsorDuration  *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	SponsorFailures  *prometheus.CounterVec
	CounterReads     *prometheus.CounterVec
	SponsorsInFlight prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"}),
		SponsorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sponsor_duration_seconds",
			Help:      "End-to-end sponsorship pipeline latency.",
			Buckets:   latencyBuckets,
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sponsor_stage_duration_seconds",
			Help:      "Latency of each sponsorship pipeline stage.",
			Buckets:   latencyBuckets,
		}, []string{"stage", "outcome"}),
		SponsorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sponsor_failures_total",
			Help:      "Failed sponsorships by error code.",
		}, []string{"code"}),
		CounterReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_count_reads_total",
			Help:      "getCount() view calls by outcome.",
		}, []string{"outcome"}),
		SponsorsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sponsors_in_flight",
			Help:      "Sponsorship requests currently being processed.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.SponsorDuration,
		m.StageDuration,
		m.SponsorFailures,
		m.CounterReads,
		m.SponsorsInFlight,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCountRead records one getCount() call
func (m *Metrics) ObserveCountRead(err error) {
	m.CounterReads.WithLabelValues(outcome(err == nil)).Inc()
}

// TrackInFlight counts one sponsorship as in flight until the returned
// func is called
func (m *Metrics) TrackInFlight() func() {
	m.SponsorsInFlight.Inc()
	return m.SponsorsInFlight.Dec
}

// Attach registers hooks on s that feed the sponsorship collectors
func (m *Metrics) Attach(s *sponsor.TransactionSponsor) {
	s.OnStageComplete(func(ctx sponsor.StageContext) {
		m.StageDuration.WithLabelValues(string(ctx.Stage), outcome(ctx.Error == nil)).Observe(ctx.Duration.Seconds())
	})
	s.OnAfterSponsor(func(ctx sponsor.SponsorResultContext) error {
		m.SponsorDuration.WithLabelValues(OutcomeSuccess).Observe(ctx.Duration.Seconds())
		return nil
	})
	s.OnSponsorFailure(func(ctx sponsor.SponsorFailureContext) {
		m.SponsorDuration.WithLabelValues(OutcomeFailure).Observe(ctx.Duration.Seconds())
		code := sponsor.ErrCodeInternal
		if ctx.Error != nil {
			code = ctx.Error.Code
		}
		m.SponsorFailures.WithLabelValues(code).Inc()
	})
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
