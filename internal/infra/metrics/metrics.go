// Package metrics exposes onboarding counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onboarding"

// Metrics holds every counter the onboarding flows record.
type Metrics struct {
	registry *prometheus.Registry

	merchantsProvisioned prometheus.Counter
	provisioningFailures *prometheus.CounterVec
	setupCompleted       prometheus.Counter
	setupTokenRejections *prometheus.CounterVec
	welcomeDispatch      *prometheus.CounterVec
	verificationChanges  *prometheus.CounterVec
	documentReviews      *prometheus.CounterVec
	bulkOutcomes         *prometheus.CounterVec
	setupTokensPurged    prometheus.Counter
	httpRequests         *prometheus.HistogramVec
	welcomeMail          *prometheus.CounterVec
}

// New registers the onboarding collectors plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		merchantsProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merchants_provisioned_total",
			Help:      "Merchant accounts committed by provisioning.",
		}),
		provisioningFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_failures_total",
			Help:      "Provisioning attempts that did not commit, by error code.",
		}, []string{"code"}),
		setupCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_completed_total",
			Help:      "Setup tokens redeemed into a merchant password.",
		}),
		setupTokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_token_rejections_total",
			Help:      "Setup token checks that failed, by error code.",
		}, []string{"code"}),
		welcomeDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "welcome_dispatch_total",
			Help:      "Welcome event dispatches, by result.",
		}, []string{"result"}),
		verificationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_transitions_total",
			Help:      "Committed verification status changes.",
		}, []string{"from", "to"}),
		documentReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_reviews_total",
			Help:      "Document review decisions, by status.",
		}, []string{"status"}),
		bulkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_action_outcomes_total",
			Help:      "Per-merchant bulk action outcomes.",
		}, []string{"action", "outcome"}),
		setupTokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_tokens_purged_total",
			Help:      "Stale setup tokens removed by the purge job.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency, by method, route template and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		welcomeMail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "welcome_mail_total",
			Help:      "Welcome events handled by the mail worker, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.merchantsProvisioned,
		m.provisioningFailures,
		m.setupCompleted,
		m.setupTokenRejections,
		m.welcomeDispatch,
		m.verificationChanges,
		m.documentReviews,
		m.bulkOutcomes,
		m.setupTokensPurged,
		m.httpRequests,
		m.welcomeMail,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MerchantProvisioned() { m.merchantsProvisioned.Inc() }

func (m *Metrics) ProvisioningFailed(code string) { m.provisioningFailures.WithLabelValues(code).Inc() }

func (m *Metrics) SetupCompleted() { m.setupCompleted.Inc() }

func (m *Metrics) SetupTokenRejected(code string) { m.setupTokenRejections.WithLabelValues(code).Inc() }

func (m *Metrics) WelcomeDispatched(result string) { m.welcomeDispatch.WithLabelValues(result).Inc() }

func (m *Metrics) VerificationChanged(from, to string) {
	m.verificationChanges.WithLabelValues(from, to).Inc()
}

func (m *Metrics) DocumentReviewed(status string) { m.documentReviews.WithLabelValues(status).Inc() }

func (m *Metrics) BulkOutcome(action, outcome string) {
	m.bulkOutcomes.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) SetupTokensPurged(n int64) { m.setupTokensPurged.Add(float64(n)) }

func (m *Metrics) WelcomeMailHandled(outcome string) { m.welcomeMail.WithLabelValues(outcome).Inc() }

// ObserveHTTP records one API request. route must be the matched template, never the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
