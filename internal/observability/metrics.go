package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tracking_bridge"

// Metrics holds the Prometheus collectors for the bridge on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	vendorCalls   *prometheus.CounterVec
	vendorLatency *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	proxyRequests *prometheus.CounterVec
	schemes       *prometheus.CounterVec
	auditDropped  prometheus.Counter
}

// NewMetrics registers all collectors, including the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		vendorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_calls_total",
			Help:      "Vendor API calls by operation and response status.",
		}, []string{"operation", "status"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_call_duration_seconds",
			Help:      "Vendor API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Proxied vendor requests by outcome.",
		}, []string{"outcome"}),
		schemes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_scheme_total",
			Help:      "Requests by selected authentication scheme.",
		}, []string{"scheme"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_audit_dropped_total",
			Help:      "Login audit rows dropped because the buffer was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.vendorCalls,
		m.vendorLatency,
		m.logins,
		m.proxyRequests,
		m.schemes,
		m.auditDropped,
	)
	return m
}

// ObserveVendorCall records one vendor round trip. Status 0 means the call
// failed before a response arrived.
func (m *Metrics) ObserveVendorCall(operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.vendorCalls.WithLabelValues(operation, label).Inc()
	m.vendorLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveLogin counts a login attempt outcome
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveProxy counts a proxy request outcome
func (m *Metrics) ObserveProxy(outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(outcome).Inc()
}

// ObserveScheme counts the authentication scheme selected for a request
func (m *Metrics) ObserveScheme(scheme string) {
	if m == nil {
		return
	}
	m.schemes.WithLabelValues(scheme).Inc()
}

// ObserveAuditDropped counts a dropped audit row
func (m *Metrics) ObserveAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
