package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parcelrate"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	QuotesTotal            *prometheus.CounterVec
	QuoteErrorsTotal       *prometheus.CounterVec
	ShipmentsRecalculated  *prometheus.CounterVec
	CurrencyConversions    *prometheus.CounterVec
	NotificationsPublished *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	m.QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Rate quotes served, by outcome",
	}, []string{"outcome"})

	m.QuoteErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_errors_total",
		Help:      "Calculation failures, by error kind",
	}, []string{"kind"})

	m.ShipmentsRecalculated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipments_recalculated_total",
		Help:      "Shipment cost recalculations, by trigger",
	}, []string{"trigger"})

	m.CurrencyConversions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "currency_conversions_total",
		Help:      "Currency conversions, by outcome",
	}, []string{"outcome"})

	m.NotificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Shipment notifications, by event type and status",
	}, []string{"event_type", "status"})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotesTotal,
		m.QuoteErrorsTotal,
		m.ShipmentsRecalculated,
		m.CurrencyConversions,
		m.NotificationsPublished,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordQuote counts a quote; kinds lists the error kinds it failed with.
func (m *Metrics) RecordQuote(kinds ...string) {
	if len(kinds) == 0 {
		m.QuotesTotal.WithLabelValues("ok").Inc()
		return
	}
	m.QuotesTotal.WithLabelValues("error").Inc()
	for _, k := range kinds {
		m.QuoteErrorsTotal.WithLabelValues(k).Inc()
	}
}

// RecordRecalculation counts a shipment recalculation.
func (m *Metrics) RecordRecalculation(trigger string) {
	m.ShipmentsRecalculated.WithLabelValues(trigger).Inc()
}

// RecordConversion counts a currency conversion.
func (m *Metrics) RecordConversion(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.CurrencyConversions.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a published or failed notification.
func (m *Metrics) RecordNotification(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.NotificationsPublished.WithLabelValues(eventType, status).Inc()
}
