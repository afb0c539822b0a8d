package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQuote(t *testing.T) {
	m := New()

	m.RecordQuote()
	m.RecordQuote("ROUTE_NOT_FOUND")
	m.RecordQuote("INVALID_REFERENCE", "INVALID_REFERENCE")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuotesTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuoteErrorsTotal.WithLabelValues("INVALID_REFERENCE")))
}

func TestRecordNotification(t *testing.T) {
	m := New()

	m.RecordNotification("shipment.created", nil)
	m.RecordNotification("shipment.created", errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsPublished.WithLabelValues("shipment.created", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsPublished.WithLabelValues("shipment.created", "failure")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/shipments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/shipments/{id}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "parcelrate_http_requests_total"))
}
