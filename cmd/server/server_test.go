package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/events"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/metrics"
	"github.com/Simplici0/parcelrate/internal/migrations"
	"github.com/Simplici0/parcelrate/internal/pricing"
	"github.com/Simplici0/parcelrate/internal/seed"
)

const (
	adminEmail    = "admin@parcelrate.test"
	adminPassword = "s3cret"
)

type testServer struct {
	t       *testing.T
	srv     *server
	handler http.Handler
	db      *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLogger(t, logging.Discard())
}

func newTestServerWithLogger(t *testing.T, logger *slog.Logger) *testServer {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, migrations.Up(database))
	_, err = seed.Run(database, seed.Config{
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		ReferenceData: true,
	})
	require.NoError(t, err)

	srv, err := newServer(database, "test-secret", events.Nop{}, metrics.New(), logger)
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, handler: srv.routes(), db: database}
}

func (ts *testServer) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) id(query string, args ...any) int64 {
	ts.t.Helper()
	var id int64
	require.NoError(ts.t, ts.db.QueryRow(query, args...).Scan(&id))
	return id
}

func (ts *testServer) login() *http.Cookie {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/admin/login", map[string]string{"email": adminEmail, "password": adminPassword})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	ts.t.Fatalf("login response carried no %s cookie", sessionCookieName)
	return nil
}

type routeIDs struct {
	from, to, standard, zone int64
}

func (ts *testServer) asiaRoute() routeIDs {
	return routeIDs{
		from:     ts.id(`SELECT id FROM countries WHERE code = 'MY' AND country_type = 'DEPARTURE'`),
		to:       ts.id(`SELECT id FROM countries WHERE code = 'SG' AND country_type = 'DESTINATION'`),
		standard: ts.id(`SELECT id FROM service_types WHERE name = 'Standard'`),
		zone:     ts.id(`SELECT id FROM zones WHERE name = 'Southeast Asia'`),
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestQuote(t *testing.T) {
	ts := newTestServer(t)
	ids := ts.asiaRoute()

	rec := ts.do(http.MethodPost, "/api/rates/quote", map[string]any{
		"sender_country_id":    ids.from,
		"recipient_country_id": ids.to,
		"service_type_id":      ids.standard,
		"weight":               2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[breakdownResponse](t, rec)
	assert.Equal(t, "34.72", got.TotalCost)
	assert.Equal(t, "9.00", got.WeightCharge)
	assert.Equal(t, "Southeast Asia", got.ZoneName)
	assert.Equal(t, "2.00", got.ChargeableWeight)
	require.Len(t, got.AdditionalCharges, 1)
	assert.Equal(t, "0.72", got.AdditionalCharges[0].Amount)
	assert.Empty(t, got.Errors)
}

func TestBreakdownKeepsRatePrecision(t *testing.T) {
	var res pricing.Result
	res.Breakdown.BaseRate = decimal.RequireFromString("0.5")
	res.Breakdown.PerKgRate = decimal.RequireFromString("5.125")
	res.Breakdown.WeightCharge = decimal.RequireFromString("10.25")

	got := newBreakdownResponse(res)
	assert.Equal(t, "0.5", got.BaseRate)
	assert.Equal(t, "5.125", got.PerKgRate)
	assert.Equal(t, "10.25", got.WeightCharge)
	assert.Equal(t, "0.00", got.TotalCost)
}

func TestQuoteReportsCalculationErrors(t *testing.T) {
	ts := newTestServer(t)
	ids := ts.asiaRoute()

	rec := ts.do(http.MethodPost, "/api/rates/quote", map[string]any{
		"sender_country_id":    ids.from,
		"recipient_country_id": ids.to,
		"service_type_id":      ids.standard,
		"weight":               500,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := decodeBody[breakdownResponse](t, rec)
	assert.NotEmpty(t, got.Errors)
}

func TestQuoteValidatesBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/rates/quote", map[string]any{
		"sender_country_id":    1,
		"recipient_country_id": 3,
		"weight":               -1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := decodeBody[errorResponse](t, rec)
	assert.Contains(t, got.Fields, "service_type_id")
	assert.Contains(t, got.Fields, "weight")

	rec = ts.do(http.MethodPost, "/api/rates/quote", `{"surprise": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/rates/quote", map[string]any{
		"sender_country_id":    1,
		"recipient_country_id": 3,
		"service_type_id":      1,
		"payment_method":       "CARD",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Fields, "payment_method")
}

func TestConvert(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/currency/convert", map[string]any{
		"from_currency": "myr",
		"from_amount":   "100",
		"to_currency":   "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[convertResponse](t, rec)
	assert.Equal(t, "MYR", got.FromCurrency)
	assert.Equal(t, "21.23", got.ConvertedAmount)

	rec = ts.do(http.MethodPost, "/api/currency/convert", map[string]any{
		"from_currency": "XXX",
		"from_amount":   "1",
		"to_currency":   "USD",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "CURRENCY_NOT_FOUND", errBody.Kind)
	assert.Equal(t, "from_currency", errBody.Field)
}

func TestListReferenceData(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/countries?country_type=departure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	countries := decodeBody[[]countryResponse](t, rec)
	require.Len(t, countries, 2)
	for _, c := range countries {
		assert.Equal(t, "DEPARTURE", c.Type)
	}

	rec = ts.do(http.MethodGet, "/api/service-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decodeBody[[]serviceTypeResponse](t, rec)
	require.Len(t, services, 2)
	assert.Equal(t, 6000, services[0].DimensionalFactor)

	rec = ts.do(http.MethodGet, "/api/cities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]cityResponse](t, rec), 3)

	rec = ts.do(http.MethodGet, "/api/countries?country_type=elsewhere", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func createShipment(t *testing.T, ts *testServer, ids routeIDs) shipmentResponse {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/shipments", map[string]any{
		"sender":          map[string]any{"name": "Aisha", "address": "1 Jalan Ampang", "country_id": ids.from},
		"recipient":       map[string]any{"name": "Wei", "address": "8 Orchard Rd", "country_id": ids.to},
		"service_type_id": ids.standard,
		"weight":          "2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[shipmentResponse](t, rec)
}

func TestShipmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ids := ts.asiaRoute()

	created := createShipment(t, ts, ids)
	assert.Equal(t, "34.72", created.Cost.TotalCost)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, 1, created.Version)
	require.Len(t, created.Tracking, 1)

	path := "/api/shipments/" + strconv.FormatInt(created.ID, 10)

	rec := ts.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.TrackingNumber, decodeBody[shipmentResponse](t, rec).TrackingNumber)

	rec = ts.do(http.MethodGet, "/api/shipments/track?tracking_number="+strings.ToLower(created.TrackingNumber), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[shipmentResponse](t, rec).ID)

	// 25.00 + 4 kg × 4.50 + 8% fuel
	rec = ts.do(http.MethodPatch, path, map[string]any{"version": created.Version, "weight": "4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[shipmentResponse](t, rec)
	assert.Equal(t, "44.44", updated.Cost.TotalCost)
	assert.Equal(t, 2, updated.Version)

	rec = ts.do(http.MethodPatch, path, map[string]any{"version": created.Version, "weight": "5"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, path+"/status", map[string]any{"status": "in_transit", "location": "KLIA"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[shipmentResponse](t, rec)
	assert.Equal(t, "IN_TRANSIT", moved.Status)
	require.Len(t, moved.Tracking, 2)
	assert.Equal(t, "KLIA", moved.Tracking[1].Location)

	rec = ts.do(http.MethodPost, path+"/status", map[string]any{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, path+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), created.TrackingNumber)
	assert.Contains(t, rec.Body.String(), "44.44")

	rec = ts.do(http.MethodGet, "/api/shipments?status=IN_TRANSIT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]shipmentResponse](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/shipments/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/shipments/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuy4meRequest(t *testing.T) {
	ts := newTestServer(t)
	city := ts.id(`SELECT id FROM cities WHERE name = 'Kuala Lumpur'`)

	rec := ts.do(http.MethodPost, "/api/buy4me", map[string]any{
		"customer_email":   "buyer@example.com",
		"shipping_address": "12 Jalan Bukit Bintang",
		"city_id":          city,
		"items": []map[string]any{{
			"product_name":                       "Running shoes",
			"quantity":                           2,
			"unit_price":                         "30.00",
			"store_to_warehouse_delivery_charge": "5.00",
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[buy4meResponse](t, rec)
	assert.Equal(t, "75.00", created.TotalCost)
	assert.Equal(t, "10.00", created.CityDeliveryCharge)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "65.00", created.Items[0].Total)

	path := "/api/buy4me/" + strconv.FormatInt(created.ID, 10)

	rec = ts.do(http.MethodPost, path+"/items", map[string]any{"product_name": "Socks", "unit_price": "4.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "79.50", decodeBody[buy4meResponse](t, rec).TotalCost)

	itemPath := path + "/items/" + strconv.FormatInt(created.Items[0].ID, 10)
	rec = ts.do(http.MethodPatch, itemPath, map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "49.50", decodeBody[buy4meResponse](t, rec).TotalCost)

	rec = ts.do(http.MethodPut, path+"/city", map[string]any{"city_id": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "39.50", decodeBody[buy4meResponse](t, rec).TotalCost)

	rec = ts.do(http.MethodDelete, itemPath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "4.50", decodeBody[buy4meResponse](t, rec).TotalCost)

	rec = ts.do(http.MethodPost, "/api/admin/buy4me/"+strconv.FormatInt(created.ID, 10)+"/status", map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := ts.login()
	rec = ts.do(http.MethodPost, "/api/admin/buy4me/"+strconv.FormatInt(created.ID, 10)+"/status", map[string]any{"status": "CANCELLED"}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, path+"/items", map[string]any{"product_name": "Hat", "unit_price": "9"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/admin/cities", map[string]any{"name": "Ipoh", "delivery_charge": "8"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &http.Cookie{Name: sessionCookieName, Value: "YWRtaW4.deadbeef"}
	rec = ts.do(http.MethodPost, "/api/admin/cities", map[string]any{"name": "Ipoh", "delivery_charge": "8"}, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/login", map[string]string{"email": adminEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := ts.login()
	rec = ts.do(http.MethodPost, "/api/admin/cities", map[string]any{"name": "Ipoh", "delivery_charge": "8"}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "8.00", decodeBody[cityResponse](t, rec).DeliveryCharge)
}

func TestAdminChargeChangeRecalculatesShipment(t *testing.T) {
	ts := newTestServer(t)
	ids := ts.asiaRoute()
	session := ts.login()

	created := createShipment(t, ts, ids)
	recalc := "/api/admin/shipments/" + strconv.FormatInt(created.ID, 10) + "/recalculate"

	rec := ts.do(http.MethodPost, recalc, nil, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[struct {
		Changed  bool             `json:"changed"`
		Shipment shipmentResponse `json:"shipment"`
	}](t, rec)
	assert.False(t, first.Changed)

	rec = ts.do(http.MethodPost, "/api/admin/additional-charges", map[string]any{
		"name":             "Peak Season",
		"charge_type":      "FIXED",
		"value":            "10",
		"zone_ids":         []int64{ids.zone},
		"service_type_ids": []int64{ids.standard},
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, recalc, nil, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeBody[struct {
		Changed  bool             `json:"changed"`
		Shipment shipmentResponse `json:"shipment"`
	}](t, rec)
	assert.True(t, second.Changed)
	assert.Equal(t, "44.72", second.Shipment.Cost.TotalCost)
	assert.Equal(t, 2, second.Shipment.Version)

	rec = ts.do(http.MethodPost, "/api/admin/planets/1/active", map[string]any{"active": false}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/api/admin/cod-fee", map[string]any{"percent": "150"}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	ts.do(http.MethodGet, "/api/cities", nil)

	rec = ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `parcelrate_http_requests_total{method="GET",route="/api/cities",status="200"} 1`)
}

type fixedBreaker gobreaker.State

func (b fixedBreaker) State() gobreaker.State { return gobreaker.State(b) }

func TestHealthReportsEventBreaker(t *testing.T) {
	ts := newTestServer(t)

	ts.srv.breaker = fixedBreaker(gobreaker.StateClosed)
	rec := ts.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "event_breaker": "closed"}, decodeBody[map[string]string](t, rec))

	ts.srv.breaker = fixedBreaker(gobreaker.StateOpen)
	rec = ts.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "degraded", "event_breaker": "open"}, decodeBody[map[string]string](t, rec))
}

func TestLogLinesCarryOneComponent(t *testing.T) {
	var out bytes.Buffer
	ts := newTestServerWithLogger(t, logging.New(logging.Config{Level: "info", ServiceName: "parcelrate", Output: &out}))
	cookie := ts.login()

	extra := ts.id(`SELECT id FROM extras ORDER BY id LIMIT 1`)
	rec := ts.do(http.MethodPost, "/api/admin/extras/"+strconv.FormatInt(extra, 10)+"/active", map[string]bool{"active": false}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	seen := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		assert.Equal(t, 1, strings.Count(line, `"component":`), line)
		var entry struct {
			Component string `json:"component"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		seen[entry.Component] = true
	}
	assert.True(t, seen["refdata"], out.String())
	assert.True(t, seen["http"], out.String())
}

func TestCreateShipmentWithInvalidOriginWritesNothing(t *testing.T) {
	ts := newTestServer(t)
	ids := ts.asiaRoute()

	rec := ts.do(http.MethodPost, "/api/shipments", map[string]any{
		"sender":          map[string]any{"name": "Aisha", "address": "1 Jalan Ampang", "country_id": ids.to},
		"recipient":       map[string]any{"name": "Wei", "address": "8 Orchard Rd", "country_id": ids.to},
		"service_type_id": ids.standard,
		"weight":          "2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	got := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "origin_country", got.Field)
	assert.Equal(t, "ROUTE_NOT_FOUND", got.Kind)

	var count int
	require.NoError(t, ts.db.QueryRow(`SELECT COUNT(*) FROM shipments`).Scan(&count))
	assert.Zero(t, count)
}
