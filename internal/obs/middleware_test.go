package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoicing/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("invoicing", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	assert.NotZero(t, testutil.CollectAndCount(metrics.Duration))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
	assert.NotZero(t, testutil.CollectAndCount(metrics.ResponseBytes))
}

func TestHTTPMetricsLabelsUnmatchedRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("invoicing", nil, registry)
	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/things/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/v1/things/{id}", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "unknown", "404")))
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := obs.NewStatusRecorder(httptest.NewRecorder())
	_, err := rec.Write([]byte("abc"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, int64(3), rec.BytesWritten())
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("invoicing", nil, registry)
	second := obs.NewHTTPMetrics("invoicing", nil, registry)
	assert.Same(t, first.Requests, second.Requests)
	assert.Same(t, first.ResponseBytes, second.ResponseBytes)
}

func TestParseBucketsCSV(t *testing.T) {
	assert.Nil(t, obs.ParseBucketsCSV(" "))
	assert.Equal(t, []float64{5, 10.5, 100}, obs.ParseBucketsCSV("5, 10.5,x,-1,,100"))
}

func TestRequestLoggerUsesRoutePatternAndContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside_handler")
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	assert.Equal(t, "inside_handler", inner["message"])
	assert.NotEmpty(t, inner["request_id"])

	var access map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &access))
	assert.Equal(t, "http_request", access["message"])
	assert.Equal(t, "/api/v1/items/{id}", access["route"])
	assert.Equal(t, float64(http.StatusAccepted), access["status"])
	assert.Equal(t, inner["request_id"], access["request_id"])
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("invoicing", registry)
	obs.MustRegisterDomainMetrics("invoicing", registry)
	require.NotNil(t, obs.StatementCalculationsTotal)
	require.NotNil(t, obs.PriceQuotesTotal)

	obs.StatementCalculationsTotal.WithLabelValues("ok").Inc()
	count, err := testutil.GatherAndCount(registry, "invoicing_statement_calculations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
