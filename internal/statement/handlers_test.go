package statement_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/obs"
	"github.com/noah-isme/backend-invoicing/internal/statement"
)

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type statementResponse struct {
	Data struct {
		RecipientID int64  `json:"recipientId"`
		Currency    string `json:"currency"`
		Matched     int    `json:"matched"`
		TotalAmount *struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"totalAmount"`
		TotalPaidAmount *struct {
			Amount string `json:"amount"`
		} `json:"totalPaidAmount"`
		TotalOpenAmount *struct {
			Amount string `json:"amount"`
		} `json:"totalOpenAmount"`
	} `json:"data"`
}

func init() {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
}

func newRouter(maxBookings int) http.Handler {
	svc := statement.NewService(statement.ServiceConfig{Logger: zerolog.Nop(), MaxBookings: maxBookings})
	h := statement.NewHandler(statement.HandlerConfig{Service: svc})
	r := chi.NewRouter()
	r.Post("/api/v1/invoice-recipients/{recipientID}/statement", h.Statement)
	return r
}

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatementHandler(t *testing.T) {
	router := newRouter(0)

	t.Run("aggregates matched bookings", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":[
			{"id":1,"invoiceRecipientId":1,"currency":"EUR","taxRate":19,"main":{"amount":"100.00"},"paidAmount":50},
			{"id":2,"invoiceRecipientId":1,"currency":"EUR","taxRate":19,"main":{"amount":20},"cancellationFee":{"amount":"0,50","taxRate":0}},
			{"id":3,"invoiceRecipientId":2,"currency":"THB","main":{"amount":1}}
		]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp statementResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.RecipientID)
		assert.Equal(t, "EUR", resp.Data.Currency)
		assert.Equal(t, 2, resp.Data.Matched)
		require.NotNil(t, resp.Data.TotalAmount)
		assert.Equal(t, "120.50", resp.Data.TotalAmount.Amount)
		assert.Equal(t, "EUR", resp.Data.TotalAmount.Currency)
		assert.Equal(t, "50.00", resp.Data.TotalPaidAmount.Amount)
		assert.Equal(t, "70.50", resp.Data.TotalOpenAmount.Amount)
	})

	t.Run("no match renders null figures", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/9/statement", `{"bookings":[
			{"invoiceRecipientId":1,"currency":"EUR","main":{"amount":"1"}}
		]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"totalAmount":null`)
		assert.Contains(t, rec.Body.String(), `"totalOpenAmount":null`)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":[
			{"id":1,"invoiceRecipientId":1,"currency":"EUR","main":{"amount":"1"}},
			{"id":2,"invoiceRecipientId":1,"currency":"THB","main":{"amount":"1"}}
		]}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "CURRENCY_INCONSISTENT", resp.Error.Code)
		assert.Equal(t, "EUR", resp.Error.Details["first"])
		assert.Equal(t, "THB", resp.Error.Details["second"])
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":[{"currency":"EURO"}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":[{"currency":"EUR","main":{"amount":"ten"}}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALUE_COERCION", resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "bookings[0]")
	})

	t.Run("amount exponent out of range", func(t *testing.T) {
		for _, body := range []string{
			`{"bookings":[{"invoiceRecipientId":1,"currency":"EUR","main":{"amount":1e10000000}}]}`,
			`{"bookings":[{"invoiceRecipientId":1,"currency":"EUR","main":{"amount":"1"},"paidAmount":1e-10000000}]}`,
			`{"bookings":[{"invoiceRecipientId":1,"currency":"EUR","taxRate":1e10000000,"main":{"amount":"1"}}]}`,
		} {
			rec := post(t, router, "/api/v1/invoice-recipients/1/statement", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "VALUE_COERCION", resp.Error.Code)
			assert.Less(t, rec.Body.Len(), 512)
		}
	})

	t.Run("tax rate out of range", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":[{"currency":"EUR","taxRate":"120","main":{"amount":"1"}}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
	})

	t.Run("malformed body and recipient", func(t *testing.T) {
		rec := post(t, router, "/api/v1/invoice-recipients/1/statement", `{"bookings":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "BAD_REQUEST")

		rec = post(t, router, "/api/v1/invoice-recipients/abc/statement", `{"bookings":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatementHandlerBookingLimit(t *testing.T) {
	rec := post(t, newRouter(1), "/api/v1/invoice-recipients/1/statement", `{"bookings":[
		{"currency":"EUR","main":{"amount":"1"}},
		{"currency":"EUR","main":{"amount":"1"}}
	]}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestServiceRecordsMetrics(t *testing.T) {
	svc := statement.NewService(statement.ServiceConfig{Logger: zerolog.Nop()})
	okBefore := testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("ok"))
	emptyBefore := testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("empty"))
	mismatchBefore := testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("currency_inconsistent"))

	_, err := svc.Evaluate(context.Background(), []*booking.Booking{newBooking(t, 1, "10.00", "EUR", true, "0.00")}, 1)
	require.NoError(t, err)
	_, err = svc.Evaluate(context.Background(), nil, 1)
	require.NoError(t, err)
	_, err = svc.Evaluate(context.Background(), []*booking.Booking{
		newBooking(t, 1, "10.00", "EUR", true, "0.00"),
		newBooking(t, 1, "10.00", "CHF", true, "0.00"),
	}, 1)
	require.ErrorIs(t, err, statement.ErrInconsistentCurrencies)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("ok")))
	assert.Equal(t, emptyBefore+1, testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("empty")))
	assert.Equal(t, mismatchBefore+1, testutil.ToFloat64(obs.StatementCalculationsTotal.WithLabelValues("currency_inconsistent")))
	assert.Positive(t, testutil.CollectAndCount(obs.StatementMatchedBookings))
}

func TestStatementHandlerAcceptsRenderedFixtures(t *testing.T) {
	list := fixtures(6, false, true)
	want, err := statement.Calculate(list, 2)
	require.NoError(t, err)

	req := statement.StatementRequest{}
	for _, b := range list {
		req.Bookings = append(req.Bookings, statement.NewBookingPayload(b))
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := post(t, newRouter(0), "/api/v1/invoice-recipients/2/statement", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp statementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	total, _ := want.Total()
	open, _ := want.Open()
	assert.Equal(t, want.Matched(), resp.Data.Matched)
	require.NotNil(t, resp.Data.TotalAmount)
	assert.Equal(t, total.Amount().StringFixed(2), resp.Data.TotalAmount.Amount)
	require.NotNil(t, resp.Data.TotalOpenAmount)
	assert.Equal(t, open.Amount().StringFixed(2), resp.Data.TotalOpenAmount.Amount)
}
