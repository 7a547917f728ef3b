package statement

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/money"
	"github.com/noah-isme/backend-invoicing/internal/pricing"
)

// Handler exposes the statement endpoint.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Handler{service: cfg.Service, validate: v}
}

// Statement handles POST /api/v1/invoice-recipients/{recipientID}/statement.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "statement service not configured", nil)
		return
	}
	recipientID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "recipientID")), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "recipientID must be an integer", nil)
		return
	}
	var req StatementRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidatePayload(h.validate, req); err != nil {
		common.WriteError(w, err)
		return
	}

	bookings := make([]*booking.Booking, 0, len(req.Bookings))
	for i, payload := range req.Bookings {
		b, err := payload.ToBooking()
		if err != nil {
			common.WriteError(w, toAppError(fmt.Errorf("bookings[%d]: %w", i, err)))
			return
		}
		bookings = append(bookings, b)
	}

	totals, err := h.service.Evaluate(r.Context(), bookings, recipientID)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.Data(w, http.StatusOK, NewStatementResponse(recipientID, totals))
}

func toAppError(err error) error {
	var mismatch *InconsistentCurrenciesError
	switch {
	case errors.As(err, &mismatch):
		appErr := common.NewAppError(common.CodeCurrencyInconsistent, "bookings use different currencies", http.StatusUnprocessableEntity, err)
		appErr.Details = map[string]any{"first": mismatch.First, "second": mismatch.Second, "bookingId": mismatch.BookingID}
		return appErr
	case errors.Is(err, ErrTooManyBookings):
		return common.NewAppError(common.CodePayloadTooLarge, err.Error(), http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, money.ErrValueAbsent), errors.Is(err, money.ErrValueCoercion):
		return common.NewAppError(common.CodeValueCoercion, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrInvalidTaxRate), errors.Is(err, booking.ErrInconsistentLines), errors.Is(err, common.ErrInvalidArgument):
		return common.NewAppError(common.CodeInvalidArgument, err.Error(), http.StatusBadRequest, err)
	default:
		return err
	}
}
