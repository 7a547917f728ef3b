package pricing

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/money"
	"github.com/noah-isme/backend-invoicing/internal/obs"
)

// Handler exposes price quote and currency conversion endpoints.
type Handler struct {
	validate *validator.Validate
}

// NewHandler constructs a Handler. A nil validator falls back to common.NewValidator.
func NewHandler(v *validator.Validate) *Handler {
	if v == nil {
		v = common.NewValidator()
	}
	return &Handler{validate: v}
}

type quoteRequest struct {
	Amount   any    `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxRate  any    `json:"taxRate,omitempty"`
	Gross    *bool  `json:"gross,omitempty"`
}

type quoteResponse struct {
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross"`
	TaxRate  string `json:"taxRate"`
	Amount   string `json:"amount"`
	Net      string `json:"amountNet"`
	Tax      string `json:"amountTax"`
	Total    string `json:"amountGross"`
}

type convertRequest struct {
	Amount         any    `json:"amount" validate:"required"`
	Currency       string `json:"currency" validate:"omitempty,len=3,alpha"`
	Rate           any    `json:"rate" validate:"required"`
	TargetCurrency string `json:"targetCurrency" validate:"required,len=3,alpha"`
}

type convertResponse struct {
	Source    money.Money `json:"source"`
	Rate      string      `json:"rate"`
	Converted money.Money `json:"converted"`
}

// Quote handles POST /api/v1/prices/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidatePayload(h.validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	amount, err := money.ToDecimal(req.Amount)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	rate := decimal.Zero
	if req.TaxRate != nil {
		if rate, err = money.ToDecimal(req.TaxRate); err != nil {
			common.WriteError(w, toAppError(err))
			return
		}
	}
	gross := req.Gross == nil || *req.Gross
	price, err := NewPrice(amount, strings.ToUpper(req.Currency), rate, gross)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}

	summary := Compute(price)
	if obs.PriceQuotesTotal != nil {
		obs.PriceQuotesTotal.WithLabelValues(polarity(summary.Gross)).Inc()
	}
	common.Data(w, http.StatusOK, quoteResponse{
		Currency: summary.Currency,
		Gross:    summary.Gross,
		TaxRate:  price.TaxRate().String(),
		Amount:   summary.Amount.StringFixed(money.Scale),
		Net:      summary.AmountNet.StringFixed(money.Scale),
		Tax:      summary.AmountTax.StringFixed(money.Scale),
		Total:    summary.AmountGross.StringFixed(money.Scale),
	})
}

// Convert handles POST /api/v1/money/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidatePayload(h.validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	source, err := money.Parse(req.Amount, strings.ToUpper(req.Currency))
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	rate, err := money.ToDecimal(req.Rate)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	if rate.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidArgument, "rate must not be negative", nil)
		return
	}
	target := strings.ToUpper(req.TargetCurrency)
	if obs.MoneyConversionsTotal != nil {
		obs.MoneyConversionsTotal.WithLabelValues(target).Inc()
	}
	common.Data(w, http.StatusOK, convertResponse{
		Source:    source,
		Rate:      rate.String(),
		Converted: source.Convert(rate, target),
	})
}

func polarity(gross bool) string {
	if gross {
		return "gross"
	}
	return "net"
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, money.ErrValueAbsent), errors.Is(err, money.ErrValueCoercion):
		return common.NewAppError(common.CodeValueCoercion, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidTaxRate):
		return common.NewAppError(common.CodeInvalidArgument, err.Error(), http.StatusBadRequest, err)
	default:
		return err
	}
}
