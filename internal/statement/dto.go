package statement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/money"
	"github.com/noah-isme/backend-invoicing/internal/pricing"
)

// StatementRequest is the body of the statement endpoint.
type StatementRequest struct {
	Bookings []BookingPayload `json:"bookings" validate:"dive"`
}

// BookingPayload is one booking as sent by API clients. Amounts accept JSON numbers or
// strings; tax rates on a line override the booking's tax rate.
type BookingPayload struct {
	ID                  int64        `json:"id" validate:"gte=0"`
	InvoiceRecipientID  int64        `json:"invoiceRecipientId"`
	Currency            string       `json:"currency" validate:"omitempty,len=3,alpha"`
	Gross               *bool        `json:"gross,omitempty"`
	TaxRate             any          `json:"taxRate,omitempty"`
	Main                *LinePayload `json:"main" validate:"required"`
	Additional1         *LinePayload `json:"additional1,omitempty"`
	Additional2         *LinePayload `json:"additional2,omitempty"`
	CancellationFee     *LinePayload `json:"cancellationFee,omitempty"`
	PaidAmount          any          `json:"paidAmount,omitempty"`
	BookingDate         time.Time    `json:"bookingDate"`
	CancellationDate    *time.Time   `json:"cancellationDate,omitempty"`
	BenefitRecipientIDs []int64      `json:"benefitRecipientIds,omitempty"`
	OfferingID          int64        `json:"offeringId"`
}

// LinePayload is one price line of a booking.
type LinePayload struct {
	Amount  any `json:"amount" validate:"required"`
	TaxRate any `json:"taxRate,omitempty"`
}

// StatementResponse carries the aggregated figures. Nil figures mean no booking matched.
type StatementResponse struct {
	RecipientID     int64        `json:"recipientId"`
	Currency        string       `json:"currency,omitempty"`
	Matched         int          `json:"matched"`
	TotalAmount     *money.Money `json:"totalAmount"`
	TotalPaidAmount *money.Money `json:"totalPaidAmount"`
	TotalOpenAmount *money.Money `json:"totalOpenAmount"`
}

// NewStatementResponse renders totals for recipientID.
func NewStatementResponse(recipientID int64, totals Totals) StatementResponse {
	return StatementResponse{
		RecipientID:     recipientID,
		Currency:        totals.Currency(),
		Matched:         totals.Matched(),
		TotalAmount:     optional(totals.Total()),
		TotalPaidAmount: optional(totals.Paid()),
		TotalOpenAmount: optional(totals.Open()),
	}
}

// ToBooking converts the payload into a booking. Gross defaults to true.
func (p BookingPayload) ToBooking() (*booking.Booking, error) {
	gross := true
	if p.Gross != nil {
		gross = *p.Gross
	}
	defaultRate := decimal.Zero
	if p.TaxRate != nil {
		rate, err := money.ToDecimal(p.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("taxRate: %w", err)
		}
		defaultRate = rate
	}

	params := booking.Params{
		ID:                  p.ID,
		BookingDate:         p.BookingDate,
		CancellationDate:    p.CancellationDate,
		BenefitRecipientIDs: p.BenefitRecipientIDs,
		InvoiceRecipientID:  p.InvoiceRecipientID,
		OfferingID:          p.OfferingID,
	}
	lines := []struct {
		name    string
		payload *LinePayload
		target  **pricing.Price
	}{
		{"main", p.Main, &params.Main},
		{"additional1", p.Additional1, &params.Additional1},
		{"additional2", p.Additional2, &params.Additional2},
		{"cancellationFee", p.CancellationFee, &params.CancellationFee},
	}
	for _, line := range lines {
		if line.payload == nil {
			continue
		}
		price, err := line.payload.toPrice(p.Currency, defaultRate, gross)
		if err != nil {
			return nil, fmt.Errorf("%s %w", line.name, err)
		}
		*line.target = &price
	}
	if p.PaidAmount != nil {
		paid, err := money.ToDecimal(p.PaidAmount)
		if err != nil {
			return nil, fmt.Errorf("paidAmount: %w", err)
		}
		params.PaidAmount = paid
	}
	return booking.New(params)
}

func (l LinePayload) toPrice(currency string, defaultRate decimal.Decimal, gross bool) (pricing.Price, error) {
	amount, err := money.ToDecimal(l.Amount)
	if err != nil {
		return pricing.Price{}, fmt.Errorf("amount: %w", err)
	}
	rate := defaultRate
	if l.TaxRate != nil {
		if rate, err = money.ToDecimal(l.TaxRate); err != nil {
			return pricing.Price{}, fmt.Errorf("taxRate: %w", err)
		}
	}
	price, err := pricing.NewPrice(amount, currency, rate, gross)
	if err != nil {
		return pricing.Price{}, fmt.Errorf("taxRate: %w", err)
	}
	return price, nil
}

// NewBookingPayload renders b in the shape accepted by the statement endpoint.
func NewBookingPayload(b *booking.Booking) BookingPayload {
	gross := b.IsGross()
	line := func(slot booking.Slot) *LinePayload {
		p := b.Line(slot)
		return &LinePayload{Amount: p.Amount().StringFixed(money.Scale), TaxRate: p.TaxRate().String()}
	}
	return BookingPayload{
		ID:                  b.ID,
		InvoiceRecipientID:  b.InvoiceRecipientID,
		Currency:            b.Currency(),
		Gross:               &gross,
		Main:                line(booking.Main),
		Additional1:         line(booking.Additional1),
		Additional2:         line(booking.Additional2),
		CancellationFee:     line(booking.CancellationFee),
		PaidAmount:          b.PaidAmount().StringFixed(money.Scale),
		BookingDate:         b.BookingDate,
		CancellationDate:    b.CancellationDate,
		BenefitRecipientIDs: b.BenefitRecipientIDs,
		OfferingID:          b.OfferingID,
	}
}
