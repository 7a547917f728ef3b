package statement

import (
	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/money"
)

// Evaluator keeps the result of the last Calculate call for callers that read totals one by
// one. It is not safe for concurrent use.
type Evaluator struct {
	total, paid, open *money.Money
}

// Calculate replaces the stored result. On error every figure is cleared.
func (e *Evaluator) Calculate(bookings []*booking.Booking, recipientID int64) error {
	e.total, e.paid, e.open = nil, nil, nil
	totals, err := Calculate(bookings, recipientID)
	if err != nil {
		return err
	}
	e.total = optional(totals.Total())
	e.paid = optional(totals.Paid())
	e.open = optional(totals.Open())
	return nil
}

// TotalAmount returns nil when nothing matched.
func (e *Evaluator) TotalAmount() *money.Money { return e.total }

// TotalPaidAmount returns nil when nothing matched.
func (e *Evaluator) TotalPaidAmount() *money.Money { return e.paid }

// TotalOpenAmount returns nil when nothing matched.
func (e *Evaluator) TotalOpenAmount() *money.Money { return e.open }

func optional(m money.Money, ok bool) *money.Money {
	if !ok {
		return nil
	}
	return &m
}
