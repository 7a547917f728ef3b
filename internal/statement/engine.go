package statement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/money"
)

// ErrInconsistentCurrencies is matched by every InconsistentCurrenciesError.
var ErrInconsistentCurrencies = errors.New("statement: bookings use inconsistent currencies")

// InconsistentCurrenciesError reports the first currency seen and the one that disagreed with it.
type InconsistentCurrenciesError struct {
	First     string
	Second    string
	BookingID int64
}

func (e *InconsistentCurrenciesError) Error() string {
	return fmt.Sprintf("statement: booking %d uses %q, expected %q", e.BookingID, e.Second, e.First)
}

// Is makes errors.Is(err, ErrInconsistentCurrencies) succeed.
func (e *InconsistentCurrenciesError) Is(target error) bool {
	return target == ErrInconsistentCurrencies
}

// Totals is the aggregated result for one invoice recipient. Sums are kept unrounded and
// rounded once when read. The zero value reports no value for every figure.
type Totals struct {
	currency string
	total    decimal.Decimal
	paid     decimal.Decimal
	open     decimal.Decimal
	matched  int
}

// Matched returns the number of bookings that belonged to the recipient.
func (t Totals) Matched() int { return t.matched }

// Currency returns the aggregation currency, or "" when nothing matched.
func (t Totals) Currency() string { return t.currency }

// Total returns the summed amount of gross bookings. Net bookings do not contribute.
func (t Totals) Total() (money.Money, bool) { return t.read(t.total) }

// Paid returns the summed paid amount.
func (t Totals) Paid() (money.Money, bool) { return t.read(t.paid) }

// Open returns the summed open amount.
func (t Totals) Open() (money.Money, bool) { return t.read(t.open) }

func (t Totals) read(sum decimal.Decimal) (money.Money, bool) {
	if t.matched == 0 {
		return money.Money{}, false
	}
	return money.New(sum, t.currency), true
}

// Calculate aggregates the bookings invoiced to recipientID. All matched bookings must share
// one currency; the first match decides it.
func Calculate(bookings []*booking.Booking, recipientID int64) (Totals, error) {
	var out Totals
	for i, b := range bookings {
		if b == nil {
			return Totals{}, fmt.Errorf("%w: booking at index %d is nil", common.ErrInvalidArgument, i)
		}
		if b.InvoiceRecipientID != recipientID {
			continue
		}
		currency := b.Currency()
		if out.matched == 0 {
			out.currency = currency
			out.total = decimal.Zero
			out.paid = decimal.Zero
			out.open = decimal.Zero
		} else if currency != out.currency {
			return Totals{}, &InconsistentCurrenciesError{First: out.currency, Second: currency, BookingID: b.ID}
		}
		out.matched++
		if b.IsGross() {
			out.total = out.total.Add(b.Total())
		}
		out.paid = out.paid.Add(b.PaidAmount())
		out.open = out.open.Add(b.OpenAmount())
	}
	return out, nil
}
