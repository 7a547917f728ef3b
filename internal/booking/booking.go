package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/money"
	"github.com/noah-isme/backend-invoicing/internal/pricing"
)

// ErrInconsistentLines is returned when the lines of one booking disagree on currency or polarity.
var ErrInconsistentLines = errors.New("booking: lines disagree on currency or polarity")

// Slot identifies one of the fixed price lines of a booking.
type Slot int

const (
	Main Slot = iota
	Additional1
	Additional2
	CancellationFee

	slotCount
)

// Slots lists every line slot in summation order.
var Slots = [slotCount]Slot{Main, Additional1, Additional2, CancellationFee}

func (s Slot) String() string {
	switch s {
	case Main:
		return "main"
	case Additional1:
		return "additional1"
	case Additional2:
		return "additional2"
	case CancellationFee:
		return "cancellation_fee"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

func (s Slot) valid() bool {
	return s >= Main && s < slotCount
}

// Params carries the inputs of New. Nil lines are absent and become zero lines.
type Params struct {
	ID                  int64
	Main                *pricing.Price
	Additional1         *pricing.Price
	Additional2         *pricing.Price
	CancellationFee     *pricing.Price
	PaidAmount          decimal.Decimal
	BookingDate         time.Time
	CancellationDate    *time.Time
	BenefitRecipientIDs []int64
	InvoiceRecipientID  int64
	OfferingID          int64
}

// Booking is one sale with four price lines and the amount already paid against it.
// The main line decides the booking's currency and polarity.
//
// The zero value is an empty gross booking without currency.
type Booking struct {
	ID                  int64
	InvoiceRecipientID  int64
	BenefitRecipientIDs []int64
	OfferingID          int64
	BookingDate         time.Time
	CancellationDate    *time.Time

	lines      [slotCount]pricing.Price
	paidAmount decimal.Decimal
}

// New builds a booking. Absent lines take the main line's currency and polarity; present
// lines must already agree with it.
func New(p Params) (*Booking, error) {
	b := &Booking{
		ID:                  p.ID,
		InvoiceRecipientID:  p.InvoiceRecipientID,
		BenefitRecipientIDs: p.BenefitRecipientIDs,
		OfferingID:          p.OfferingID,
		BookingDate:         p.BookingDate,
		CancellationDate:    p.CancellationDate,
	}
	if p.Main != nil {
		b.lines[Main] = *p.Main
	}
	primary := b.lines[Main]

	given := [slotCount]*pricing.Price{Main: p.Main, Additional1: p.Additional1, Additional2: p.Additional2, CancellationFee: p.CancellationFee}
	for _, slot := range Slots[1:] {
		line := given[slot]
		if line == nil {
			var zero pricing.Price
			zero.SetCurrency(primary.Currency())
			zero.SetGross(primary.IsGross())
			b.lines[slot] = zero
			continue
		}
		if line.Currency() != primary.Currency() || line.IsGross() != primary.IsGross() {
			return nil, fmt.Errorf("%w: %s line is %s, main line is %s", ErrInconsistentLines, slot, describe(*line), describe(primary))
		}
		b.lines[slot] = *line
	}
	b.SetPaidAmount(p.PaidAmount)
	return b, nil
}

func describe(p pricing.Price) string {
	polarity := "gross"
	if p.IsNet() {
		polarity = "net"
	}
	if p.Currency() == "" {
		return polarity + " without currency"
	}
	return polarity + " " + p.Currency()
}

// Line returns the price stored in slot. Unknown slots yield a zero price.
func (b *Booking) Line(slot Slot) pricing.Price {
	if !slot.valid() {
		return pricing.Price{}
	}
	return b.lines[slot]
}

// SetLine replaces the price in slot. A new main line pushes its currency and polarity to
// the other lines; any other line adopts the booking's currency and polarity.
func (b *Booking) SetLine(slot Slot, p pricing.Price) error {
	if !slot.valid() {
		return fmt.Errorf("%w: unknown line %s", common.ErrInvalidArgument, slot)
	}
	if slot == Main {
		b.lines[Main] = p
		b.SetCurrency(p.Currency())
		b.SetGross(p.IsGross())
		return nil
	}
	p.SetCurrency(b.Currency())
	p.SetGross(b.IsGross())
	b.lines[slot] = p
	return nil
}

// Currency returns the main line's currency.
func (b *Booking) Currency() string {
	return b.lines[Main].Currency()
}

// SetCurrency relabels every line. Amounts are not converted.
func (b *Booking) SetCurrency(currency string) {
	for i := range b.lines {
		b.lines[i].SetCurrency(currency)
	}
}

// IsGross reports the main line's polarity.
func (b *Booking) IsGross() bool {
	return b.lines[Main].IsGross()
}

// SetGross switches the polarity of every line. Amounts are not converted.
func (b *Booking) SetGross(gross bool) {
	for i := range b.lines {
		b.lines[i].SetGross(gross)
	}
}

// PaidAmount returns the amount already paid.
func (b *Booking) PaidAmount() decimal.Decimal {
	return b.paidAmount
}

// SetPaidAmount stores the paid amount rounded to two digits.
func (b *Booking) SetPaidAmount(amount decimal.Decimal) {
	b.paidAmount = money.Round(amount)
}

// Cancel records the cancellation date.
func (b *Booking) Cancel(at time.Time) {
	b.CancellationDate = &at
}

// IsCancelled reports whether a cancellation date is set.
func (b *Booking) IsCancelled() bool {
	return b.CancellationDate != nil
}

// SetBenefitRecipient replaces the benefit recipients with a single one.
func (b *Booking) SetBenefitRecipient(id int64) {
	b.BenefitRecipientIDs = []int64{id}
}

func (b *Booking) sum(view func(pricing.Price) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.lines {
		total = total.Add(view(line))
	}
	return total
}

// TotalGross sums the gross view of every line.
func (b *Booking) TotalGross() decimal.Decimal {
	return b.sum(pricing.Price.Gross)
}

// TotalNet sums the net view of every line.
func (b *Booking) TotalNet() decimal.Decimal {
	return b.sum(pricing.Price.Net)
}

// TotalTax sums the tax of every line.
func (b *Booking) TotalTax() decimal.Decimal {
	return b.sum(pricing.Price.Tax)
}

// Total sums the stored amounts, i.e. gross or net depending on the booking's polarity.
func (b *Booking) Total() decimal.Decimal {
	return b.sum(pricing.Price.Amount)
}

// OpenAmount is TotalGross minus the paid amount. It is gross regardless of polarity.
func (b *Booking) OpenAmount() decimal.Decimal {
	return b.TotalGross().Sub(b.paidAmount)
}

// IsZero reports whether every line has a zero amount.
func (b *Booking) IsZero() bool {
	for _, line := range b.lines {
		if !line.IsZero() {
			return false
		}
	}
	return true
}

func (b *Booking) TotalGrossMoney() money.Money { return money.New(b.TotalGross(), b.Currency()) }
func (b *Booking) TotalNetMoney() money.Money   { return money.New(b.TotalNet(), b.Currency()) }
func (b *Booking) TotalTaxMoney() money.Money   { return money.New(b.TotalTax(), b.Currency()) }
func (b *Booking) TotalMoney() money.Money      { return money.New(b.Total(), b.Currency()) }
func (b *Booking) OpenMoney() money.Money       { return money.New(b.OpenAmount(), b.Currency()) }
