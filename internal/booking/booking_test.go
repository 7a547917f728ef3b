package booking_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/pricing"
)

func price(amount, currency, rate string, gross bool) *pricing.Price {
	p := pricing.MustPrice(amount, currency, rate, gross)
	return &p
}

func TestNewNormalisesAbsentLines(t *testing.T) {
	b, err := booking.New(booking.Params{
		ID:                 7,
		Main:               price("100.00", "EUR", "19", false),
		PaidAmount:         decimal.RequireFromString("10.005"),
		InvoiceRecipientID: 1,
	})
	require.NoError(t, err)

	for _, slot := range booking.Slots[1:] {
		line := b.Line(slot)
		assert.True(t, line.IsZero(), slot.String())
		assert.Equal(t, "EUR", line.Currency())
		assert.True(t, line.IsNet())
	}
	assert.Equal(t, "10.01", b.PaidAmount().StringFixed(2))
	assert.Equal(t, "EUR", b.Currency())
	assert.False(t, b.IsGross())
}

func TestNewRejectsInconsistentLines(t *testing.T) {
	_, err := booking.New(booking.Params{
		Main:        price("100.00", "EUR", "19", true),
		Additional1: price("5.00", "THB", "19", true),
	})
	require.ErrorIs(t, err, booking.ErrInconsistentLines)
	assert.Contains(t, err.Error(), "additional1")

	_, err = booking.New(booking.Params{
		Main:            price("100.00", "EUR", "19", true),
		CancellationFee: price("5.00", "EUR", "19", false),
	})
	require.ErrorIs(t, err, booking.ErrInconsistentLines)
}

func TestTotals(t *testing.T) {
	b, err := booking.New(booking.Params{
		Main:            price("119.00", "EUR", "19", true),
		Additional1:     price("10.00", "EUR", "19", true),
		Additional2:     price("5.00", "EUR", "0", true),
		CancellationFee: price("0.00", "EUR", "19", true),
		PaidAmount:      decimal.RequireFromString("34.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "134.00", b.TotalGross().StringFixed(2))
	// 100.00 + 8.40 + 5.00
	assert.Equal(t, "113.40", b.TotalNet().StringFixed(2))
	assert.Equal(t, "20.60", b.TotalTax().StringFixed(2))
	assert.Equal(t, "134.00", b.Total().StringFixed(2))
	assert.Equal(t, "100.00", b.OpenAmount().StringFixed(2))
	assert.Equal(t, "100.00 EUR", b.OpenMoney().String())
	assert.Equal(t, "134.00 EUR", b.TotalMoney().String())
	assert.False(t, b.IsZero())
}

func TestNetBookingOpenAmountIsGross(t *testing.T) {
	b, err := booking.New(booking.Params{
		Main:       price("100.00", "EUR", "10", false),
		PaidAmount: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", b.Total().StringFixed(2))
	assert.Equal(t, "110.00", b.TotalGross().StringFixed(2))
	assert.Equal(t, "100.00", b.OpenAmount().StringFixed(2))
	assert.Equal(t, "10.00 EUR", b.TotalTaxMoney().String())
	assert.Equal(t, "100.00 EUR", b.TotalNetMoney().String())
	assert.Equal(t, "110.00 EUR", b.TotalGrossMoney().String())
}

func TestZeroValueBooking(t *testing.T) {
	var b booking.Booking
	assert.True(t, b.IsZero())
	assert.True(t, b.IsGross())
	assert.Equal(t, "", b.Currency())
	assert.True(t, b.OpenAmount().IsZero())
	assert.True(t, b.PaidAmount().IsZero())
	assert.False(t, b.IsCancelled())
}

func TestSettersPropagateToEveryLine(t *testing.T) {
	var b booking.Booking
	require.NoError(t, b.SetLine(booking.Additional2, *price("20.00", "USD", "7", false)))
	line := b.Line(booking.Additional2)
	assert.Equal(t, "", line.Currency(), "non-main lines adopt the booking currency")
	assert.True(t, line.IsGross())

	require.NoError(t, b.SetLine(booking.Main, *price("50.00", "CHF", "7.7", false)))
	for _, slot := range booking.Slots {
		assert.Equal(t, "CHF", b.Line(slot).Currency(), slot.String())
		assert.True(t, b.Line(slot).IsNet(), slot.String())
	}

	b.SetCurrency("EUR")
	b.SetGross(true)
	for _, slot := range booking.Slots {
		assert.Equal(t, "EUR", b.Line(slot).Currency())
		assert.True(t, b.Line(slot).IsGross())
	}
	assert.Equal(t, "20.00", b.Line(booking.Additional2).Amount().StringFixed(2), "amounts are not converted")

	err := b.SetLine(booking.Slot(9), pricing.Price{})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.True(t, b.Line(booking.Slot(-1)).IsZero())
}

func TestCancelAndRecipients(t *testing.T) {
	var b booking.Booking
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b.Cancel(at)
	require.True(t, b.IsCancelled())
	assert.True(t, b.CancellationDate.Equal(at))

	b.BenefitRecipientIDs = []int64{1, 2, 3}
	b.SetBenefitRecipient(9)
	assert.Equal(t, []int64{9}, b.BenefitRecipientIDs)
}

func TestRandomFixtures(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	list := booking.RandomFixtures(booking.FixtureOptions{
		Count:             5,
		AlternateCurrency: true,
		Gross:             false,
		Now:               now,
		Rand:              rand.New(rand.NewSource(42)),
	})
	require.Len(t, list, 5)

	for i, b := range list {
		assert.Equal(t, int64(i+1), b.ID)
		assert.Equal(t, int64(i%3), b.InvoiceRecipientID)
		assert.Equal(t, int64(i+10), b.OfferingID)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, b.BenefitRecipientIDs)
		assert.False(t, b.IsGross())
		assert.True(t, b.IsCancelled())
		assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), b.BookingDate)
		assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), *b.CancellationDate)

		want := "EUR"
		if i%2 == 1 {
			want = "THB"
		}
		assert.Equal(t, want, b.Currency())

		main := b.Line(booking.Main).Amount()
		assert.True(t, main.GreaterThanOrEqual(decimal.NewFromInt(2000)) && main.LessThanOrEqual(decimal.NewFromInt(3000)))
		assert.True(t, main.Equal(main.Truncate(0)), "amounts are whole numbers")
		assert.True(t, b.Line(booking.CancellationFee).TaxRate().Equal(decimal.NewFromInt(10)))
		paid := b.PaidAmount()
		assert.True(t, paid.GreaterThanOrEqual(decimal.NewFromInt(200)) && paid.LessThanOrEqual(decimal.NewFromInt(500)))
	}

	single := booking.RandomFixtures(booking.FixtureOptions{Count: 3, Gross: true, Rand: rand.New(rand.NewSource(1))})
	for _, b := range single {
		assert.Equal(t, "EUR", b.Currency())
		assert.True(t, b.IsGross())
	}
}
