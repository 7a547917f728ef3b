package booking

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/pricing"
)

const (
	fixtureTaxRate   = 10
	fixtureRecipient = 3
)

var fixtureCurrencies = [...]string{"EUR", "THB"}

// FixtureOptions controls RandomFixtures.
type FixtureOptions struct {
	Count int
	// AlternateCurrency cycles EUR and THB by index instead of using EUR throughout.
	AlternateCurrency bool
	Gross             bool
	// Now anchors the booking date; the zero value means time.Now.
	Now  time.Time
	Rand *rand.Rand
}

// RandomFixtures builds Count bookings with whole-number random amounts at a 10% tax rate.
// Booking i is invoiced to recipient i%3, belongs to offering i+10 and is cancelled the day
// after it was booked.
func RandomFixtures(opts FixtureOptions) []*Booking {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	recipients := make([]int64, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		recipients = append(recipients, int64(i+1))
	}

	out := make([]*Booking, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		currency := fixtureCurrencies[0]
		if opts.AlternateCurrency {
			currency = fixtureCurrencies[i%len(fixtureCurrencies)]
		}
		cancelled := day.AddDate(0, 0, 1)
		b := &Booking{
			ID:                  int64(i + 1),
			InvoiceRecipientID:  int64(i % fixtureRecipient),
			BenefitRecipientIDs: append([]int64(nil), recipients...),
			OfferingID:          int64(i + 10),
			BookingDate:         day,
			CancellationDate:    &cancelled,
		}
		b.lines[Main] = fixturePrice(randomAmount(rng, 2000, 3000), currency, opts.Gross)
		b.lines[Additional1] = fixturePrice(randomAmount(rng, 1000, 2000), currency, opts.Gross)
		b.lines[Additional2] = fixturePrice(randomAmount(rng, 500, 1000), currency, opts.Gross)
		b.lines[CancellationFee] = fixturePrice(randomAmount(rng, 0, 500), currency, opts.Gross)
		b.SetPaidAmount(randomAmount(rng, 200, 500))
		out = append(out, b)
	}
	return out
}

func fixturePrice(amount decimal.Decimal, currency string, gross bool) pricing.Price {
	var p pricing.Price
	p.SetAmount(amount)
	p.SetCurrency(currency)
	p.SetGross(gross)
	if err := p.SetTaxRate(decimal.NewFromInt(fixtureTaxRate)); err != nil {
		panic(err)
	}
	return p
}

// randomAmount returns a whole number in [lo, hi].
func randomAmount(rng *rand.Rand, lo, hi int) decimal.Decimal {
	v := float64(lo) + float64(hi-lo)*rng.Float64()
	return decimal.NewFromFloat(v).Round(0)
}
