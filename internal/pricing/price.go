package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/money"
)

var (
	// ErrInvalidTaxRate is returned for tax rates outside [0, 99.99].
	ErrInvalidTaxRate = errors.New("pricing: tax rate must be between 0 and 99.99")

	maxTaxRate = decimal.RequireFromString("99.99")
	one        = decimal.NewFromInt(1)
)

// Price is a single priced line. Its stored amount is either gross or net; the other
// representation and the tax portion are derived on read and rounded half-up to two digits.
//
// The zero value is a valid gross price of 0.00 at a tax rate of 0.
type Price struct {
	amount   decimal.Decimal
	currency string
	taxRate  decimal.Decimal
	net      bool
}

// NewPrice builds a price. The amount is rounded to two digits.
func NewPrice(amount decimal.Decimal, currency string, taxRate decimal.Decimal, gross bool) (Price, error) {
	p := Price{currency: currency, net: !gross}
	p.SetAmount(amount)
	if err := p.SetTaxRate(taxRate); err != nil {
		return Price{}, err
	}
	return p, nil
}

// MustPrice is NewPrice for literals; it panics on an invalid tax rate.
func MustPrice(amount, currency, taxRate string, gross bool) Price {
	p, err := NewPrice(decimal.RequireFromString(amount), currency, decimal.RequireFromString(taxRate), gross)
	if err != nil {
		panic(err)
	}
	return p
}

// Amount returns the stored amount in the price's own polarity.
func (p Price) Amount() decimal.Decimal { return p.amount }

// Currency returns the currency code.
func (p Price) Currency() string { return p.currency }

// TaxRate returns the tax rate in percent.
func (p Price) TaxRate() decimal.Decimal { return p.taxRate }

// IsGross reports whether the stored amount includes tax.
func (p Price) IsGross() bool { return !p.net }

// IsNet reports whether the stored amount excludes tax.
func (p Price) IsNet() bool { return p.net }

// SetAmount stores amount rounded half-up to two digits.
func (p *Price) SetAmount(amount decimal.Decimal) {
	p.amount = money.Round(amount)
}

// SetCurrency changes the currency code.
func (p *Price) SetCurrency(currency string) {
	p.currency = currency
}

// SetGross switches the polarity of the stored amount. The amount itself is not converted.
func (p *Price) SetGross(gross bool) {
	p.net = !gross
}

// SetTaxRate validates and stores the tax rate in percent.
func (p *Price) SetTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxTaxRate) {
		return fmt.Errorf("%w: %s", ErrInvalidTaxRate, rate)
	}
	p.taxRate = rate
	return nil
}

// rateFraction is taxRate/100. Shifting by two places is exact.
func (p Price) rateFraction() decimal.Decimal {
	return p.taxRate.Shift(-2)
}

// divisor is 1 + taxRate/100.
func (p Price) divisor() decimal.Decimal {
	return one.Add(p.rateFraction())
}

// Gross returns the tax-inclusive amount.
func (p Price) Gross() decimal.Decimal {
	if !p.net {
		return p.amount
	}
	return money.Round(p.amount.Mul(p.divisor()))
}

// Net returns the tax-exclusive amount.
func (p Price) Net() decimal.Decimal {
	if p.net {
		return p.amount
	}
	return p.amount.DivRound(p.divisor(), money.Scale)
}

// Tax returns the tax portion. For gross prices it is the residual amount - net, so
// gross == net + tax holds exactly. For net prices it is amount * rate rounded on its own.
func (p Price) Tax() decimal.Decimal {
	if p.taxRate.IsZero() {
		return decimal.Zero
	}
	if !p.net {
		return p.amount.Sub(p.Net())
	}
	return money.Round(p.amount.Mul(p.rateFraction()))
}

// IsZero reports whether the stored amount is exactly zero.
func (p Price) IsZero() bool {
	return p.amount.IsZero()
}

// Money returns the stored amount with its currency.
func (p Price) Money() money.Money { return money.New(p.amount, p.currency) }

// GrossMoney returns Gross with the currency.
func (p Price) GrossMoney() money.Money { return money.New(p.Gross(), p.currency) }

// NetMoney returns Net with the currency.
func (p Price) NetMoney() money.Money { return money.New(p.Net(), p.currency) }

// TaxMoney returns Tax with the currency.
func (p Price) TaxMoney() money.Money { return money.New(p.Tax(), p.currency) }

// Negated returns a copy with the stored amount negated, e.g. for credit lines.
func (p Price) Negated() Price {
	p.amount = p.amount.Neg()
	return p
}

// Equal compares every stored field.
func (p Price) Equal(other Price) bool {
	return p.amount.Equal(other.amount) &&
		p.currency == other.currency &&
		p.taxRate.Equal(other.taxRate) &&
		p.net == other.net
}

func (p Price) String() string {
	var sb strings.Builder
	sb.WriteString(p.amount.StringFixed(money.Scale))
	if p.net {
		sb.WriteString(" (net)")
	} else {
		sb.WriteString(" (gross)")
	}
	if p.currency != "" {
		sb.WriteString(" ")
		sb.WriteString(p.currency)
	}
	sb.WriteString(" tax ")
	sb.WriteString(p.taxRate.String())
	sb.WriteString("%")
	return sb.String()
}
