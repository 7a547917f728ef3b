package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every monetary amount carries.
const Scale = 2

var (
	// ErrCurrencyMismatch is returned when two amounts in different currencies are combined.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// CurrencyMismatchError carries the two offending currency codes.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("money: summand must have the same currency (currency: %s, summand currency: %s)", e.Left, e.Right)
}

// Is lets errors.Is match ErrCurrencyMismatch.
func (e *CurrencyMismatchError) Is(target error) bool {
	return target == ErrCurrencyMismatch
}

// Money is an immutable amount with exactly two fractional digits and an optional currency code.
// The zero value is 0.00 without currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New rounds amount half away from zero to two digits.
func New(amount decimal.Decimal, currency string) Money {
	return Money{amount: Round(amount), currency: currency}
}

// Zero returns 0.00 in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// FromString parses a plain decimal string such as "19.99".
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrValueCoercion, amount)
	}
	if d, err = bounded(d); err != nil {
		return Money{}, err
	}
	return New(d, currency), nil
}

// Parse coerces any supported value (see ToDecimal) into a Money.
func Parse(v any, currency string) (Money, error) {
	d, err := ToDecimal(v)
	if err != nil {
		return Money{}, err
	}
	return New(d, currency), nil
}

// Round applies the monetary rounding rule: half away from zero at two digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Amount returns the scale-2 amount.
func (m Money) Amount() decimal.Decimal { return Round(m.amount) }

// Currency returns the ISO code, empty when unknown.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// Sign returns -1, 0 or 1.
func (m Money) Sign() int { return m.amount.Sign() }

// Add adds a raw amount. The currency is not checked.
func (m Money) Add(amount decimal.Decimal) Money {
	return New(m.amount.Add(amount), m.currency)
}

// AddFloat adds a float using its shortest decimal representation.
func (m Money) AddFloat(f float64) Money {
	return m.Add(decimal.NewFromFloat(f))
}

// Plus adds other and fails when the currency codes differ.
func (m Money) Plus(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, &CurrencyMismatchError{Left: m.currency, Right: other.currency}
	}
	return New(m.amount.Add(other.amount), m.currency), nil
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return New(m.amount.Neg(), m.currency)
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	return New(m.amount.Abs(), m.currency)
}

// Times multiplies by an integer factor.
func (m Money) Times(n int64) Money {
	switch n {
	case 0:
		return Zero(m.currency)
	case 1:
		return m
	}
	return New(m.amount.Mul(decimal.NewFromInt(n)), m.currency)
}

// Mul multiplies by a decimal factor, rounding the product half-up to two digits.
func (m Money) Mul(factor decimal.Decimal) Money {
	if factor.IsZero() {
		return Zero(m.currency)
	}
	if factor.Equal(decimal.NewFromInt(1)) {
		return m
	}
	return New(m.amount.Mul(factor), m.currency)
}

// Convert applies an exchange rate and relabels the result with the target currency.
func (m Money) Convert(rate decimal.Decimal, currency string) Money {
	if rate.IsZero() {
		return Zero(currency)
	}
	if rate.Equal(decimal.NewFromInt(1)) {
		return Money{amount: m.amount, currency: currency}
	}
	return New(m.amount.Mul(rate), currency)
}

// Equal compares amounts numerically and currency codes exactly.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount) && m.currency == other.currency
}

// String renders "1234.56 EUR". Formatting is not localised.
func (m Money) String() string {
	if m.currency == "" {
		return m.amount.StringFixed(Scale)
	}
	return m.amount.StringFixed(Scale) + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// MarshalJSON encodes the amount as a fixed two-digit string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(Scale), Currency: m.currency})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromString(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
