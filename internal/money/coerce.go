package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrValueAbsent is returned when a required value is nil.
	ErrValueAbsent = errors.New("money: value is absent")
	// ErrValueCoercion is returned when a value cannot be interpreted as a decimal amount.
	ErrValueCoercion = errors.New("money: value could not be interpreted as decimal")
)

// fallbackPrecision is the number of fractional digits kept for floats without a decimal form.
const fallbackPrecision = 8

// maxExponent bounds the decimal exponent of any coerced value in both directions.
const maxExponent = 30

// maxMagnitude is the exclusive upper bound on the absolute value of a coerced amount.
var maxMagnitude = decimal.New(1, 18)

// ToDecimal converts numeric-like values into a decimal.
//
// Floats go through their shortest decimal representation, so 3.14 stays 3.14 rather than the
// exact binary expansion. Strings are parsed as-is first; on failure whitespace is stripped and
// commas are read as decimal points. Values with an exponent beyond ±30 or a magnitude of 10^18
// or more are rejected with ErrValueCoercion.
func ToDecimal(v any) (decimal.Decimal, error) {
	d, err := coerce(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return bounded(d)
}

func coerce(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Decimal{}, ErrValueAbsent
	case decimal.Decimal:
		return t, nil
	case *decimal.Decimal:
		if t == nil {
			return decimal.Decimal{}, ErrValueAbsent
		}
		return *t, nil
	case Money:
		return t.Amount(), nil
	case *Money:
		if t == nil {
			return decimal.Decimal{}, ErrValueAbsent
		}
		return t.Amount(), nil
	case *big.Int:
		if t == nil {
			return decimal.Decimal{}, ErrValueAbsent
		}
		return decimal.NewFromBigInt(t, 0), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int8:
		return decimal.NewFromInt(int64(t)), nil
	case int16:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(t)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(t)), nil
	case uint16:
		return decimal.NewFromInt(int64(t)), nil
	case uint32:
		return decimal.NewFromInt(int64(t)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(t), 0), nil
	case float64:
		return fromFloat(t), nil
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return fixedPrecision(float64(t)), nil
		}
		return decimal.NewFromFloat32(t), nil
	case bool:
		if t {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case string:
		return fromString(t, v)
	case fmt.Stringer:
		return fromString(t.String(), v)
	default:
		return fromString(fmt.Sprint(t), v)
	}
}

// MustDecimal is ToDecimal for literals in tests and fixtures; it panics on error.
func MustDecimal(v any) decimal.Decimal {
	d, err := ToDecimal(v)
	if err != nil {
		panic(err)
	}
	return d
}

// bounded checks the exponent first so the magnitude comparison never rescales a huge value.
func bounded(d decimal.Decimal) (decimal.Decimal, error) {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, fmt.Errorf("%w: exponent %d out of range", ErrValueCoercion, exp)
	}
	if d.Abs().GreaterThanOrEqual(maxMagnitude) {
		return decimal.Decimal{}, fmt.Errorf("%w: magnitude exceeds %s", ErrValueCoercion, maxMagnitude)
	}
	return d, nil
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fixedPrecision(f)
	}
	return decimal.NewFromFloat(f)
}

// fixedPrecision rounds f*10^8 to an int64 with saturation (NaN becomes 0) and shifts it back.
func fixedPrecision(f float64) decimal.Decimal {
	var scaled int64
	switch {
	case math.IsNaN(f):
		scaled = 0
	case f*1e8 >= math.MaxInt64:
		scaled = math.MaxInt64
	case f*1e8 <= math.MinInt64:
		scaled = math.MinInt64
	default:
		scaled = int64(math.Floor(f*1e8 + 0.5))
	}
	return decimal.New(scaled, -fallbackPrecision)
}

func fromString(s string, original any) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, ErrValueAbsent
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	if d, err := decimal.NewFromString(normalizeNumber(s)); err == nil {
		return d, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrValueCoercion, fmt.Sprint(original))
}

func normalizeNumber(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ',':
			sb.WriteRune('.')
		case unicode.IsSpace(r):
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
