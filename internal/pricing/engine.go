package pricing

import "github.com/shopspring/decimal"

// Summary aggregates the views of several prices.
type Summary struct {
	Currency    string          `json:"currency,omitempty"`
	Gross       bool            `json:"gross"`
	Amount      decimal.Decimal `json:"amount"`
	AmountGross decimal.Decimal `json:"amountGross"`
	AmountNet   decimal.Decimal `json:"amountNet"`
	AmountTax   decimal.Decimal `json:"amountTax"`
}

// Compute sums each view of the given prices. Every view is rounded per price before it is
// added, so the totals carry the per-line rounding of the inputs and nothing more.
// Currency and polarity are taken from the first price; callers pass prices that share them.
func Compute(prices ...Price) Summary {
	summary := Summary{
		Gross:       true,
		Amount:      decimal.Zero,
		AmountGross: decimal.Zero,
		AmountNet:   decimal.Zero,
		AmountTax:   decimal.Zero,
	}
	for i, p := range prices {
		if i == 0 {
			summary.Currency = p.Currency()
			summary.Gross = p.IsGross()
		}
		summary.Amount = summary.Amount.Add(p.Amount())
		summary.AmountGross = summary.AmountGross.Add(p.Gross())
		summary.AmountNet = summary.AmountNet.Add(p.Net())
		summary.AmountTax = summary.AmountTax.Add(p.Tax())
	}
	return summary
}
