package cart

import "github.com/shopspring/decimal"

// Rates are the pricing constants applied to a non-empty cart.
type Rates struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}

// DefaultRates is 10% tax and a flat 5.00 delivery fee.
func DefaultRates() Rates {
	return Rates{
		TaxRate:     decimal.RequireFromString("0.10"),
		DeliveryFee: decimal.RequireFromString("5.00"),
	}
}

// PriceSummary is derived from a cart on every read and never persisted.
type PriceSummary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
	// Empty is set for an empty cart; tax and delivery are not applied.
	Empty bool
}

// Summarize computes subtotal, tax, delivery and total for c.
func Summarize(c Cart, rates Rates) PriceSummary {
	if len(c) == 0 {
		return PriceSummary{Empty: true}
	}
	subtotal := decimal.Zero
	for _, item := range c {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax := subtotal.Mul(rates.TaxRate)
	return PriceSummary{
		Subtotal: subtotal,
		Tax:      tax,
		Delivery: rates.DeliveryFee,
		Total:    subtotal.Add(tax).Add(rates.DeliveryFee),
	}
}

// SubtotalText, TaxText, DeliveryText and TotalText render two-decimal amounts.
func (s PriceSummary) SubtotalText() string { return s.Subtotal.StringFixed(2) }
func (s PriceSummary) TaxText() string      { return s.Tax.StringFixed(2) }
func (s PriceSummary) DeliveryText() string { return s.Delivery.StringFixed(2) }
func (s PriceSummary) TotalText() string    { return s.Total.StringFixed(2) }
