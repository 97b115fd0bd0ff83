package order

import (
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/shopspring/decimal"
)

// Pricing turns ledger lines into order totals. Amounts are rounded half up
// to cents.
type Pricing struct {
	Currency         string
	FlatShipping     decimal.Decimal
	FreeShippingOver decimal.Decimal // zero disables free shipping
	TaxRate          decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		Currency:         "USD",
		FlatShipping:     decimal.RequireFromString("5.00"),
		FreeShippingOver: decimal.RequireFromString("50.00"),
		TaxRate:          decimal.RequireFromString("0.08"),
	}
}

type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

func (p Pricing) Quote(items []domain.LineItem) Quote {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	subtotal = subtotal.Round(2)

	shipping := p.FlatShipping
	switch {
	case subtotal.IsZero():
		shipping = decimal.Zero
	case p.FreeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingOver):
		shipping = decimal.Zero
	}
	shipping = shipping.Round(2)

	tax := subtotal.Mul(p.TaxRate).Round(2)

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
		Currency: p.Currency,
	}
}
