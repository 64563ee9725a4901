// Package checkout holds the storefront shopping cart and its order pricing.
package checkout

import (
	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is the subtotal at which shipping is waived
	FreeShippingThreshold = decimal.NewFromInt(5000)
	// FlatShipping is charged below the threshold
	FlatShipping = decimal.NewFromInt(200)
)

// Quote is a priced storefront cart
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	FreeShipping bool            `json:"free_shipping"`
	ItemCount    int             `json:"item_count"`
}

// Shipping returns the shipping charge for subtotal
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShipping
}

// Price computes the order totals for lines. Coupons are not supported so
// the discount is always zero.
func Price(lines []Line) Quote {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}

	shipping := Shipping(subtotal)
	discount := decimal.Zero

	return Quote{
		Subtotal:     subtotal,
		Shipping:     shipping,
		Discount:     discount,
		Total:        subtotal.Add(shipping).Sub(discount),
		FreeShipping: shipping.IsZero(),
		ItemCount:    count,
	}
}
