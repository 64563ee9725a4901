// Package pos is the point-of-sale pricing engine.
//
// A Cart is an ephemeral line-item collection for one register. Totals are
// derived on every read and never cached. The cart does not touch stock;
// Checkout produces a Sale whose Consumption is fed to the ledger elsewhere.
package pos

import (
	"errors"
	"fmt"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/money"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat sales tax applied to the discounted subtotal
var TaxRate = decimal.RequireFromString("0.08")

var hundred = decimal.NewFromInt(100)

// ErrInvalidDiscount is returned for negative values or unknown discount types
var ErrInvalidDiscount = errors.New("invalid discount")

// DiscountType selects how Discount.Value is read
type DiscountType string

// Discount types
const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount applied to the whole cart
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// LineItem is a product snapshot with a quantity of at least one
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price x quantity
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals are the derived amounts of a cart
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Taxable        decimal.Decimal `json:"taxable"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	ItemCount      int             `json:"item_count"`
}

// Cart holds the line items of an in-progress sale
type Cart struct {
	ID       string     `json:"id"`
	Items    []LineItem `json:"items"`
	Discount Discount   `json:"discount"`
}

// NewCart returns an empty cart with a zero percentage discount
func NewCart(id string) *Cart {
	return &Cart{
		ID:       id,
		Items:    []LineItem{},
		Discount: Discount{Type: DiscountPercentage, Value: decimal.Zero},
	}
}

// Add puts one unit of p in the cart, incrementing an existing line
func (c *Cart) Add(p models.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.Items[i].Quantity++
		return
	}
	c.Items = append(c.Items, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
	})
}

// UpdateQuantity sets a line's quantity. Quantities below one are ignored;
// use Remove to drop a line. Reports whether the cart changed.
func (c *Cart) UpdateQuantity(productID string, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = quantity
	return true
}

// Remove deletes a line
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Clear drops all lines and zeroes the discount value, keeping its type
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.Discount.Value = decimal.Zero
}

// SetDiscount replaces the cart discount
func (c *Cart) SetDiscount(t DiscountType, value decimal.Decimal) error {
	if t != DiscountPercentage && t != DiscountFixed {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, t)
	}
	if value.IsNegative() {
		return fmt.Errorf("%w: negative value", ErrInvalidDiscount)
	}
	c.Discount = Discount{Type: t, Value: value}
	return nil
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Totals computes subtotal, discount, tax and total
func (c *Cart) Totals() Totals {
	subtotal := decimal.Zero
	count := 0
	for _, li := range c.Items {
		subtotal = subtotal.Add(li.LineTotal())
		count += li.Quantity
	}

	discount := DiscountAmount(subtotal, c.Discount)
	taxable := subtotal.Sub(discount)
	tax := money.Round2(taxable.Mul(TaxRate))

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Taxable:        taxable,
		Tax:            tax,
		Total:          taxable.Add(tax),
		ItemCount:      count,
	}
}

// DiscountAmount resolves d against subtotal, rounded to cents and never above subtotal
func DiscountAmount(subtotal decimal.Decimal, d Discount) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = money.Round2(subtotal.Mul(d.Value).Div(hundred))
	case DiscountFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return money.Min(amount, subtotal)
}

func (c *Cart) index(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
