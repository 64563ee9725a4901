package checkout

import (
	"errors"

	"furniture-backoffice/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned for quantities below one
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is one product in a storefront cart
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Cart is a customer's shopping cart
type Cart struct {
	ID    string `json:"id"`
	Lines []Line `json:"lines"`
}

// NewCart returns an empty cart
func NewCart(id string) *Cart {
	return &Cart{ID: id, Lines: []Line{}}
}

// Add puts quantity units of p in the cart, accumulating onto an existing line
func (c *Cart) Add(p models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
	})
	return nil
}

// SetQuantity overwrites a line's quantity; reports whether the line exists
func (c *Cart) SetQuantity(productID string, quantity int) (bool, error) {
	if quantity < 1 {
		return false, ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes a line
func (c *Cart) Remove(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Lines = []Line{}
}

// Contains reports membership
func (c *Cart) Contains(productID string) bool {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}

// Count returns the number of units in the cart
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Quote prices the cart
func (c *Cart) Quote() Quote {
	return Price(c.Lines)
}

// Consumption lists the stock the cart would draw
func (c *Cart) Consumption() []models.StockConsumption {
	out := make([]models.StockConsumption, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, models.StockConsumption{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
