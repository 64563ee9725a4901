package ledger

import (
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/shopspring/decimal"
)

// LowStockProducts returns products with 0 < stock <= threshold
func (l *Ledger) LowStockProducts() []models.Product {
	return l.filter(models.Product.IsLowStock)
}

// OutOfStockProducts returns products with zero stock
func (l *Ledger) OutOfStockProducts() []models.Product {
	return l.filter(models.Product.IsOutOfStock)
}

// TotalInventoryValue sums price x stock over the catalog
func (l *Ledger) TotalInventoryValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.totalValueLocked()
}

// InventoryValueByCategory sums price x stock per category
func (l *Ledger) InventoryValueByCategory() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]decimal.Decimal)
	for _, id := range l.order {
		p := l.products[id]
		out[p.Category] = out[p.Category].Add(p.StockValue())
	}
	return out
}

func (l *Ledger) filter(keep func(models.Product) bool) []models.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Product, 0)
	for _, id := range l.order {
		if p := l.products[id]; keep(*p) {
			out = append(out, *p)
		}
	}
	return out
}

func (l *Ledger) totalValueLocked() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.products {
		total = total.Add(p.StockValue())
	}
	return total
}

func (l *Ledger) refreshGaugesLocked() {
	var low, out int
	for _, p := range l.products {
		switch {
		case p.IsOutOfStock():
			out++
		case p.IsLowStock():
			low++
		}
	}
	util.LowStockProducts.Set(float64(low))
	util.OutOfStockProducts.Set(float64(out))
	util.InventoryValue.Set(l.totalValueLocked().InexactFloat64())
}
