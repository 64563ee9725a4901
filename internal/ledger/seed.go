package ledger

import (
	"context"
	"fmt"
	"math/rand"

	"furniture-backoffice/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	demoMaxStock  = 60
	demoThreshold = 10
)

// Seed fills an empty ledger with catalog, giving each product a random
// initial stock in [0, demoMaxStock). It records no movements and does
// nothing when the ledger already holds products.
func (l *Ledger) Seed(ctx context.Context, catalog []models.Product, rng *rand.Rand) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.products) > 0 {
		return 0, nil
	}

	seeded := make([]models.Product, 0, len(catalog))
	for _, p := range catalog {
		p.Stock = rng.Intn(demoMaxStock)
		if p.LowStockThreshold == 0 {
			p.LowStockThreshold = demoThreshold
		}
		p.UpdatedAt = l.now()
		seeded = append(seeded, p)
	}

	if err := l.repo.Commit(ctx, seeded, nil); err != nil {
		return 0, fmt.Errorf("failed to commit seed catalog: %w", err)
	}
	for i := range seeded {
		l.put(seeded[i])
	}
	l.refreshGaugesLocked()

	l.logger.Info("Seeded demo catalog", zap.Int("products", len(seeded)))
	return len(seeded), nil
}

// DemoCatalog is the sample furniture catalog used for demos
func DemoCatalog() []models.Product {
	item := func(id, name, price, category, subcategory string) models.Product {
		return models.Product{
			ID:          id,
			Name:        name,
			Price:       decimal.RequireFromString(price),
			Category:    category,
			Subcategory: subcategory,
		}
	}

	return []models.Product{
		item("FRN-100101", "Oslo Three-Seat Sofa", "1299.00", "living-room", "sofas"),
		item("FRN-100102", "Bergen Corner Sofa", "2199.00", "living-room", "sofas"),
		item("FRN-100201", "Linen Accent Armchair", "449.50", "living-room", "chairs"),
		item("FRN-100301", "Walnut Coffee Table", "329.00", "living-room", "tables"),
		item("FRN-100401", "Low Media Console", "549.00", "living-room", "storage"),
		item("FRN-200101", "Oak Dining Table 6-Seat", "1149.00", "dining", "tables"),
		item("FRN-200201", "Spindle Dining Chair", "129.99", "dining", "chairs"),
		item("FRN-200301", "Sideboard with Rattan Doors", "899.00", "dining", "storage"),
		item("FRN-300101", "Queen Platform Bed", "999.00", "bedroom", "beds"),
		item("FRN-300102", "King Upholstered Bed", "1499.00", "bedroom", "beds"),
		item("FRN-300201", "Six-Drawer Dresser", "749.00", "bedroom", "storage"),
		item("FRN-300301", "Bedside Table", "189.00", "bedroom", "tables"),
		item("FRN-400101", "Standing Desk", "679.00", "office", "desks"),
		item("FRN-400201", "Ergonomic Task Chair", "399.00", "office", "chairs"),
		item("FRN-400301", "Five-Tier Bookshelf", "259.00", "office", "storage"),
		item("FRN-500101", "Arc Floor Lamp", "219.00", "lighting", "lamps"),
		item("FRN-500102", "Ceramic Table Lamp", "89.90", "lighting", "lamps"),
		item("FRN-600101", "Teak Outdoor Lounger", "579.00", "outdoor", "seating"),
	}
}
