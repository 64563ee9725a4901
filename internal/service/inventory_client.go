package service

import (
	"context"
	"errors"
	"fmt"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Shortage is a requested quantity the ledger cannot cover
type Shortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InventoryClient draws sale and order consumption from the ledger
type InventoryClient struct {
	ledger StockLedger
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(ledger StockLedger) *InventoryClient {
	return &InventoryClient{
		ledger: ledger,
		logger: util.GetLogger(),
	}
}

// CheckAvailability lists the items whose requested quantity exceeds stock.
// Unknown products are reported with zero availability.
func (ic *InventoryClient) CheckAvailability(items []models.StockConsumption) []Shortage {
	requested := make(map[string]int)
	order := make([]string, 0, len(items))
	for _, item := range items {
		if _, seen := requested[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	var shortages []Shortage
	for _, id := range order {
		available := 0
		if p, ok := ic.ledger.Product(id); ok {
			available = p.Stock
		}
		if requested[id] > available {
			shortages = append(shortages, Shortage{ProductID: id, Requested: requested[id], Available: available})
		}
	}
	return shortages
}

// Consume records one order movement per item and returns how many were applied.
// Items for unknown products are skipped. Every item is attempted; failures are joined.
func (ic *InventoryClient) Consume(ctx context.Context, items []models.StockConsumption, reason, performedBy string) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Consume", attribute.Int("items", len(items)))
	defer span.End()

	applied := 0
	var errs []error
	for _, item := range items {
		res, err := ic.ledger.UpdateStock(ctx, item.ProductID, item.Quantity, models.MovementOrder, reason, performedBy)
		if err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
			continue
		}
		if !res.Found {
			ic.logger.Warn("Consumption for unknown product skipped",
				zap.String("product_id", item.ProductID),
				zap.String("reason", reason))
			continue
		}
		if res.Movement.Quantity < item.Quantity {
			ic.logger.Warn("Consumption exceeded stock, clamped at zero",
				zap.String("product_id", item.ProductID),
				zap.Int("requested", item.Quantity),
				zap.Int("applied", res.Movement.Quantity))
		}
		applied++
	}

	err := errors.Join(errs...)
	if err != nil {
		util.SpanError(span, err)
	}
	return applied, err
}
