package ledger

import (
	"context"
	"fmt"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BulkMode selects the formula applied by BulkAdjust
type BulkMode string

// Bulk adjustment modes
const (
	BulkIncrease   BulkMode = "increase"
	BulkDecrease   BulkMode = "decrease"
	BulkPercentage BulkMode = "percentage"
)

var hundred = decimal.NewFromInt(100)

// BulkResult reports what a bulk adjustment did per product
type BulkResult struct {
	Updates   []StockUpdate `json:"updates"`
	Unchanged []string      `json:"unchanged"`
	NotFound  []string      `json:"not_found"`
}

// BulkTarget computes the new stock for one product under mode.
// Fixed modes take whole units only; percentage rounds to the nearest unit.
func BulkTarget(stock int, mode BulkMode, value decimal.Decimal) (int, error) {
	if (mode == BulkIncrease || mode == BulkDecrease) && !value.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrFractionalBulk, value)
	}

	var target int64
	switch mode {
	case BulkIncrease:
		target = int64(stock) + value.IntPart()
	case BulkDecrease:
		target = int64(stock) - value.IntPart()
	case BulkPercentage:
		factor := hundred.Add(value).Div(hundred)
		target = decimal.NewFromInt(int64(stock)).Mul(factor).Round(0).IntPart()
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBulkMode, mode)
	}
	if target < 0 {
		target = 0
	}
	return int(target), nil
}

// BulkAdjust applies one formula across productIDs. Products whose stock would
// not change are skipped without a movement. All changes commit together.
func (l *Ledger) BulkAdjust(ctx context.Context, productIDs []string, mode BulkMode, value decimal.Decimal, reason, performedBy string) (BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.BulkAdjust",
		attribute.String("mode", string(mode)),
		attribute.Int("products", len(productIDs)))
	defer span.End()

	if _, err := BulkTarget(0, mode, value); err != nil {
		return BulkResult{}, err
	}
	if mode != BulkPercentage && value.IsNegative() {
		return BulkResult{}, ErrNegativeQuantity
	}

	result := BulkResult{Updates: []StockUpdate{}, Unchanged: []string{}, NotFound: []string{}}

	l.mu.Lock()
	seen := make(map[string]bool, len(productIDs))
	var products []models.Product
	var movements []models.Movement
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		current, ok := l.products[id]
		if !ok {
			result.NotFound = append(result.NotFound, id)
			continue
		}

		target, _ := BulkTarget(current.Stock, mode, value)
		if target == current.Stock {
			result.Unchanged = append(result.Unchanged, id)
			continue
		}

		kind := models.MovementIncrease
		if target < current.Stock {
			kind = models.MovementDecrease
		}

		updated := *current
		movement := l.movement(updated, target, kind, reason, performedBy)
		updated.Stock = target
		updated.UpdatedAt = movement.Timestamp

		products = append(products, updated)
		movements = append(movements, movement)
	}

	if len(movements) == 0 {
		l.mu.Unlock()
		return result, nil
	}

	if err := l.repo.Commit(ctx, products, movements); err != nil {
		l.mu.Unlock()
		util.LedgerCommitFailures.Inc()
		util.SpanError(span, err)
		return BulkResult{}, fmt.Errorf("failed to commit bulk adjustment: %w", err)
	}

	for i := range products {
		l.put(products[i])
	}
	l.log = append(l.log, movements...)
	l.refreshGaugesLocked()
	l.mu.Unlock()

	for i := range products {
		signal := l.notify(ctx, products[i], movements[i])
		result.Updates = append(result.Updates, StockUpdate{
			Found:    true,
			Product:  products[i],
			Movement: movements[i],
			Signal:   signal,
		})
	}

	l.logger.Info("Bulk stock adjustment applied",
		zap.String("mode", string(mode)),
		zap.String("value", value.String()),
		zap.Int("updated", len(result.Updates)),
		zap.Int("unchanged", len(result.Unchanged)),
		zap.Int("not_found", len(result.NotFound)))
	return result, nil
}
