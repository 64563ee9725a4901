// Package ledger owns product stock levels and their append-only movement log.
//
// All stock changes go through the Ledger. Each successful mutation is
// committed to the Repository before it becomes visible in memory, so a
// persistence failure leaves the last valid state in place.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Ledger is the single source of truth for stock levels
type Ledger struct {
	mu       sync.RWMutex
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	products map[string]*models.Product
	order    []string
	barcodes map[string]string
	log      []models.Movement // oldest first
}

// Option customizes a Ledger
type Option func(*Ledger)

// WithClock overrides the movement timestamp source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the movement id source
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// StockUpdate is the outcome of UpdateStock. Found is false when the product
// id is unknown; in that case nothing was recorded.
type StockUpdate struct {
	Found    bool               `json:"found"`
	Product  models.Product     `json:"product"`
	Movement models.Movement    `json:"movement"`
	Signal   models.StockSignal `json:"signal,omitempty"`
}

// New loads products and movements from repo and returns a ready ledger
func New(ctx context.Context, repo Repository, notifier Notifier, opts ...Option) (*Ledger, error) {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	l := &Ledger{
		repo:     repo,
		notifier: notifier,
		logger:   util.Component("ledger"),
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		products: make(map[string]*models.Product),
		barcodes: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}

	products, err := repo.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	movements, err := repo.LoadMovements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}

	for i := range products {
		l.put(products[i])
	}
	l.log = make([]models.Movement, len(movements))
	for i, m := range movements {
		l.log[len(movements)-1-i] = m
	}

	l.refreshGaugesLocked()
	l.logger.Info("Ledger loaded",
		zap.Int("products", len(l.products)),
		zap.Int("movements", len(l.log)))
	return l, nil
}

// NextStock applies the movement formula for kind to previous.
// Adjustment treats quantity as the absolute target; decrease and order clamp at zero.
func NextStock(previous, quantity int, kind models.MovementKind) int {
	switch kind {
	case models.MovementIncrease:
		return previous + quantity
	case models.MovementAdjustment:
		return quantity
	default:
		if previous-quantity < 0 {
			return 0
		}
		return previous - quantity
	}
}

// UpdateStock applies one stock mutation and records exactly one movement.
// An unknown product id is absorbed: the result has Found=false and no error.
func (l *Ledger) UpdateStock(ctx context.Context, productID string, quantity int, kind models.MovementKind, reason, performedBy string) (StockUpdate, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.UpdateStock",
		attribute.String("product_id", productID),
		attribute.String("kind", string(kind)),
		attribute.Int("quantity", quantity))
	defer span.End()

	if !kind.Valid() {
		return StockUpdate{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if quantity < 0 {
		return StockUpdate{}, ErrNegativeQuantity
	}

	l.mu.Lock()
	current, ok := l.products[productID]
	if !ok {
		l.mu.Unlock()
		util.StockMutationsIgnored.Inc()
		l.logger.Debug("Stock update for unknown product ignored", zap.String("product_id", productID))
		return StockUpdate{}, nil
	}

	updated := *current
	movement := l.movement(updated, NextStock(updated.Stock, quantity, kind), kind, reason, performedBy)
	updated.Stock = movement.NewStock
	updated.UpdatedAt = movement.Timestamp

	if err := l.repo.Commit(ctx, []models.Product{updated}, []models.Movement{movement}); err != nil {
		l.mu.Unlock()
		util.LedgerCommitFailures.Inc()
		util.SpanError(span, err)
		l.logger.Error("Failed to commit stock update",
			zap.String("product_id", productID),
			zap.Error(err))
		return StockUpdate{}, fmt.Errorf("failed to commit stock update for %s: %w", productID, err)
	}

	l.put(updated)
	l.log = append(l.log, movement)
	l.refreshGaugesLocked()
	l.mu.Unlock()

	signal := l.notify(ctx, updated, movement)
	return StockUpdate{Found: true, Product: updated, Movement: movement, Signal: signal}, nil
}

// UpdateLowStockThreshold sets a product's threshold without recording a movement
func (l *Ledger) UpdateLowStockThreshold(ctx context.Context, productID string, threshold int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.UpdateLowStockThreshold", attribute.String("product_id", productID))
	defer span.End()

	if threshold < 0 {
		return false, ErrNegativeThreshold
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.products[productID]
	if !ok {
		return false, nil
	}

	updated := *current
	updated.LowStockThreshold = threshold
	updated.UpdatedAt = l.now()

	if err := l.repo.Commit(ctx, []models.Product{updated}, nil); err != nil {
		util.LedgerCommitFailures.Inc()
		util.SpanError(span, err)
		return false, fmt.Errorf("failed to commit threshold for %s: %w", productID, err)
	}

	l.put(updated)
	l.refreshGaugesLocked()
	return true, nil
}

// AssignBarcode stores code on the product, rejecting codes held by another product
func (l *Ledger) AssignBarcode(ctx context.Context, productID, code string) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.AssignBarcode", attribute.String("product_id", productID))
	defer span.End()

	if code == "" {
		return models.Product{}, ErrEmptyBarcode
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.products[productID]
	if !ok {
		return models.Product{}, ErrProductNotFound
	}
	if owner, taken := l.barcodes[code]; taken && owner != productID {
		return models.Product{}, fmt.Errorf("%w: %s", ErrBarcodeTaken, code)
	}

	updated := *current
	barcode := code
	updated.Barcode = &barcode
	updated.UpdatedAt = l.now()

	if err := l.repo.Commit(ctx, []models.Product{updated}, nil); err != nil {
		util.LedgerCommitFailures.Inc()
		util.SpanError(span, err)
		return models.Product{}, fmt.Errorf("failed to commit barcode for %s: %w", productID, err)
	}

	l.put(updated)
	return updated, nil
}

// UpsertProduct creates a product with zero stock or updates the catalog
// attributes of an existing one. Stock and barcode are never touched here.
func (l *Ledger) UpsertProduct(ctx context.Context, p models.Product) (models.Product, bool, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.UpsertProduct", attribute.String("product_id", p.ID))
	defer span.End()

	if p.ID == "" || p.Name == "" {
		return models.Product{}, false, fmt.Errorf("%w: id and name are required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return models.Product{}, false, fmt.Errorf("%w: negative price", ErrInvalidProduct)
	}
	if p.LowStockThreshold < 0 {
		return models.Product{}, false, ErrNegativeThreshold
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	updated := models.Product{ID: p.ID}
	current, exists := l.products[p.ID]
	if exists {
		updated = *current
	}
	updated.Name = p.Name
	updated.Price = p.Price
	updated.Category = p.Category
	updated.Subcategory = p.Subcategory
	updated.LowStockThreshold = p.LowStockThreshold
	updated.UpdatedAt = l.now()

	if err := l.repo.Commit(ctx, []models.Product{updated}, nil); err != nil {
		util.LedgerCommitFailures.Inc()
		util.SpanError(span, err)
		return models.Product{}, false, fmt.Errorf("failed to commit product %s: %w", p.ID, err)
	}

	l.put(updated)
	l.refreshGaugesLocked()
	return updated, !exists, nil
}

// Product returns a product by id
func (l *Ledger) Product(id string) (models.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.products[id]
	if !ok {
		return models.Product{}, false
	}
	return *p, true
}

// ProductByBarcode returns the product holding an exact barcode
func (l *Ledger) ProductByBarcode(code string) (models.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.barcodes[code]
	if !ok {
		return models.Product{}, false
	}
	return *l.products[id], true
}

// Products returns all products in catalog order
func (l *Ledger) Products() []models.Product {
	return l.filter(func(models.Product) bool { return true })
}

// ProductMovements returns a product's movements, newest first
func (l *Ledger) ProductMovements(productID string) []models.Movement {
	movements, _ := l.Movements(MovementFilter{ProductID: productID})
	return movements
}

// MovementFilter narrows and pages the movement log. Limit 0 means no limit.
type MovementFilter struct {
	ProductID string
	Kind      models.MovementKind
	Limit     int
	Offset    int
}

// Movements returns matching movements newest first and the total match count
func (l *Ledger) Movements(f MovementFilter) ([]models.Movement, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]models.Movement, 0)
	for i := len(l.log) - 1; i >= 0; i-- {
		m := l.log[i]
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.Kind != "" && m.Kind != f.Kind {
			continue
		}
		matched = append(matched, m)
	}

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return []models.Movement{}, total
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total
}

func (l *Ledger) movement(p models.Product, newStock int, kind models.MovementKind, reason, performedBy string) models.Movement {
	delta := newStock - p.Stock
	if delta < 0 {
		delta = -delta
	}
	return models.Movement{
		ID:            l.newID(),
		ProductID:     p.ID,
		PreviousStock: p.Stock,
		NewStock:      newStock,
		Quantity:      delta,
		Kind:          kind,
		Reason:        reason,
		PerformedBy:   performedBy,
		Timestamp:     l.now(),
	}
}

// put stores p and keeps the catalog order and barcode index in step. Caller holds mu.
func (l *Ledger) put(p models.Product) {
	prev, exists := l.products[p.ID]
	if !exists {
		l.order = append(l.order, p.ID)
	} else if prev.Barcode != nil && prev.BarcodeValue() != p.BarcodeValue() {
		delete(l.barcodes, *prev.Barcode)
	}
	if p.Barcode != nil && *p.Barcode != "" {
		l.barcodes[*p.Barcode] = p.ID
	}

	stored := p
	l.products[p.ID] = &stored
}

func (l *Ledger) notify(ctx context.Context, p models.Product, m models.Movement) models.StockSignal {
	util.StockMovementsTotal.WithLabelValues(string(m.Kind)).Inc()
	l.notifier.MovementRecorded(ctx, m)

	signal := models.SignalFor(p)
	if signal == models.SignalNone {
		return signal
	}

	util.StockSignalsTotal.WithLabelValues(string(signal)).Inc()
	l.logger.Warn("Stock level signal",
		zap.String("product_id", p.ID),
		zap.String("signal", string(signal)),
		zap.Int("stock", p.Stock),
		zap.Int("threshold", p.LowStockThreshold))
	l.notifier.StockLevelChanged(ctx, p, signal)
	return signal
}
