// Package barcode maps scanned strings to products.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DepartmentPrefix leads every generated barcode
	DepartmentPrefix = "20"
	fragmentDigits   = 6
	suffixRange      = 10000
	maxAttempts      = 10
)

// LookupMode says how a scanned value matched
type LookupMode string

const (
	ModeBarcode LookupMode = "barcode"
	ModeID      LookupMode = "id"
)

// ErrNoFreeBarcode is returned when every generated candidate collided
var ErrNoFreeBarcode = errors.New("no free barcode after retries")

// Catalog is the slice of the ledger the directory reads and writes
type Catalog interface {
	Product(id string) (models.Product, bool)
	ProductByBarcode(code string) (models.Product, bool)
	AssignBarcode(ctx context.Context, productID, code string) (models.Product, error)
}

// Directory generates, assigns and resolves barcodes
type Directory struct {
	catalog Catalog
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDirectory creates a directory over catalog
func NewDirectory(catalog Catalog, rng *rand.Rand) *Directory {
	return &Directory{
		catalog: catalog,
		logger:  util.Component("barcode"),
		rng:     rng,
	}
}

// Fragment extracts the 6-digit numeric fragment of a product id
func Fragment(productID string) string {
	var digits strings.Builder
	for _, r := range productID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) < fragmentDigits {
		s = strings.Repeat("0", fragmentDigits-len(s)) + s
	}
	return s[:fragmentDigits]
}

// Generate builds a candidate barcode for productID. It does not check uniqueness.
func (d *Directory) Generate(productID string) string {
	d.mu.Lock()
	suffix := d.rng.Intn(suffixRange)
	d.mu.Unlock()

	return fmt.Sprintf("%s%s%04d", DepartmentPrefix, Fragment(productID), suffix)
}

// Assign stores code on the product; a code held by another product is rejected
func (d *Directory) Assign(ctx context.Context, productID, code string) (models.Product, error) {
	return d.catalog.AssignBarcode(ctx, productID, strings.TrimSpace(code))
}

// GenerateAndAssign generates a barcode and assigns it, regenerating on collision
func (d *Directory) GenerateAndAssign(ctx context.Context, productID string) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "Directory.GenerateAndAssign", attribute.String("product_id", productID))
	defer span.End()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code := d.Generate(productID)
		p, err := d.catalog.AssignBarcode(ctx, productID, code)
		if err == nil {
			d.logger.Info("Barcode assigned",
				zap.String("product_id", productID),
				zap.String("barcode", code),
				zap.Int("attempt", attempt))
			return p, nil
		}
		if !errors.Is(err, ledger.ErrBarcodeTaken) {
			util.SpanError(span, err)
			return models.Product{}, err
		}
		d.logger.Debug("Barcode collision, regenerating",
			zap.String("product_id", productID),
			zap.String("barcode", code))
	}

	util.SpanError(span, ErrNoFreeBarcode)
	return models.Product{}, fmt.Errorf("%w: product %s", ErrNoFreeBarcode, productID)
}

// Lookup resolves a scanned value: exact barcode match first, then product id
func (d *Directory) Lookup(code string) (models.Product, LookupMode, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		util.BarcodeLookupsTotal.WithLabelValues("miss").Inc()
		return models.Product{}, "", false
	}

	if p, ok := d.catalog.ProductByBarcode(code); ok {
		util.BarcodeLookupsTotal.WithLabelValues(string(ModeBarcode)).Inc()
		return p, ModeBarcode, true
	}
	if p, ok := d.catalog.Product(code); ok {
		util.BarcodeLookupsTotal.WithLabelValues(string(ModeID)).Inc()
		return p, ModeID, true
	}

	util.BarcodeLookupsTotal.WithLabelValues("miss").Inc()
	return models.Product{}, "", false
}

// OnScan is the entry point for any scanner or manual entry source
func (d *Directory) OnScan(code string) (models.Product, bool) {
	p, mode, ok := d.Lookup(code)
	if !ok {
		d.logger.Info("Scanned code matched no product", zap.String("code", code))
		return models.Product{}, false
	}
	d.logger.Debug("Scan resolved",
		zap.String("code", code),
		zap.String("product_id", p.ID),
		zap.String("mode", string(mode)))
	return p, true
}
