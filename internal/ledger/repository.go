package ledger

import (
	"context"
	"errors"

	"furniture-backoffice/internal/models"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidKind       = errors.New("invalid movement kind")
	ErrNegativeQuantity  = errors.New("quantity must not be negative")
	ErrNegativeThreshold = errors.New("low-stock threshold must not be negative")
	ErrInvalidBulkMode   = errors.New("invalid bulk adjustment mode")
	ErrFractionalBulk    = errors.New("fixed bulk adjustments take whole units")
	ErrBarcodeTaken      = errors.New("barcode already assigned to another product")
	ErrEmptyBarcode      = errors.New("barcode must not be empty")
	ErrInvalidProduct    = errors.New("invalid product")
)

// Repository persists the ledger's two collections.
// LoadMovements returns movements newest first.
// Commit upserts the given products and appends the given movements atomically.
type Repository interface {
	LoadProducts(ctx context.Context) ([]models.Product, error)
	LoadMovements(ctx context.Context) ([]models.Movement, error)
	Commit(ctx context.Context, products []models.Product, movements []models.Movement) error
}

// Notifier receives the ledger's advisory side-channel notifications.
// Implementations must not block for long; failures are theirs to log.
type Notifier interface {
	MovementRecorded(ctx context.Context, movement models.Movement)
	StockLevelChanged(ctx context.Context, product models.Product, signal models.StockSignal)
}

type nopNotifier struct{}

func (nopNotifier) MovementRecorded(context.Context, models.Movement) {}

func (nopNotifier) StockLevelChanged(context.Context, models.Product, models.StockSignal) {}
