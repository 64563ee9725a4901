package service

import (
	"context"
	"errors"
	"time"

	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrItemNotInCart      = errors.New("item not in cart")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this register")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrPaymentMismatch    = errors.New("payment confirmation does not match order")
	ErrInvalidEmail       = errors.New("invalid customer email")
)

// StorefrontActor is recorded as performedBy for storefront consumption
const StorefrontActor = "storefront"

// SessionStore keeps short-lived JSON documents such as carts
type SessionStore interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker serialises work on a key across processes
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// IdempotencyStore remembers the result id recorded under a client key
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
}

// SaleRepository persists completed POS sales
type SaleRepository interface {
	CreateSale(ctx context.Context, sale *models.Sale, idempotencyKey string) error
	GetSale(ctx context.Context, id string) (*models.Sale, error)
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error)
}

// OrderRepository persists storefront orders
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// EventLog records which consumed events were already applied
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// SalesPublisher emits sale and order events
type SalesPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// Catalog is the read side of the ledger
type Catalog interface {
	Product(id string) (models.Product, bool)
	Products() []models.Product
}

// StockLedger is the ledger surface used by services
type StockLedger interface {
	Catalog
	UpdateStock(ctx context.Context, productID string, quantity int, kind models.MovementKind, reason, performedBy string) (ledger.StockUpdate, error)
	UpsertProduct(ctx context.Context, p models.Product) (models.Product, bool, error)
	AssignBarcode(ctx context.Context, productID, code string) (models.Product, error)
}

// Scanner resolves a scanned code to a product
type Scanner interface {
	OnScan(code string) (models.Product, bool)
}
