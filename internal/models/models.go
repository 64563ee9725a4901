package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an inventory-tracked catalog item
type Product struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Category          string          `db:"category" json:"category"`
	Subcategory       string          `db:"subcategory" json:"subcategory"`
	Stock             int             `db:"stock" json:"stock"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	Barcode           *string         `db:"barcode" json:"barcode"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports 0 < stock <= threshold
func (p Product) IsLowStock() bool {
	return p.Stock > 0 && p.Stock <= p.LowStockThreshold
}

// IsOutOfStock reports stock == 0
func (p Product) IsOutOfStock() bool {
	return p.Stock == 0
}

// StockValue returns price x stock
func (p Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// BarcodeValue returns the assigned barcode or an empty string
func (p Product) BarcodeValue() string {
	if p.Barcode == nil {
		return ""
	}
	return *p.Barcode
}

// MovementKind classifies a stock mutation
type MovementKind string

// Movement kinds
const (
	MovementIncrease   MovementKind = "increase"
	MovementDecrease   MovementKind = "decrease"
	MovementAdjustment MovementKind = "adjustment"
	MovementOrder      MovementKind = "order"
)

// Valid reports whether k is a known movement kind
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIncrease, MovementDecrease, MovementAdjustment, MovementOrder:
		return true
	}
	return false
}

// Movement is one immutable stock ledger entry
type Movement struct {
	ID            string       `db:"id" json:"id"`
	ProductID     string       `db:"product_id" json:"product_id"`
	PreviousStock int          `db:"previous_stock" json:"previous_stock"`
	NewStock      int          `db:"new_stock" json:"new_stock"`
	Quantity      int          `db:"quantity" json:"quantity"`
	Kind          MovementKind `db:"kind" json:"kind"`
	Reason        string       `db:"reason" json:"reason"`
	PerformedBy   string       `db:"performed_by" json:"performed_by"`
	Timestamp     time.Time    `db:"performed_at" json:"timestamp"`
}

// StockSignal is an advisory notification derived from a resulting stock level
type StockSignal string

// Stock signals
const (
	SignalNone       StockSignal = ""
	SignalLowStock   StockSignal = "LOW_STOCK"
	SignalOutOfStock StockSignal = "OUT_OF_STOCK"
)

// SignalFor derives the signal for a product's current stock
func SignalFor(p Product) StockSignal {
	switch {
	case p.Stock == 0:
		return SignalOutOfStock
	case p.IsLowStock():
		return SignalLowStock
	default:
		return SignalNone
	}
}

// StockConsumption is a (product, quantity) pair to be drawn from the ledger
type StockConsumption struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PaymentConfirmation is the success payload handed over by a payment collaborator
type PaymentConfirmation struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Payment methods
const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodOnline = "online"
)

// SalePayment records how a POS sale was settled
type SalePayment struct {
	Method    string          `json:"method"`
	Received  decimal.Decimal `json:"received"`
	Change    decimal.Decimal `json:"change"`
	Reference string          `json:"reference,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// SaleItem is a line snapshot captured at checkout
type SaleItem struct {
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

// Sale is the immutable record of a completed POS transaction
type Sale struct {
	ID             string          `json:"id"`
	RegisterID     string          `json:"register_id"`
	Items          []SaleItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	Payment        SalePayment     `json:"payment"`
	Cashier        string          `json:"cashier"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Consumption lists the stock drawn by the sale, one entry per product
func (s *Sale) Consumption() []StockConsumption {
	out := make([]StockConsumption, 0, len(s.Items))
	for _, item := range s.Items {
		out = append(out, StockConsumption{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// Order represents a storefront customer order
type Order struct {
	ID             string          `db:"id" json:"id"`
	CartID         string          `db:"cart_id" json:"cart_id"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Shipping       decimal.Decimal `db:"shipping" json:"shipping"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	PaymentID      string          `db:"payment_id" json:"payment_id"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Order statuses
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusFulfilled = "FULFILLED"
	OrderStatusCancelled = "CANCELLED"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
