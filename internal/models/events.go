package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeStockMovement = "STOCK_MOVEMENT_RECORDED"
	EventTypeLowStock      = "LOW_STOCK"
	EventTypeOutOfStock    = "OUT_OF_STOCK"
	EventTypeSaleCompleted = "SALE_COMPLETED"
	EventTypeOrderPlaced   = "ORDER_PLACED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockMovementEvent published after each recorded movement
type StockMovementEvent struct {
	BaseEvent
	Movement Movement `json:"movement"`
}

// StockLevelEvent published when a mutation leaves a product low or out of stock
type StockLevelEvent struct {
	BaseEvent
	ProductID         string `json:"product_id"`
	ProductName       string `json:"product_name"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// SaleCompletedEvent published when a POS sale is finalized
type SaleCompletedEvent struct {
	BaseEvent
	SaleID     string             `json:"sale_id"`
	RegisterID string             `json:"register_id"`
	Cashier    string             `json:"cashier"`
	Total      decimal.Decimal    `json:"total"`
	Currency   string             `json:"currency"`
	Items      []StockConsumption `json:"items"`
}

// OrderPlacedEvent published when a storefront order is placed
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string             `json:"order_id"`
	CustomerEmail string             `json:"customer_email"`
	Total         decimal.Decimal    `json:"total"`
	Currency      string             `json:"currency"`
	Items         []StockConsumption `json:"items"`
}
