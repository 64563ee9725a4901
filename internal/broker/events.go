package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer publishes one keyed event; *Producer implements it
type Writer interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	inventory Writer
	sales     Writer
}

// NewEventPublisher creates a publisher writing stock events to inventory
// and sale/order events to sales
func NewEventPublisher(inventory, sales Writer) *EventPublisher {
	return &EventPublisher{inventory: inventory, sales: sales}
}

// PublishStockMovement publishes STOCK_MOVEMENT_RECORDED
func (ep *EventPublisher) PublishStockMovement(ctx context.Context, event *models.StockMovementEvent) error {
	return ep.inventory.PublishEvent(ctx, productKey(event.Movement.ProductID), event)
}

// PublishStockLevel publishes LOW_STOCK or OUT_OF_STOCK
func (ep *EventPublisher) PublishStockLevel(ctx context.Context, event *models.StockLevelEvent) error {
	return ep.inventory.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishSaleCompleted publishes SALE_COMPLETED
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	return ep.sales.PublishEvent(ctx, fmt.Sprintf("sale-%s", event.SaleID), event)
}

// PublishOrderPlaced publishes ORDER_PLACED
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.sales.PublishEvent(ctx, fmt.Sprintf("order-%s", event.OrderID), event)
}

func productKey(id string) string {
	return fmt.Sprintf("product-%s", id)
}

// EventHandler handles incoming events
type EventHandler struct {
	logger          *zap.Logger
	onSaleCompleted func(context.Context, *models.SaleCompletedEvent) error
	onOrderPlaced   func(context.Context, *models.OrderPlacedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Component("events")}
}

// OnSaleCompleted registers a handler for SaleCompleted events
func (eh *EventHandler) OnSaleCompleted(handler func(context.Context, *models.SaleCompletedEvent) error) {
	eh.onSaleCompleted = handler
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSaleCompleted:
		if eh.onSaleCompleted != nil {
			var event models.SaleCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCompleted event: %w", err)
			}
			return eh.onSaleCompleted(ctx, &event)
		}

	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
