package service

import (
	"context"
	"fmt"
	"time"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Fulfillment consumes sale and order events and draws their stock from the ledger
type Fulfillment struct {
	events    EventLog
	orders    OrderRepository
	inventory *InventoryClient
	logger    *zap.Logger
	now       func() time.Time
}

// NewFulfillment creates a new fulfillment handler
func NewFulfillment(events EventLog, orders OrderRepository, inventory *InventoryClient) *Fulfillment {
	return &Fulfillment{
		events:    events,
		orders:    orders,
		inventory: inventory,
		logger:    util.Component("fulfillment"),
		now:       time.Now,
	}
}

// HandleSaleCompleted records the sale's order movements
func (f *Fulfillment) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "Fulfillment.HandleSaleCompleted", attribute.String("sale_id", event.SaleID))
	defer span.End()

	processed, err := f.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		f.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := f.consume(ctx, event.Items, SaleReason(event.SaleID), event.Cashier); err != nil {
		util.SpanError(span, err)
		return err
	}

	f.markProcessed(ctx, event.BaseEvent)
	f.observe(event.Timestamp)

	f.logger.Info("Sale fulfilled", zap.String("sale_id", event.SaleID), zap.Int("items", len(event.Items)))
	return nil
}

// HandleOrderPlaced records the order's movements and marks it FULFILLED
func (f *Fulfillment) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "Fulfillment.HandleOrderPlaced", attribute.String("order_id", event.OrderID))
	defer span.End()

	processed, err := f.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		f.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := f.consume(ctx, event.Items, OrderReason(event.OrderID), StorefrontActor); err != nil {
		util.SpanError(span, err)
		return err
	}

	if err := f.orders.UpdateOrderStatus(ctx, event.OrderID, models.OrderStatusFulfilled); err != nil {
		f.logger.Error("Failed to mark order fulfilled", zap.String("order_id", event.OrderID), zap.Error(err))
	} else {
		util.OrdersFulfilledTotal.Inc()
	}

	f.markProcessed(ctx, event.BaseEvent)
	f.observe(event.Timestamp)

	f.logger.Info("Order fulfilled", zap.String("order_id", event.OrderID))
	return nil
}

// consume returns an error only when nothing was applied, leaving the event
// unprocessed. A partial application is logged and the event still counts as
// processed; replaying it would consume the applied items twice.
func (f *Fulfillment) consume(ctx context.Context, items []models.StockConsumption, reason, performedBy string) error {
	applied, err := f.inventory.Consume(ctx, items, reason, performedBy)
	if err == nil {
		return nil
	}
	if applied == 0 {
		return fmt.Errorf("failed to consume stock: %w", err)
	}
	f.logger.Error("Stock partially consumed",
		zap.String("reason", reason),
		zap.Int("applied", applied),
		zap.Int("items", len(items)),
		zap.Error(err))
	return nil
}

func (f *Fulfillment) markProcessed(ctx context.Context, event models.BaseEvent) {
	if err := f.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		f.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
}

func (f *Fulfillment) observe(published time.Time) {
	if published.IsZero() {
		return
	}
	util.FulfillmentLatency.Observe(f.now().Sub(published).Seconds())
}
