package worker

import (
	"context"

	"furniture-backoffice/internal/broker"
	"furniture-backoffice/internal/service"
	"furniture-backoffice/internal/util"

	"go.uber.org/zap"
)

// FulfillmentWorker consumes the sales topic and applies sale and order
// consumption to the stock ledger
type FulfillmentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewFulfillmentWorker creates a new fulfillment worker
func NewFulfillmentWorker(consumer *broker.Consumer, fulfillment *service.Fulfillment) *FulfillmentWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnSaleCompleted(fulfillment.HandleSaleCompleted)
	eventHandler.OnOrderPlaced(fulfillment.HandleOrderPlaced)

	return &FulfillmentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Component("worker"),
	}
}

// Start blocks consuming until ctx is cancelled
func (w *FulfillmentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting fulfillment worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the consumer
func (w *FulfillmentWorker) Stop() error {
	w.logger.Info("Stopping fulfillment worker")
	return w.consumer.Close()
}
