package broker

import (
	"context"
	"time"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// LedgerNotifier forwards ledger notifications to the inventory topic.
// Publishing is advisory: failures are logged and never reach the ledger caller.
type LedgerNotifier struct {
	publisher *EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerNotifier creates a notifier publishing through publisher
func NewLedgerNotifier(publisher *EventPublisher) *LedgerNotifier {
	return &LedgerNotifier{
		publisher: publisher,
		logger:    util.Component("ledger.notifier"),
		now:       time.Now,
	}
}

// MovementRecorded publishes STOCK_MOVEMENT_RECORDED
func (n *LedgerNotifier) MovementRecorded(ctx context.Context, movement models.Movement) {
	ctx, cancel := detached(ctx)
	defer cancel()

	event := &models.StockMovementEvent{
		BaseEvent: n.base(models.EventTypeStockMovement),
		Movement:  movement,
	}
	if err := n.publisher.PublishStockMovement(ctx, event); err != nil {
		n.logger.Warn("Failed to publish stock movement",
			zap.String("movement_id", movement.ID),
			zap.Error(err))
	}
}

// StockLevelChanged publishes LOW_STOCK or OUT_OF_STOCK
func (n *LedgerNotifier) StockLevelChanged(ctx context.Context, product models.Product, signal models.StockSignal) {
	ctx, cancel := detached(ctx)
	defer cancel()

	eventType := models.EventTypeLowStock
	if signal == models.SignalOutOfStock {
		eventType = models.EventTypeOutOfStock
	}

	event := &models.StockLevelEvent{
		BaseEvent:         n.base(eventType),
		ProductID:         product.ID,
		ProductName:       product.Name,
		Stock:             product.Stock,
		LowStockThreshold: product.LowStockThreshold,
	}
	if err := n.publisher.PublishStockLevel(ctx, event); err != nil {
		n.logger.Warn("Failed to publish stock level signal",
			zap.String("product_id", product.ID),
			zap.String("signal", string(signal)),
			zap.Error(err))
	}
}

func (n *LedgerNotifier) base(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: n.now(),
	}
}

// detached keeps trace values but not the request's cancellation
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
}
