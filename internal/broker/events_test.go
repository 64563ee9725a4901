package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"furniture-backoffice/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key   string
	event interface{}
}

type fakeWriter struct {
	sent []published
	err  error
}

func (w *fakeWriter) PublishEvent(_ context.Context, key string, event interface{}) error {
	if w.err != nil {
		return w.err
	}
	w.sent = append(w.sent, published{key: key, event: event})
	return nil
}

func TestEventPublisher_RoutesByTopic(t *testing.T) {
	inventory := &fakeWriter{}
	sales := &fakeWriter{}
	ep := NewEventPublisher(inventory, sales)
	ctx := context.Background()

	require.NoError(t, ep.PublishStockMovement(ctx, &models.StockMovementEvent{Movement: models.Movement{ProductID: "FRN-1"}}))
	require.NoError(t, ep.PublishSaleCompleted(ctx, &models.SaleCompletedEvent{SaleID: "s1"}))
	require.NoError(t, ep.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{OrderID: "o1"}))

	require.Len(t, inventory.sent, 1)
	assert.Equal(t, "product-FRN-1", inventory.sent[0].key)
	require.Len(t, sales.sent, 2)
	assert.Equal(t, "sale-s1", sales.sent[0].key)
	assert.Equal(t, "order-o1", sales.sent[1].key)
}

func TestLedgerNotifier(t *testing.T) {
	inventory := &fakeWriter{}
	n := NewLedgerNotifier(NewEventPublisher(inventory, &fakeWriter{}))
	ctx := context.Background()

	n.MovementRecorded(ctx, models.Movement{ID: "m1", ProductID: "FRN-1"})
	n.StockLevelChanged(ctx, models.Product{ID: "FRN-1", Name: "Sofa", Stock: 0, LowStockThreshold: 3}, models.SignalOutOfStock)
	n.StockLevelChanged(ctx, models.Product{ID: "FRN-2", Stock: 2, LowStockThreshold: 3}, models.SignalLowStock)

	require.Len(t, inventory.sent, 3)

	mv, ok := inventory.sent[0].event.(*models.StockMovementEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventTypeStockMovement, mv.EventType)
	assert.NotEmpty(t, mv.EventID)

	out := inventory.sent[1].event.(*models.StockLevelEvent)
	assert.Equal(t, models.EventTypeOutOfStock, out.EventType)
	assert.Equal(t, "Sofa", out.ProductName)

	low := inventory.sent[2].event.(*models.StockLevelEvent)
	assert.Equal(t, models.EventTypeLowStock, low.EventType)
}

func TestLedgerNotifier_SwallowsPublishErrors(t *testing.T) {
	n := NewLedgerNotifier(NewEventPublisher(&fakeWriter{err: errors.New("broker down")}, &fakeWriter{}))

	assert.NotPanics(t, func() {
		n.MovementRecorded(context.Background(), models.Movement{ID: "m1"})
	})
}

func TestEventHandler_Routes(t *testing.T) {
	h := NewEventHandler()

	var gotSale *models.SaleCompletedEvent
	var gotOrder *models.OrderPlacedEvent
	h.OnSaleCompleted(func(_ context.Context, e *models.SaleCompletedEvent) error {
		gotSale = e
		return nil
	})
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		gotOrder = e
		return nil
	})

	sale := models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeSaleCompleted, Timestamp: time.Now()},
		SaleID:    "s1",
		Total:     decimal.RequireFromString("133.50"),
		Items:     []models.StockConsumption{{ProductID: "FRN-1", Quantity: 2}},
	}
	raw, err := json.Marshal(sale)
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))

	require.NotNil(t, gotSale)
	assert.Equal(t, "s1", gotSale.SaleID)
	assert.Equal(t, sale.Items, gotSale.Items)
	assert.True(t, gotSale.Total.Equal(sale.Total))
	assert.Nil(t, gotOrder)

	order := models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeOrderPlaced},
		OrderID:   "o1",
	}
	raw, _ = json.Marshal(order)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	require.NotNil(t, gotOrder)
	assert.Equal(t, "o1", gotOrder.OrderID)

	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)}))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}
