package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"furniture-backoffice/internal/barcode"
	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type memRepo struct {
	products []models.Product
}

func (r *memRepo) LoadProducts(context.Context) ([]models.Product, error) {
	return r.products, nil
}

func (r *memRepo) LoadMovements(context.Context) ([]models.Movement, error) {
	return nil, nil
}

func (r *memRepo) Commit(context.Context, []models.Product, []models.Movement) error {
	return nil
}

func product(id, name string, stock int, price string) models.Product {
	return models.Product{
		ID:                id,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		Category:          "Living Room",
		Stock:             stock,
		LowStockThreshold: 2,
	}
}

func newTestLedger(t *testing.T, products ...models.Product) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), &memRepo{products: products}, nil)
	require.NoError(t, err)
	return l
}

type fakeSessions struct {
	mu   sync.Mutex
	docs map[string][]byte
	fail error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{docs: make(map[string][]byte)}
}

func (s *fakeSessions) GetJSON(_ context.Context, key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, s.fail
	}
	raw, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (s *fakeSessions) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.docs[key] = raw
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	if l.held[key] {
		return "", nil
	}
	l.held[key] = true
	return "token-" + key, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, _ string) error {
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

type fakeIdempotency struct {
	keys map[string]string
}

func (f *fakeIdempotency) GetIdempotencyKey(_ context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeIdempotency) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	f.keys[key] = value
	return nil
}

type fakeSales struct {
	sales map[string]models.Sale
	byKey map[string]string
}

func newFakeSales() *fakeSales {
	return &fakeSales{sales: make(map[string]models.Sale), byKey: make(map[string]string)}
}

func (f *fakeSales) CreateSale(_ context.Context, sale *models.Sale, idempotencyKey string) error {
	f.sales[sale.ID] = *sale
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = sale.ID
	}
	return nil
}

func (f *fakeSales) GetSaleByIdempotencyKey(_ context.Context, key string) (*models.Sale, error) {
	id, ok := f.byKey[key]
	if !ok {
		return nil, nil
	}
	s := f.sales[id]
	return &s, nil
}

func (f *fakeSales) GetSale(_ context.Context, id string) (*models.Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return nil, errors.New("sale not found")
	}
	return &s, nil
}

type fakeOrders struct {
	orders   map[string]*models.Order
	items    map[string][]models.OrderItem
	byKey    map[string]string
	statuses []string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders: make(map[string]*models.Order),
		items:  make(map[string][]models.OrderItem),
		byKey:  make(map[string]string),
	}
}

func (f *fakeOrders) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	stored := *order
	f.orders[order.ID] = &stored
	f.items[order.ID] = items
	if order.IdempotencyKey != "" {
		f.byKey[order.IdempotencyKey] = order.ID
	}
	return nil
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrders) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	id, ok := f.byKey[key]
	if !ok {
		return nil, nil
	}
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrders) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, orderID, status string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	o.Status = status
	f.statuses = append(f.statuses, status)
	return nil
}

type fakePublisher struct {
	sales  []*models.SaleCompletedEvent
	orders []*models.OrderPlacedEvent
	err    error
}

func (p *fakePublisher) PublishSaleCompleted(_ context.Context, event *models.SaleCompletedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.sales = append(p.sales, event)
	return nil
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.orders = append(p.orders, event)
	return nil
}

type fakeEventLog struct {
	processed map[string]string
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{processed: make(map[string]string)}
}

func (f *fakeEventLog) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeEventLog) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	f.processed[eventID] = eventType
	return nil
}

func newTestScanner(l *ledger.Ledger) *barcode.Directory {
	return barcode.NewDirectory(l, rand.New(rand.NewSource(1)))
}

func confirmation(id, amount, currency string) *models.PaymentConfirmation {
	return &models.PaymentConfirmation{
		ID:       id,
		Status:   "COMPLETED",
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
	}
}
