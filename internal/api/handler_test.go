package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"furniture-backoffice/internal/auth"
	"furniture-backoffice/internal/barcode"
	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/service"
	"furniture-backoffice/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct{ products []models.Product }

func (r *memRepo) LoadProducts(context.Context) ([]models.Product, error)   { return r.products, nil }
func (r *memRepo) LoadMovements(context.Context) ([]models.Movement, error) { return nil, nil }
func (r *memRepo) Commit(context.Context, []models.Product, []models.Movement) error {
	return nil
}

// memKV backs sessions, locks and idempotency keys
type memKV struct{ docs map[string][]byte }

func (m *memKV) GetJSON(_ context.Context, key string, v any) (bool, error) {
	raw, ok := m.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *memKV) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	m.docs[key] = raw
	return err
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.docs, key)
	return nil
}

func (m *memKV) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, held := m.docs["lock:"+key]; held {
		return "", nil
	}
	m.docs["lock:"+key] = []byte("1")
	return "t", nil
}

func (m *memKV) ReleaseLock(_ context.Context, key, _ string) error {
	delete(m.docs, "lock:"+key)
	return nil
}

func (m *memKV) GetIdempotencyKey(_ context.Context, key string) (string, error) {
	return string(m.docs["idem:"+key]), nil
}

func (m *memKV) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	m.docs["idem:"+key] = []byte(value)
	return nil
}

type memSales struct{ sales map[string]models.Sale }

func (m *memSales) CreateSale(_ context.Context, sale *models.Sale, _ string) error {
	m.sales[sale.ID] = *sale
	return nil
}

func (m *memSales) GetSaleByIdempotencyKey(context.Context, string) (*models.Sale, error) {
	return nil, nil
}

func (m *memSales) GetSale(_ context.Context, id string) (*models.Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

type memOrders struct{ orders map[string]models.Order }

func (m *memOrders) CreateOrder(_ context.Context, o *models.Order, _ []models.OrderItem) error {
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) GetOrderByIdempotencyKey(context.Context, string) (*models.Order, error) {
	return nil, nil
}

func (m *memOrders) GetOrderItemsByOrderID(context.Context, string) ([]models.OrderItem, error) {
	return nil, nil
}

func (m *memOrders) UpdateOrderStatus(context.Context, string, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishSaleCompleted(context.Context, *models.SaleCompletedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

type testServer struct {
	router *gin.Engine
	ledger *ledger.Ledger
	tokens *auth.JWTManager
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l, err := ledger.New(context.Background(), &memRepo{products: []models.Product{
		{ID: "chair-1", Name: "Oak Chair", Price: decimal.NewFromInt(100), Category: "Dining", Stock: 5, LowStockThreshold: 5},
		{ID: "sofa-1", Name: "Linen Sofa", Price: decimal.NewFromInt(1200), Category: "Living Room", Stock: 0, LowStockThreshold: 2},
	}}, nil)
	require.NoError(t, err)

	kv := &memKV{docs: make(map[string][]byte)}
	directory := barcode.NewDirectory(l, rand.New(rand.NewSource(7)))
	inventory := service.NewInventoryClient(l)
	payments := service.NewPaymentService()

	users := auth.NewDirectory(4)
	require.NoError(t, users.Add("admin", "admin-pass", auth.RoleAdmin))
	require.NoError(t, users.Add("cashier", "cashier-pass", auth.RoleCashier))
	tokens := auth.NewJWTManager("test-secret", time.Hour)

	h := NewHandler(Deps{
		Ledger:   l,
		Barcodes: directory,
		Sales: service.NewSaleService(kv, kv, kv, &memSales{sales: map[string]models.Sale{}}, nopPublisher{},
			payments, inventory, l, directory,
			service.SaleConfig{Currency: "USD", CartTTL: time.Hour, LockTTL: time.Second, IdempotencyTTL: time.Hour}),
		Orders:  service.NewOrderService(kv, &memOrders{orders: map[string]models.Order{}}, nopPublisher{}, payments, inventory, l, "USD", time.Hour),
		Catalog: service.NewCatalogService(l),
		Users:   users,
		Tokens:  tokens,
		Checks:  checks,
	})

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, ledger: l, tokens: tokens}
}

func (s *testServer) token(t *testing.T, username string, role auth.Role) string {
	t.Helper()
	token, _, err := s.tokens.Generate(auth.User{Username: username, Role: role})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	ok := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, ok.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestLoginAndRoleGating(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "cashier", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "cashier", "password": "cashier-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/admin/inventory/products", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/admin/inventory/products", token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/pos/registers/r1/cart", token, nil).Code)
}

func TestUpdateStockValidation(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.token(t, "admin", auth.RoleAdmin)
	path := "/api/v1/admin/inventory/products/chair-1/stock"

	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"missing reason", gin.H{"kind": "increase", "quantity": 3}, http.StatusBadRequest},
		{"zero increase", gin.H{"kind": "increase", "quantity": 0, "reason": "restock"}, http.StatusBadRequest},
		{"negative", gin.H{"kind": "decrease", "quantity": -1, "reason": "damage"}, http.StatusBadRequest},
		{"unknown kind", gin.H{"kind": "teleport", "quantity": 1, "reason": "x"}, http.StatusBadRequest},
		{"missing quantity", gin.H{"kind": "increase", "reason": "restock"}, http.StatusBadRequest},
		{"increase", gin.H{"kind": "increase", "quantity": 3, "reason": "restock"}, http.StatusOK},
		{"adjust to zero", gin.H{"kind": "adjustment", "quantity": 0, "reason": "count"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(t, http.MethodPost, path, admin, tt.body).Code)
		})
	}

	p, _ := s.ledger.Product("chair-1")
	assert.Equal(t, 0, p.Stock)
	movements := s.ledger.ProductMovements("chair-1")
	require.Len(t, movements, 2)
	assert.Equal(t, "admin", movements[0].PerformedBy)

	w := s.do(t, http.MethodPost, "/api/v1/admin/inventory/products/ghost/stock", admin,
		gin.H{"kind": "increase", "quantity": 1, "reason": "restock"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryQueries(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.token(t, "admin", auth.RoleAdmin)

	w := s.do(t, http.MethodGet, "/api/v1/admin/inventory/products?status=low", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/inventory/products?status=out", admin, nil)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/inventory/valuation", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "500", decode(t, w)["total"])

	w = s.do(t, http.MethodPut, "/api/v1/admin/inventory/products/chair-1/threshold", admin, gin.H{"threshold": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBarcodeAssignAndLookup(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.token(t, "admin", auth.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/admin/inventory/products/chair-1/barcode", admin, gin.H{"code": "2000000012345"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/inventory/products/sofa-1/barcode", admin, gin.H{"code": "2000000012345"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/inventory/products/sofa-1/barcode", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code, _ := decode(t, w)["barcode"].(string)
	assert.True(t, strings.HasPrefix(code, barcode.DepartmentPrefix))
	assert.Len(t, code, 12)

	w = s.do(t, http.MethodGet, "/api/v1/admin/inventory/barcodes/2000000012345", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "barcode", decode(t, w)["mode"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/inventory/barcodes/unknown", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkAdjust(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.token(t, "admin", auth.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/admin/inventory/bulk-adjust", admin,
		gin.H{"product_ids": []string{"chair-1"}, "mode": "increase", "value": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/inventory/bulk-adjust", admin,
		gin.H{"product_ids": []string{"chair-1"}, "mode": "increase", "value": 2.9, "reason": "delivery"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/inventory/bulk-adjust", admin,
		gin.H{"product_ids": []string{"chair-1", "ghost"}, "mode": "percentage", "value": 20, "reason": "season"})
	require.Equal(t, http.StatusOK, w.Code)

	p, _ := s.ledger.Product("chair-1")
	assert.Equal(t, 6, p.Stock)
}

func TestCatalogExportImport(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.token(t, "admin", auth.RoleAdmin)

	w := s.do(t, http.MethodGet, "/api/v1/admin/inventory/export?format=csv", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "chair-1,Oak Chair,100.00")

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/admin/inventory/export?format=pdf", admin, nil).Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Product ID,Name,Price,Stock\nchair-1,Oak Chair,110,9\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/inventory/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["adjusted"])

	p, _ := s.ledger.Product("chair-1")
	assert.Equal(t, 9, p.Stock)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(110)))
}

func TestPOSFlow(t *testing.T) {
	s := newTestServer(t, nil)
	cashier := s.token(t, "cashier", auth.RoleCashier)
	base := "/api/v1/pos/registers/r1/cart"

	w := s.do(t, http.MethodPost, base+"/scan", cashier, gin.H{"code": "chair-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, base+"/discount", cashier, gin.H{"type": "fixed", "value": 10})
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode(t, w)["totals"].(map[string]any)
	assert.Equal(t, "97.2", totals["total"])

	w = s.do(t, http.MethodPost, base+"/checkout", cashier, gin.H{"method": "cash", "received": 50})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, base+"/checkout", cashier, gin.H{"method": "cheque"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/checkout", cashier, gin.H{"method": "cash", "received": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	sale := decode(t, w)
	assert.Equal(t, "cashier", sale["cashier"])
	assert.Equal(t, "2.8", sale["payment"].(map[string]any)["change"])
	printed := sale["receipt"].(map[string]any)
	assert.Equal(t, "$97.20", printed["total"])
	assert.Equal(t, "$7.20", printed["tax"])
	assert.Equal(t, "$2.80", printed["change"])

	w = s.do(t, http.MethodGet, "/api/v1/pos/sales/"+sale["id"].(string), cashier, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "$97.20", decode(t, w)["receipt"].(map[string]any)["total"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/pos/sales/missing", cashier, nil).Code)

	w = s.do(t, http.MethodPost, base+"/checkout", cashier, gin.H{"method": "cash", "received": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStorefrontFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/carts/c1/items", "", gin.H{"product_id": "chair-1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/carts/c1/quote", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decode(t, w)
	assert.Equal(t, "400", quote["total"])
	assert.Equal(t, false, quote["free_shipping"])

	w = s.do(t, http.MethodPost, "/api/v1/carts/c1/items", "", gin.H{"product_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/orders", "", gin.H{
		"cart_id":        "c1",
		"customer_email": "jane@example.com",
		"payment":        gin.H{"error": "card declined"},
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/orders", "", gin.H{
		"cart_id":        "c1",
		"customer_email": "jane@example.com",
		"payment": gin.H{"confirmation": gin.H{
			"id": "pay-1", "status": "COMPLETED", "amount": "400.00", "currency": "USD",
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode(t, w)
	assert.Equal(t, models.OrderStatusPlaced, order["status"])

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+order["id"].(string), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/orders/nope", "", nil).Code)
}
