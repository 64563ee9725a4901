package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/pos"
	"furniture-backoffice/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SaleConfig tunes SaleService
type SaleConfig struct {
	Currency       string
	CartTTL        time.Duration
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

// SaleService runs POS registers: one cart per register, checkout into a sale
type SaleService struct {
	sessions    SessionStore
	locks       Locker
	idempotency IdempotencyStore
	sales       SaleRepository
	publisher   SalesPublisher
	payments    *PaymentService
	inventory   *InventoryClient
	catalog     Catalog
	scanner     Scanner
	cfg         SaleConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewSaleService creates a new sale service
func NewSaleService(
	sessions SessionStore,
	locks Locker,
	idempotency IdempotencyStore,
	sales SaleRepository,
	publisher SalesPublisher,
	payments *PaymentService,
	inventory *InventoryClient,
	catalog Catalog,
	scanner Scanner,
	cfg SaleConfig,
) *SaleService {
	return &SaleService{
		sessions:    sessions,
		locks:       locks,
		idempotency: idempotency,
		sales:       sales,
		publisher:   publisher,
		payments:    payments,
		inventory:   inventory,
		catalog:     catalog,
		scanner:     scanner,
		cfg:         cfg,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// SaleCheckoutRequest is the tender presented at the register
type SaleCheckoutRequest struct {
	Method   string          `json:"method" binding:"required,oneof=cash card online"`
	Received decimal.Decimal `json:"received"`
	Payment  PaymentOutcome  `json:"payment"`
}

func cartKey(registerID string) string {
	return fmt.Sprintf("pos:cart:%s", registerID)
}

// GetCart returns the register's cart, empty if none is stored
func (s *SaleService) GetCart(ctx context.Context, registerID string) (*pos.Cart, error) {
	cart := pos.NewCart(registerID)
	if _, err := s.sessions.GetJSON(ctx, cartKey(registerID), cart); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

func (s *SaleService) saveCart(ctx context.Context, cart *pos.Cart) error {
	if err := s.sessions.SetJSON(ctx, cartKey(cart.ID), cart, s.cfg.CartTTL); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// lockRegister takes the register lock shared by cart edits and checkout
func (s *SaleService) lockRegister(ctx context.Context, registerID string) (func(), error) {
	key := "pos:" + registerID
	token, err := s.locks.AcquireLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire register lock: %w", err)
	}
	if token == "" {
		return nil, ErrCheckoutInProgress
	}
	return func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("Failed to release register lock", zap.String("register_id", registerID), zap.Error(err))
		}
	}, nil
}

// mutate loads the cart, applies fn and saves it under the register lock
func (s *SaleService) mutate(ctx context.Context, registerID string, fn func(*pos.Cart) error) (*pos.Cart, error) {
	unlock, err := s.lockRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.GetCart(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.saveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity units of a product by id
func (s *SaleService) AddItem(ctx context.Context, registerID, productID string, quantity int) (*pos.Cart, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.AddItem", attribute.String("register_id", registerID))
	defer span.End()

	p, ok := s.catalog.Product(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return s.mutate(ctx, registerID, func(c *pos.Cart) error {
		addUnits(c, p, quantity)
		return nil
	})
}

// Scan adds one unit of whatever product the scanned code resolves to
func (s *SaleService) Scan(ctx context.Context, registerID, code string) (*pos.Cart, models.Product, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.Scan", attribute.String("register_id", registerID))
	defer span.End()

	p, ok := s.scanner.OnScan(code)
	if !ok {
		return nil, models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	cart, err := s.mutate(ctx, registerID, func(c *pos.Cart) error {
		c.Add(p)
		return nil
	})
	return cart, p, err
}

// UpdateQuantity sets a line quantity; non-positive quantities leave the cart unchanged
func (s *SaleService) UpdateQuantity(ctx context.Context, registerID, productID string, quantity int) (*pos.Cart, error) {
	return s.mutate(ctx, registerID, func(c *pos.Cart) error {
		if quantity <= 0 {
			return nil
		}
		if !c.UpdateQuantity(productID, quantity) {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
		}
		return nil
	})
}

// RemoveItem drops a line
func (s *SaleService) RemoveItem(ctx context.Context, registerID, productID string) (*pos.Cart, error) {
	return s.mutate(ctx, registerID, func(c *pos.Cart) error {
		if !c.Remove(productID) {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
		}
		return nil
	})
}

// ClearCart empties the cart, keeping the discount type
func (s *SaleService) ClearCart(ctx context.Context, registerID string) (*pos.Cart, error) {
	return s.mutate(ctx, registerID, func(c *pos.Cart) error {
		c.Clear()
		return nil
	})
}

// SetDiscount replaces the cart discount
func (s *SaleService) SetDiscount(ctx context.Context, registerID string, t pos.DiscountType, value decimal.Decimal) (*pos.Cart, error) {
	return s.mutate(ctx, registerID, func(c *pos.Cart) error {
		return c.SetDiscount(t, value)
	})
}

// Checkout settles the register's cart. A repeated idempotency key returns
// the sale recorded the first time. On success the cart is cleared and the
// sale's stock consumption is published for fulfillment.
func (s *SaleService) Checkout(ctx context.Context, registerID string, req SaleCheckoutRequest, cashier, idempotencyKey string) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.Checkout",
		attribute.String("register_id", registerID),
		attribute.String("method", req.Method))
	defer span.End()

	if idempotencyKey != "" {
		if sale, err := s.replay(ctx, idempotencyKey); err != nil || sale != nil {
			return sale, err
		}
	}

	unlock, err := s.lockRegister(ctx, registerID)
	if errors.Is(err, ErrCheckoutInProgress) {
		util.CheckoutRejectedTotal.WithLabelValues("locked").Inc()
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.GetCart(ctx, registerID)
	if err != nil {
		return nil, err
	}

	tender := pos.Tender{Method: req.Method, Received: req.Received}
	if req.Method != models.PaymentMethodCash && !cart.IsEmpty() {
		conf, err := s.payments.Verify(ctx, "register "+registerID, cart.Totals().Total, s.cfg.Currency, req.Payment)
		if err != nil {
			util.CheckoutRejectedTotal.WithLabelValues("payment").Inc()
			util.SpanError(span, err)
			return nil, err
		}
		tender.Confirmation = conf
	}

	sale, err := pos.Checkout(cart, tender, cashier, s.cfg.Currency, s.now())
	if err != nil {
		util.CheckoutRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	if shortages := s.inventory.CheckAvailability(sale.Consumption()); len(shortages) > 0 {
		s.logger.Warn("POS sale exceeds recorded stock",
			zap.String("sale_id", sale.ID),
			zap.Any("shortages", shortages))
	}

	if err := s.sales.CreateSale(ctx, &sale, idempotencyKey); err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to store sale: %w", err)
	}

	if idempotencyKey != "" {
		if err := s.idempotency.SetIdempotencyKey(ctx, saleIdemKey(idempotencyKey), sale.ID, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to record idempotency key", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}

	s.publishSale(ctx, &sale)

	cart.Clear()
	if err := s.saveCart(ctx, cart); err != nil {
		s.logger.Error("Failed to clear cart after sale", zap.String("sale_id", sale.ID), zap.Error(err))
	}

	util.SalesCompletedTotal.WithLabelValues(sale.Payment.Method).Inc()
	util.SaleAmount.Observe(sale.Total.InexactFloat64())
	s.logger.Info("Sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("register_id", registerID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("method", sale.Payment.Method))

	return &sale, nil
}

// GetSale retrieves a completed sale
func (s *SaleService) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	return s.sales.GetSale(ctx, id)
}

// replay returns the sale already recorded under key. Redis is checked
// first; the sales table is the fallback when the key expired or was never set.
func (s *SaleService) replay(ctx context.Context, key string) (*models.Sale, error) {
	saleID, err := s.idempotency.GetIdempotencyKey(ctx, saleIdemKey(key))
	if err != nil {
		s.logger.Warn("Idempotency cache lookup failed, checking sales", zap.String("idempotency_key", key), zap.Error(err))
	}
	if saleID != "" {
		s.logger.Info("Duplicate checkout request detected",
			zap.String("idempotency_key", key),
			zap.String("sale_id", saleID))
		return s.sales.GetSale(ctx, saleID)
	}

	sale, err := s.sales.GetSaleByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if sale != nil {
		s.logger.Info("Duplicate checkout request detected in sales",
			zap.String("idempotency_key", key),
			zap.String("sale_id", sale.ID))
	}
	return sale, nil
}

// publishSale hands the consumption to fulfillment, applying it inline when
// the event cannot be published
func (s *SaleService) publishSale(ctx context.Context, sale *models.Sale) {
	event := &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCompleted,
			Timestamp: s.now(),
		},
		SaleID:     sale.ID,
		RegisterID: sale.RegisterID,
		Cashier:    sale.Cashier,
		Total:      sale.Total,
		Currency:   sale.Currency,
		Items:      sale.Consumption(),
	}

	err := s.publisher.PublishSaleCompleted(ctx, event)
	if err == nil {
		return
	}

	s.logger.Error("Failed to publish SaleCompleted event, consuming stock inline",
		zap.String("sale_id", sale.ID),
		zap.Error(err))
	if _, err := s.inventory.Consume(ctx, event.Items, SaleReason(sale.ID), sale.Cashier); err != nil {
		s.logger.Error("Inline stock consumption failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
}

func saleIdemKey(key string) string {
	return "sale:" + key
}

func addUnits(c *pos.Cart, p models.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	c.Add(p)
	if quantity == 1 {
		return
	}
	for _, li := range c.Items {
		if li.ProductID == p.ID {
			c.UpdateQuantity(p.ID, li.Quantity+quantity-1)
			return
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, pos.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, pos.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, pos.ErrMissingConfirmation):
		return "missing_confirmation"
	default:
		return "invalid"
	}
}

// SaleReason is the movement reason recorded for a POS sale
func SaleReason(saleID string) string {
	return "POS sale " + saleID
}

// OrderReason is the movement reason recorded for a storefront order
func OrderReason(orderID string) string {
	return "Order " + orderID
}
