package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"furniture-backoffice/internal/checkout"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles the storefront cart and order placement
type OrderService struct {
	sessions  SessionStore
	orders    OrderRepository
	publisher SalesPublisher
	payments  *PaymentService
	inventory *InventoryClient
	catalog   Catalog
	currency  string
	cartTTL   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	sessions SessionStore,
	orders OrderRepository,
	publisher SalesPublisher,
	payments *PaymentService,
	inventory *InventoryClient,
	catalog Catalog,
	currency string,
	cartTTL time.Duration,
) *OrderService {
	return &OrderService{
		sessions:  sessions,
		orders:    orders,
		publisher: publisher,
		payments:  payments,
		inventory: inventory,
		catalog:   catalog,
		currency:  currency,
		cartTTL:   cartTTL,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	CartID         string         `json:"cart_id" binding:"required"`
	CustomerEmail  string         `json:"customer_email" binding:"required"`
	Payment        PaymentOutcome `json:"payment"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CartView is a cart with its current quote
type CartView struct {
	Cart  *checkout.Cart `json:"cart"`
	Quote checkout.Quote `json:"quote"`
}

func storefrontCartKey(cartID string) string {
	return fmt.Sprintf("store:cart:%s", cartID)
}

// GetCart returns the cart and its quote, empty if none is stored
func (s *OrderService) GetCart(ctx context.Context, cartID string) (*CartView, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: cart, Quote: cart.Quote()}, nil
}

func (s *OrderService) loadCart(ctx context.Context, cartID string) (*checkout.Cart, error) {
	cart := checkout.NewCart(cartID)
	if _, err := s.sessions.GetJSON(ctx, storefrontCartKey(cartID), cart); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

func (s *OrderService) mutateCart(ctx context.Context, cartID string, fn func(*checkout.Cart) error) (*CartView, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.sessions.SetJSON(ctx, storefrontCartKey(cartID), cart, s.cartTTL); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return &CartView{Cart: cart, Quote: cart.Quote()}, nil
}

// AddItem adds quantity units of a product
func (s *OrderService) AddItem(ctx context.Context, cartID, productID string, quantity int) (*CartView, error) {
	p, ok := s.catalog.Product(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return s.mutateCart(ctx, cartID, func(c *checkout.Cart) error {
		return c.Add(p, quantity)
	})
}

// SetQuantity overwrites a line quantity
func (s *OrderService) SetQuantity(ctx context.Context, cartID, productID string, quantity int) (*CartView, error) {
	return s.mutateCart(ctx, cartID, func(c *checkout.Cart) error {
		found, err := c.SetQuantity(productID, quantity)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
		}
		return nil
	})
}

// RemoveItem drops a line
func (s *OrderService) RemoveItem(ctx context.Context, cartID, productID string) (*CartView, error) {
	return s.mutateCart(ctx, cartID, func(c *checkout.Cart) error {
		if !c.Remove(productID) {
			return fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
		}
		return nil
	})
}

// ClearCart deletes the cart
func (s *OrderService) ClearCart(ctx context.Context, cartID string) error {
	return s.sessions.Delete(ctx, storefrontCartKey(cartID))
}

// PlaceOrder prices the cart, verifies payment, stores the order and
// publishes ORDER_PLACED for fulfillment
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder", attribute.String("cart_id", req.CartID))
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existingOrder, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existingOrder != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existingOrder.ID))
		return existingOrder, nil
	}

	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, req.CustomerEmail)
	}

	cart, err := s.loadCart(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if len(cart.Lines) == 0 {
		util.CheckoutRejectedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	for _, line := range cart.Lines {
		if _, ok := s.catalog.Product(line.ProductID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
	}
	if shortages := s.inventory.CheckAvailability(cart.Consumption()); len(shortages) > 0 {
		util.CheckoutRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, fmt.Errorf("%w: %s requested %d, available %d",
			ErrInsufficientStock, shortages[0].ProductID, shortages[0].Requested, shortages[0].Available)
	}

	quote := cart.Quote()
	orderID := uuid.New().String()

	conf, err := s.payments.Verify(ctx, "order "+orderID, quote.Total, s.currency, req.Payment)
	if err != nil {
		util.CheckoutRejectedTotal.WithLabelValues("payment").Inc()
		util.SpanError(span, err)
		return nil, err
	}

	order := &models.Order{
		ID:             orderID,
		CartID:         req.CartID,
		CustomerEmail:  req.CustomerEmail,
		Subtotal:       quote.Subtotal,
		Shipping:       quote.Shipping,
		Discount:       quote.Discount,
		Total:          quote.Total,
		Currency:       s.currency,
		Status:         models.OrderStatusPlaced,
		PaymentID:      conf.ID,
		IdempotencyKey: req.IdempotencyKey,
	}
	items := make([]models.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)))

	s.publishOrder(ctx, order, cart.Consumption())

	if err := s.ClearCart(ctx, req.CartID); err != nil {
		s.logger.Error("Failed to clear cart after order", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}

func (s *OrderService) publishOrder(ctx context.Context, order *models.Order, items []models.StockConsumption) {
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
		Currency:      order.Currency,
		Items:         items,
	}

	err := s.publisher.PublishOrderPlaced(ctx, event)
	if err == nil {
		return
	}

	s.logger.Error("Failed to publish OrderPlaced event, fulfilling inline",
		zap.String("order_id", order.ID),
		zap.Error(err))
	if _, err := s.inventory.Consume(ctx, items, OrderReason(order.ID), StorefrontActor); err != nil {
		s.logger.Error("Inline stock consumption failed", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFulfilled); err != nil {
		s.logger.Error("Failed to mark order fulfilled", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	order.Status = models.OrderStatusFulfilled
	util.OrdersFulfilledTotal.Inc()
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}
