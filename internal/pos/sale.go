package pos

import (
	"errors"
	"fmt"
	"time"

	"furniture-backoffice/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientPayment  = errors.New("amount received is less than total")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrMissingConfirmation  = errors.New("payment confirmation required")
)

// Tender is how the customer pays. Cash carries Received; card and online
// carry the confirmation returned by the payment collaborator.
type Tender struct {
	Method       string                      `json:"method"`
	Received     decimal.Decimal             `json:"received"`
	Confirmation *models.PaymentConfirmation `json:"confirmation,omitempty"`
}

// Checkout finalizes the cart into an immutable sale record.
// It does not change the cart or stock.
func Checkout(c *Cart, tender Tender, cashier, currency string, now time.Time) (models.Sale, error) {
	if c.IsEmpty() {
		return models.Sale{}, ErrEmptyCart
	}

	totals := c.Totals()
	payment := models.SalePayment{Method: tender.Method}

	switch tender.Method {
	case models.PaymentMethodCash:
		if tender.Received.LessThan(totals.Total) {
			return models.Sale{}, fmt.Errorf("%w: received %s, total %s",
				ErrInsufficientPayment, tender.Received.StringFixed(2), totals.Total.StringFixed(2))
		}
		payment.Received = tender.Received
		payment.Change = tender.Received.Sub(totals.Total)
	case models.PaymentMethodCard, models.PaymentMethodOnline:
		if tender.Confirmation == nil {
			return models.Sale{}, ErrMissingConfirmation
		}
		payment.Received = totals.Total
		payment.Change = decimal.Zero
		payment.Reference = tender.Confirmation.ID
		payment.Status = tender.Confirmation.Status
	default:
		return models.Sale{}, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, tender.Method)
	}

	items := make([]models.SaleItem, 0, len(c.Items))
	for _, li := range c.Items {
		items = append(items, models.SaleItem{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			LineTotal: li.LineTotal(),
		})
	}

	return models.Sale{
		ID:             uuid.NewString(),
		RegisterID:     c.ID,
		Items:          items,
		Subtotal:       totals.Subtotal,
		DiscountType:   string(c.Discount.Type),
		DiscountValue:  c.Discount.Value,
		DiscountAmount: totals.DiscountAmount,
		Tax:            totals.Tax,
		Total:          totals.Total,
		Currency:       currency,
		Payment:        payment,
		Cashier:        cashier,
		CreatedAt:      now,
	}, nil
}
