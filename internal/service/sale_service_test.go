package service

import (
	"context"
	"testing"
	"time"

	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/pos"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saleFixture struct {
	svc       *SaleService
	ledger    *ledger.Ledger
	sessions  *fakeSessions
	locks     *fakeLocker
	sales     *fakeSales
	idem      *fakeIdempotency
	publisher *fakePublisher
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()
	l := newTestLedger(t,
		product("chair-1", "Oak Chair", 10, "100.00"),
		product("sofa-1", "Linen Sofa", 1, "1200.00"),
	)
	_, err := l.AssignBarcode(context.Background(), "chair-1", "2000000011234")
	require.NoError(t, err)

	f := &saleFixture{
		ledger:    l,
		sessions:  newFakeSessions(),
		locks:     newFakeLocker(),
		sales:     newFakeSales(),
		idem:      &fakeIdempotency{keys: make(map[string]string)},
		publisher: &fakePublisher{},
	}
	inventory := NewInventoryClient(l)
	f.svc = NewSaleService(
		f.sessions,
		f.locks,
		f.idem,
		f.sales,
		f.publisher,
		NewPaymentService(),
		inventory,
		l,
		newTestScanner(l),
		SaleConfig{Currency: "USD", CartTTL: time.Hour, LockTTL: time.Second, IdempotencyTTL: time.Hour},
	)
	return f
}

func cash(received string) SaleCheckoutRequest {
	return SaleCheckoutRequest{Method: models.PaymentMethodCash, Received: decimal.RequireFromString(received)}
}

func TestSaleService_CartOperations(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, "r1", "chair-1", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	cart, p, err := f.svc.Scan(ctx, "r1", " 2000000011234 ")
	require.NoError(t, err)
	assert.Equal(t, "chair-1", p.ID)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	cart, _, err = f.svc.Scan(ctx, "r1", "sofa-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	_, _, err = f.svc.Scan(ctx, "r1", "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)

	cart, err = f.svc.UpdateQuantity(ctx, "r1", "chair-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	cart, err = f.svc.UpdateQuantity(ctx, "r1", "chair-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	_, err = f.svc.UpdateQuantity(ctx, "r1", "missing", 2)
	assert.ErrorIs(t, err, ErrItemNotInCart)

	cart, err = f.svc.SetDiscount(ctx, "r1", pos.DiscountFixed, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, pos.DiscountFixed, cart.Discount.Type)

	_, err = f.svc.SetDiscount(ctx, "r1", pos.DiscountFixed, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, pos.ErrInvalidDiscount)

	cart, err = f.svc.RemoveItem(ctx, "r1", "sofa-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	cart, err = f.svc.ClearCart(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, pos.DiscountFixed, cart.Discount.Type)

	other, err := f.svc.GetCart(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestSaleService_CashCheckout(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	sale, err := f.svc.Checkout(ctx, "r1", cash("150"), "alice", "")
	require.NoError(t, err)

	assert.True(t, sale.Total.Equal(decimal.RequireFromString("108")))
	assert.True(t, sale.Payment.Change.Equal(decimal.RequireFromString("42")))
	assert.Equal(t, "alice", sale.Cashier)
	assert.Contains(t, f.sales.sales, sale.ID)

	require.Len(t, f.publisher.sales, 1)
	event := f.publisher.sales[0]
	assert.Equal(t, sale.ID, event.SaleID)
	assert.Equal(t, []models.StockConsumption{{ProductID: "chair-1", Quantity: 1}}, event.Items)

	cart, err := f.svc.GetCart(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Contains(t, f.locks.released, "pos:r1")

	// consumption is left to fulfillment
	p, _ := f.ledger.Product("chair-1")
	assert.Equal(t, 10, p.Stock)
}

func TestSaleService_CheckoutRejections(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, "r1", cash("10"), "alice", "")
	assert.ErrorIs(t, err, pos.ErrEmptyCart)

	_, err = f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "r1", cash("100"), "alice", "")
	assert.ErrorIs(t, err, pos.ErrInsufficientPayment)

	_, err = f.svc.Checkout(ctx, "r1", SaleCheckoutRequest{
		Method:  models.PaymentMethodCard,
		Payment: PaymentOutcome{Error: "card declined"},
	}, "alice", "")
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	cart, err := f.svc.GetCart(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty())
	assert.Empty(t, f.publisher.sales)
}

func TestSaleService_CardCheckout(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "r1", SaleCheckoutRequest{
		Method:  models.PaymentMethodCard,
		Payment: PaymentOutcome{Confirmation: confirmation("pay-1", "100.00", "USD")},
	}, "alice", "")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	sale, err := f.svc.Checkout(ctx, "r1", SaleCheckoutRequest{
		Method:  models.PaymentMethodCard,
		Payment: PaymentOutcome{Confirmation: confirmation("pay-2", "108.00", "USD")},
	}, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "pay-2", sale.Payment.Reference)
	assert.True(t, sale.Payment.Change.IsZero())
}

func TestSaleService_CheckoutIsIdempotent(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	first, err := f.svc.Checkout(ctx, "r1", cash("200"), "alice", "key-1")
	require.NoError(t, err)

	second, err := f.svc.Checkout(ctx, "r1", cash("200"), "alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.publisher.sales, 1)
	assert.Len(t, f.sales.sales, 1)
}

func TestSaleService_CheckoutReplaysFromSalesWhenCacheMisses(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	first, err := f.svc.Checkout(ctx, "r1", cash("200"), "alice", "key-1")
	require.NoError(t, err)

	// cache entry expired or was never written
	f.idem.keys = make(map[string]string)

	second, err := f.svc.Checkout(ctx, "r1", cash("200"), "alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.sales.sales, 1)
	assert.Len(t, f.publisher.sales, 1)
}

func TestSaleService_CartEditsWaitForCheckout(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	f.locks.held["pos:r1"] = true

	_, _, err = f.svc.Scan(ctx, "r1", "sofa-1")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.svc.AddItem(ctx, "r1", "sofa-1", 1)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = f.svc.ClearCart(ctx, "r1")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	delete(f.locks.held, "pos:r1")
	cart, err := f.svc.GetCart(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "chair-1", cart.Items[0].ProductID)

	_, err = f.svc.AddItem(ctx, "r1", "sofa-1", 1)
	require.NoError(t, err)
	assert.False(t, f.locks.held["pos:r1"], "lock released after edit")
}

func TestSaleService_CheckoutLocked(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 1)
	require.NoError(t, err)

	f.locks.held["pos:r1"] = true
	_, err = f.svc.Checkout(ctx, "r1", cash("200"), "alice", "")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
}

func TestSaleService_PublishFailureConsumesInline(t *testing.T) {
	f := newSaleFixture(t)
	f.publisher.err = errBoom
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "r1", "chair-1", 2)
	require.NoError(t, err)

	sale, err := f.svc.Checkout(ctx, "r1", cash("300"), "alice", "")
	require.NoError(t, err)

	p, _ := f.ledger.Product("chair-1")
	assert.Equal(t, 8, p.Stock)

	movements := f.ledger.ProductMovements("chair-1")
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementOrder, movements[0].Kind)
	assert.Equal(t, SaleReason(sale.ID), movements[0].Reason)
	assert.Equal(t, "alice", movements[0].PerformedBy)
}
