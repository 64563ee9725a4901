package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"furniture-backoffice/internal/models"

	"github.com/shopspring/decimal"
)

type saleRow struct {
	ID             string          `db:"id"`
	RegisterID     string          `db:"register_id"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	DiscountType   string          `db:"discount_type"`
	DiscountValue  decimal.Decimal `db:"discount_value"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`
	Tax            decimal.Decimal `db:"tax"`
	Total          decimal.Decimal `db:"total"`
	Currency       string          `db:"currency"`
	PaymentMethod  string          `db:"payment_method"`
	Received       decimal.Decimal `db:"received"`
	ChangeDue      decimal.Decimal `db:"change_due"`
	PaymentRef     string          `db:"payment_ref"`
	PaymentStatus  string          `db:"payment_status"`
	Cashier        string          `db:"cashier"`
	CreatedAt      time.Time       `db:"created_at"`
}

const saleColumns = `id, register_id, subtotal, discount_type, discount_value, discount_amount, tax, total,
	currency, payment_method, received, change_due, payment_ref, payment_status, cashier, created_at`

// CreateSale stores a completed sale and its line snapshot
func (s *Store) CreateSale(ctx context.Context, sale *models.Sale, idempotencyKey string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NULLIF($17, ''))`,
		sale.ID, sale.RegisterID, sale.Subtotal, sale.DiscountType, sale.DiscountValue, sale.DiscountAmount,
		sale.Tax, sale.Total, sale.Currency, sale.Payment.Method, sale.Payment.Received, sale.Payment.Change,
		sale.Payment.Reference, sale.Payment.Status, sale.Cashier, sale.CreatedAt, idempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, name, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sale.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	return tx.Commit()
}

// GetSale retrieves a sale with its items
func (s *Store) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	return s.getSale(ctx, "id", id)
}

// GetSaleByIdempotencyKey retrieves the sale recorded under key; nil when absent
func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	sale, err := s.getSale(ctx, "idempotency_key", key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return sale, err
}

func (s *Store) getSale(ctx context.Context, column, value string) (*models.Sale, error) {
	var row saleRow
	err := s.db.GetContext(ctx, &row, "SELECT "+saleColumns+" FROM sales WHERE "+column+" = $1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sale %s", ErrNotFound, value)
	}
	if err != nil {
		return nil, err
	}

	items := []models.SaleItem{}
	err = s.db.SelectContext(ctx, &items, `
		SELECT product_id, name, unit_price, quantity, line_total
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}

	return &models.Sale{
		ID:             row.ID,
		RegisterID:     row.RegisterID,
		Items:          items,
		Subtotal:       row.Subtotal,
		DiscountType:   row.DiscountType,
		DiscountValue:  row.DiscountValue,
		DiscountAmount: row.DiscountAmount,
		Tax:            row.Tax,
		Total:          row.Total,
		Currency:       row.Currency,
		Payment: models.SalePayment{
			Method:    row.PaymentMethod,
			Received:  row.Received,
			Change:    row.ChangeDue,
			Reference: row.PaymentRef,
			Status:    row.PaymentStatus,
		},
		Cashier:   row.Cashier,
		CreatedAt: row.CreatedAt,
	}, nil
}
